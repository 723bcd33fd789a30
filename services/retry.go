package services

import (
	"context"
	"errors"
	"log"
	"net"
	"time"
)

type RetryPolicy struct {
	// Timeout bounds each attempt; zero means no per-attempt limit.
	Timeout time.Duration
	// MaxAttempts counts the first try.
	MaxAttempts int
	// Delay before the second attempt; doubles after every further failure.
	Delay time.Duration
}

// RetryingFetcher retries timeouts, network failures and rejected captchas.
// Auth and parse failures are returned at once.
type RetryingFetcher struct {
	next   Fetcher
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetryingFetcher(next Fetcher, policy RetryPolicy) *RetryingFetcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingFetcher{next: next, policy: policy, sleep: sleepContext}
}

func (f *RetryingFetcher) Fetch(ctx context.Context, sessionToken string) (*FetchResult, error) {
	var lastErr error
	delay := f.policy.Delay

	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		result, err := f.attempt(ctx, sessionToken)
		if err == nil {
			if attempt > 1 {
				log.Printf("RetryingFetcher - succeeded on attempt %d/%d", attempt, f.policy.MaxAttempts)
			}
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == f.policy.MaxAttempts {
			break
		}

		log.Printf("RetryingFetcher - attempt %d/%d failed: %v; retrying in %s", attempt, f.policy.MaxAttempts, err, delay)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, WrapError(ErrCodeUpstreamTimeout, "retry wait interrupted", err)
		}
		delay *= 2
	}

	if CodeOf(lastErr) == ErrCodeUpstreamTimeout {
		return nil, WrapError(ErrCodeUpstreamTimeout, "upstream retries exhausted", lastErr)
	}
	return nil, lastErr
}

func (f *RetryingFetcher) attempt(ctx context.Context, sessionToken string) (*FetchResult, error) {
	attemptCtx := ctx
	if f.policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.policy.Timeout)
		defer cancel()
	}

	result, err := f.next.Fetch(attemptCtx, sessionToken)
	if err != nil {
		return nil, classifyFetchError(err, errors.Is(attemptCtx.Err(), context.DeadlineExceeded))
	}
	if result == nil {
		return nil, NewError(ErrCodeUpstreamParse, "upstream returned no result")
	}
	return result, nil
}

func classifyFetchError(err error, deadlineHit bool) error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	var netErr net.Error
	if deadlineHit || errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return WrapError(ErrCodeUpstreamTimeout, "upstream request timed out", err)
	}
	return WrapError(ErrCodeUpstreamUnavailable, "upstream request failed", err)
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrCaptchaRejected) {
		return true
	}
	switch CodeOf(err) {
	case ErrCodeUpstreamTimeout, ErrCodeUpstreamUnavailable:
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
