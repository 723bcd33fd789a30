package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetryingFetcherBacksOff(t *testing.T) {
	inner := &scriptedFetcher{results: []fetchStep{
		{err: context.DeadlineExceeded},
		{err: errors.New("connection refused")},
		{classes: sampleRaws()},
	}}
	var delays []time.Duration
	f := NewRetryingFetcher(inner, RetryPolicy{MaxAttempts: 3, Delay: 100 * time.Millisecond})
	f.sleep = noSleep(&delays)

	result, err := f.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Classes) != 3 {
		t.Errorf("expected 3 classes, got %d", len(result.Classes))
	}
	if len(delays) != 2 || delays[0] != 100*time.Millisecond || delays[1] != 200*time.Millisecond {
		t.Errorf("unexpected delays %v", delays)
	}
}

func TestRetryingFetcherExhaustsTimeouts(t *testing.T) {
	inner := &scriptedFetcher{results: []fetchStep{{err: context.DeadlineExceeded}}}
	var delays []time.Duration
	f := NewRetryingFetcher(inner, RetryPolicy{MaxAttempts: 3, Delay: time.Second})
	f.sleep = noSleep(&delays)

	_, err := f.Fetch(context.Background(), "")
	if CodeOf(err) != ErrCodeUpstreamTimeout {
		t.Fatalf("expected UPSTREAM_TIMEOUT, got %v", err)
	}
	if inner.Calls() != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.Calls())
	}
}

func TestRetryingFetcherDoesNotRetryAuthOrParse(t *testing.T) {
	for _, code := range []ErrorCode{ErrCodeUpstreamAuth, ErrCodeUpstreamParse} {
		inner := &scriptedFetcher{results: []fetchStep{{err: NewError(code, "nope")}}}
		f := NewRetryingFetcher(inner, RetryPolicy{MaxAttempts: 5})
		var delays []time.Duration
		f.sleep = noSleep(&delays)

		_, err := f.Fetch(context.Background(), "")
		if CodeOf(err) != code {
			t.Errorf("expected %s, got %v", code, err)
		}
		if inner.Calls() != 1 {
			t.Errorf("%s: expected a single attempt, got %d", code, inner.Calls())
		}
	}
}

func TestRetryingFetcherRetriesRejectedCaptcha(t *testing.T) {
	inner := &scriptedFetcher{results: []fetchStep{
		{err: WrapError(ErrCodeUpstreamAuth, "portal rejected the captcha", ErrCaptchaRejected)},
		{classes: sampleRaws()},
	}}
	f := NewRetryingFetcher(inner, RetryPolicy{MaxAttempts: 2})
	var delays []time.Duration
	f.sleep = noSleep(&delays)

	if _, err := f.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("expected captcha retry to succeed, got %v", err)
	}
	if inner.Calls() != 2 {
		t.Errorf("expected 2 attempts, got %d", inner.Calls())
	}
}

func TestRetryingFetcherAppliesAttemptTimeout(t *testing.T) {
	inner := FetcherFunc(func(ctx context.Context, _ string) (*FetchResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	f := NewRetryingFetcher(inner, RetryPolicy{Timeout: 10 * time.Millisecond, MaxAttempts: 1})

	_, err := f.Fetch(context.Background(), "")
	if CodeOf(err) != ErrCodeUpstreamTimeout {
		t.Fatalf("expected UPSTREAM_TIMEOUT, got %v", err)
	}
}

func TestRetryingFetcherRejectsNilResult(t *testing.T) {
	inner := FetcherFunc(func(context.Context, string) (*FetchResult, error) { return nil, nil })
	f := NewRetryingFetcher(inner, RetryPolicy{MaxAttempts: 3})

	if _, err := f.Fetch(context.Background(), ""); CodeOf(err) != ErrCodeUpstreamParse {
		t.Fatalf("expected UPSTREAM_PARSE, got %v", err)
	}
}

func TestRateLimitedErrorRoundsUp(t *testing.T) {
	err := &RateLimitedError{Remaining: 299*time.Second + 200*time.Millisecond}
	if err.RemainingSeconds() != 300 {
		t.Fatalf("expected 300, got %d", err.RemainingSeconds())
	}
	wrapped := WrapError(ErrCodeCacheIO, "outer", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) || CodeOf(wrapped) != ErrCodeCacheIO {
		t.Fatalf("unexpected error chain behaviour for %v", wrapped)
	}
}
