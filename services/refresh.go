package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"timetable-api/models"
)

// RefreshCooldown is the minimum interval between upstream fetches.
const RefreshCooldown = 10 * time.Minute

const notifyTimeout = 5 * time.Second

type RefreshResult struct {
	RefreshID string
	Snapshot  models.TimetableSnapshot
	Changes   []models.ScheduleChange
	// Joined is set for callers that waited on a refresh another request started.
	Joined bool
}

// share gives a joined caller its own copy of the result.
func (r *RefreshResult) share() *RefreshResult {
	changes := make([]models.ScheduleChange, len(r.Changes))
	for i, c := range r.Changes {
		if c.Entry != nil {
			entry := c.Entry.Clone()
			c.Entry = &entry
		}
		changes[i] = c
	}
	return &RefreshResult{
		RefreshID: r.RefreshID,
		Snapshot:  r.Snapshot.Clone(),
		Changes:   changes,
		Joined:    true,
	}
}

type refreshCall struct {
	done   chan struct{}
	result *RefreshResult
	err    error
}

// RefreshCoordinator runs the fetch, normalize, diff, persist and notify
// sequence. At most one sequence is in flight: a caller arriving during a
// refresh waits for it and shares its outcome instead of fetching again.
// Either the whole sequence succeeds and the store holds the new snapshot,
// or it fails and the store is untouched.
type RefreshCoordinator struct {
	store    CacheStore
	fetcher  Fetcher
	detector *ChangeDetector
	notifier Notifier
	cooldown time.Duration
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	inflight *refreshCall
}

func NewRefreshCoordinator(store CacheStore, fetcher Fetcher, notifier Notifier) *RefreshCoordinator {
	return &RefreshCoordinator{
		store:    store,
		fetcher:  fetcher,
		detector: NewChangeDetector(),
		notifier: notifier,
		cooldown: RefreshCooldown,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Refresh does not stop once started: the work runs detached from ctx, and
// ctx only bounds how long a joining caller is willing to wait.
func (c *RefreshCoordinator) Refresh(ctx context.Context) (*RefreshResult, error) {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			if call.err != nil {
				return nil, call.err
			}
			return call.result.share(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	defer func() {
		if call.result == nil && call.err == nil {
			call.err = NewError(ErrCodeUpstreamUnavailable, "refresh aborted")
		}
		c.mu.Lock()
		c.inflight = nil
		c.mu.Unlock()
		close(call.done)
	}()

	call.result, call.err = c.run(context.WithoutCancel(ctx))
	return call.result, call.err
}

// CheckCooldown reports the rate-limit state without fetching.
func (c *RefreshCoordinator) CheckCooldown(ctx context.Context) error {
	lastUpdated, ok, err := c.store.LastUpdatedAt(ctx)
	if err != nil {
		return WrapError(ErrCodeCacheIO, "failed to read cache metadata", err)
	}
	if !ok {
		return nil
	}
	elapsed := c.now().Sub(lastUpdated)
	if elapsed >= c.cooldown {
		return nil
	}
	remaining := c.cooldown - elapsed
	if remaining > c.cooldown {
		remaining = c.cooldown
	}
	return &RateLimitedError{
		Remaining:   remaining,
		LastUpdated: lastUpdated,
		NextAllowed: lastUpdated.Add(c.cooldown),
	}
}

func (c *RefreshCoordinator) run(ctx context.Context) (*RefreshResult, error) {
	if err := c.CheckCooldown(ctx); err != nil {
		return nil, err
	}

	refreshID := c.newID()
	record, err := c.store.Load(ctx)
	if err != nil {
		return nil, WrapError(ErrCodeCacheIO, "failed to load cached timetable", err)
	}
	var previous *models.TimetableSnapshot
	var sessionToken string
	if record != nil {
		previous = &record.Snapshot
		sessionToken = record.Snapshot.SourceSessionToken
	}

	log.Printf("RefreshCoordinator - %s: fetching upstream timetable", refreshID)
	started := c.now()
	fetched, err := c.fetcher.Fetch(ctx, sessionToken)
	if err != nil {
		if CodeOf(err) == "" {
			err = WrapError(ErrCodeUpstreamUnavailable, "upstream fetch failed", err)
		}
		log.Printf("RefreshCoordinator - %s: fetch failed after %s: %v", refreshID, c.now().Sub(started), err)
		return nil, err
	}

	snapshot, err := NormalizeSnapshot(fetched.Classes, c.now().UTC(), fetched.SessionToken)
	if err != nil {
		log.Printf("RefreshCoordinator - %s: normalization failed: %v; payload: %.2000s", refreshID, err, fetched.RawPayload)
		return nil, WrapError(ErrCodeUpstreamParse, "upstream timetable could not be normalized", err)
	}

	changes := c.detector.Diff(previous, snapshot)

	if err := c.store.Save(ctx, snapshot); err != nil {
		log.Printf("RefreshCoordinator - %s: save failed: %v", refreshID, err)
		return nil, WrapError(ErrCodeCacheIO, "failed to persist timetable", err)
	}
	log.Printf("RefreshCoordinator - %s: stored %d classes, %d changes", refreshID, len(snapshot.Entries), len(changes))

	if len(changes) > 0 {
		c.dispatch(ctx, ChangeEvent{RefreshID: refreshID, CapturedAt: snapshot.CapturedAt, Changes: changes})
	}

	return &RefreshResult{RefreshID: refreshID, Snapshot: snapshot, Changes: changes}, nil
}

// dispatch never fails the refresh: errors and panics from the notifier stop here.
func (c *RefreshCoordinator) dispatch(ctx context.Context, event ChangeEvent) {
	if c.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("RefreshCoordinator - %s: notifier panicked: %v", event.RefreshID, r)
		}
	}()

	notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := c.notifier.Notify(notifyCtx, event); err != nil {
		log.Printf("RefreshCoordinator - %s: notification failed: %v", event.RefreshID, err)
	}
}
