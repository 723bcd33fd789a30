package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// DailyRefresher calls Refresh once a day at a fixed wall-clock time. It is
// just another caller: the cooldown and in-flight rules still apply.
type DailyRefresher struct {
	coordinator *RefreshCoordinator
	hour        int
	minute      int
	loc         *time.Location

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewDailyRefresher(coordinator *RefreshCoordinator, at string, loc *time.Location) (*DailyRefresher, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("invalid daily refresh time %q: %w", at, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &DailyRefresher{
		coordinator: coordinator,
		hour:        t.Hour(),
		minute:      t.Minute(),
		loc:         loc,
	}, nil
}

func (r *DailyRefresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.wg.Add(1)
	go r.loop(r.stopCh)
	log.Printf("DailyRefresher - started, next run at %s", r.NextRun(time.Now()).Format(time.RFC3339))
}

func (r *DailyRefresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()
	r.wg.Wait()
	log.Println("DailyRefresher - stopped")
}

// NextRun is the first scheduled time strictly after now.
func (r *DailyRefresher) NextRun(now time.Time) time.Time {
	local := now.In(r.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), r.hour, r.minute, 0, 0, r.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (r *DailyRefresher) loop(stopCh chan struct{}) {
	defer r.wg.Done()
	for {
		timer := time.NewTimer(time.Until(r.NextRun(time.Now())))
		select {
		case <-timer.C:
			r.runOnce()
		case <-stopCh:
			timer.Stop()
			return
		}
	}
}

func (r *DailyRefresher) runOnce() {
	result, err := r.coordinator.Refresh(context.Background())
	var rateLimited *RateLimitedError
	switch {
	case errors.As(err, &rateLimited):
		log.Printf("DailyRefresher - skipped, cooldown has %ds left", rateLimited.RemainingSeconds())
	case err != nil:
		log.Printf("DailyRefresher - refresh failed: %v", err)
	default:
		log.Printf("DailyRefresher - refreshed %d classes, %d changes", len(result.Snapshot.Entries), len(result.Changes))
	}
}
