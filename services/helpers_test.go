package services

import (
	"context"
	"sync"
	"time"

	"timetable-api/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedFetcher returns the queued responses in order and repeats the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	calls   int
	tokens  []string
	results []fetchStep
}

type fetchStep struct {
	classes []models.RawClass
	err     error
}

func (f *scriptedFetcher) Fetch(_ context.Context, sessionToken string) (*FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	f.tokens = append(f.tokens, sessionToken)
	if step.err != nil {
		return nil, step.err
	}
	return &FetchResult{Classes: step.classes, SessionToken: "sid=abc"}, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ChangeEvent
	err    error
	panic  bool
}

func (n *recordingNotifier) Notify(_ context.Context, event ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if n.panic {
		panic("notifier exploded")
	}
	return n.err
}

func (n *recordingNotifier) Events() []ChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ChangeEvent(nil), n.events...)
}

func sampleRaws() []models.RawClass {
	return []models.RawClass{
		{Day: "Monday", Time: "09:00-10:00", CourseCode: "CSE101", CourseName: "Intro to Programming", Type: "Lecture", Venue: "Room 301", Group: "ALL"},
		{Day: "Tue", Time: "11:00 AM - 12:30 PM", CourseCode: "mth 201", CourseName: "Linear Algebra", Type: "Tut", Venue: "34-205", Group: "G:1"},
		{Day: "wednesday", Time: "2 to 4 pm", CourseCode: "PHY110", CourseName: "Physics Lab", Type: "Lab", Venue: "Block 12 Room 4", Group: "Group A"},
	}
}

func withVenue(raws []models.RawClass, index int, venue string) []models.RawClass {
	out := append([]models.RawClass(nil), raws...)
	out[index].Venue = venue
	return out
}

func mustNormalize(raws []models.RawClass, capturedAt time.Time) models.TimetableSnapshot {
	snapshot, err := NormalizeSnapshot(raws, capturedAt, "")
	if err != nil {
		panic(err)
	}
	return snapshot
}
