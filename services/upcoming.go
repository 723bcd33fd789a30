package services

import (
	"context"
	"sort"
	"time"

	"timetable-api/models"
)

// Upcoming lists classes whose next occurrence starts within [now, now+within],
// soonest first. Weekday entries repeat weekly; dated entries occur once.
func (s *TimetableService) Upcoming(ctx context.Context, now time.Time, within time.Duration) ([]models.UpcomingClass, error) {
	snapshot, err := s.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}

	deadline := now.Add(within)
	upcoming := make([]models.UpcomingClass, 0)
	for _, entry := range snapshot.Entries {
		start, end, ok := nextOccurrence(entry, now)
		if !ok || start.After(deadline) {
			continue
		}
		upcoming = append(upcoming, models.UpcomingClass{ClassEntry: entry, StartsAt: start, EndsAt: end})
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].StartsAt.Before(upcoming[j].StartsAt)
	})
	return upcoming, nil
}

// nextOccurrence returns the first start at or after now, in now's location.
func nextOccurrence(entry models.ClassEntry, now time.Time) (start, end time.Time, ok bool) {
	loc := now.Location()
	if weekday, isWeekday := weekdayOf(entry.Day); isWeekday {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		offset := (int(weekday) - int(now.Weekday()) + 7) % 7
		day := midnight.AddDate(0, 0, offset)
		start, end = atMinutes(day, entry.TimeRange.Start), atMinutes(day, entry.TimeRange.End)
		if start.Before(now) {
			day = day.AddDate(0, 0, 7)
			start, end = atMinutes(day, entry.TimeRange.Start), atMinutes(day, entry.TimeRange.End)
		}
		return start, end, true
	}

	date, err := time.ParseInLocation(DateLayout, entry.Day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	start, end = atMinutes(date, entry.TimeRange.Start), atMinutes(date, entry.TimeRange.End)
	if start.Before(now) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func atMinutes(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}
