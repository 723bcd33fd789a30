package services

import (
	"sort"

	"timetable-api/models"
)

type ChangeDetector struct{}

func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

var changeKindOrder = map[models.ChangeKind]int{
	models.ChangeAdded:           0,
	models.ChangeRemoved:         1,
	models.ChangeTimeChanged:     2,
	models.ChangeLocationChanged: 3,
	models.ChangeTypeChanged:     4,
}

type classKey struct {
	day        string
	courseCode string
}

type orderedChange struct {
	change models.ScheduleChange
	index  int
}

// Diff compares two snapshots keyed by (day, courseCode). A nil previous
// snapshot yields no changes so the first load announces nothing.
//
// Entries sharing a key are paired in start-time order; unpaired leftovers
// are reported as Added or Removed. Each differing aspect of a pair is its
// own change, so one class can be both TimeChanged and LocationChanged.
func (d *ChangeDetector) Diff(previous *models.TimetableSnapshot, next models.TimetableSnapshot) []models.ScheduleChange {
	if previous == nil {
		return []models.ScheduleChange{}
	}

	prevByKey := groupByKey(previous.Entries)
	nextByKey := groupByKey(next.Entries)

	keys := make([]classKey, 0, len(prevByKey)+len(nextByKey))
	for k := range prevByKey {
		keys = append(keys, k)
	}
	for k := range nextByKey {
		if _, ok := prevByKey[k]; !ok {
			keys = append(keys, k)
		}
	}

	var changes []orderedChange
	for _, k := range keys {
		before, after := prevByKey[k], nextByKey[k]
		n := len(before)
		if len(after) > n {
			n = len(after)
		}
		for i := 0; i < n; i++ {
			switch {
			case i >= len(before):
				entry := after[i].Clone()
				changes = append(changes, orderedChange{index: i, change: models.ScheduleChange{
					Kind: models.ChangeAdded, Day: k.day, CourseCode: k.courseCode,
					CourseName: entry.CourseName, New: describeEntry(entry), Entry: &entry,
				}})
			case i >= len(after):
				entry := before[i].Clone()
				changes = append(changes, orderedChange{index: i, change: models.ScheduleChange{
					Kind: models.ChangeRemoved, Day: k.day, CourseCode: k.courseCode,
					CourseName: entry.CourseName, Previous: describeEntry(entry), Entry: &entry,
				}})
			default:
				for _, c := range comparePair(before[i], after[i]) {
					changes = append(changes, orderedChange{index: i, change: c})
				}
			}
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if c := compareDays(a.change.Day, b.change.Day); c != 0 {
			return c < 0
		}
		if a.change.CourseCode != b.change.CourseCode {
			return a.change.CourseCode < b.change.CourseCode
		}
		if a.index != b.index {
			return a.index < b.index
		}
		return changeKindOrder[a.change.Kind] < changeKindOrder[b.change.Kind]
	})

	out := make([]models.ScheduleChange, len(changes))
	for i, c := range changes {
		out[i] = c.change
	}
	return out
}

func comparePair(before, after models.ClassEntry) []models.ScheduleChange {
	var changes []models.ScheduleChange
	base := func(kind models.ChangeKind, previous, next string) models.ScheduleChange {
		entry := after.Clone()
		return models.ScheduleChange{
			Kind:       kind,
			Day:        after.Day,
			CourseCode: after.CourseCode,
			CourseName: after.CourseName,
			Previous:   previous,
			New:        next,
			Entry:      &entry,
		}
	}

	if before.TimeRange != after.TimeRange {
		changes = append(changes, base(models.ChangeTimeChanged, before.TimeRange.String(), after.TimeRange.String()))
	}
	if !equalStringPtr(before.Building, after.Building) || !equalStringPtr(before.RoomNumber, after.RoomNumber) {
		changes = append(changes, base(models.ChangeLocationChanged, before.Location(), after.Location()))
	}
	if before.SessionType != after.SessionType {
		changes = append(changes, base(models.ChangeTypeChanged, string(before.SessionType), string(after.SessionType)))
	}
	return changes
}

func groupByKey(entries []models.ClassEntry) map[classKey][]models.ClassEntry {
	grouped := make(map[classKey][]models.ClassEntry)
	for _, e := range entries {
		k := classKey{day: e.Day, courseCode: e.CourseCode}
		grouped[k] = append(grouped[k], e)
	}
	for _, list := range grouped {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].TimeRange.Start < list[j].TimeRange.Start
		})
	}
	return grouped
}

func describeEntry(e models.ClassEntry) string {
	desc := e.TimeRange.String()
	if loc := e.Location(); loc != "" {
		desc += " @ " + loc
	}
	return desc
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
