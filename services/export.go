package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"timetable-api/models"
)

const exportSheet = "Timetable"

var exportHeaders = []string{"Day", "Start", "End", "Course Code", "Course Name", "Type", "Building", "Room", "Group", "Attendance Time"}

type ExportService struct {
	timetable *TimetableService
	loc       *time.Location
}

func NewExportService(timetable *TimetableService, loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.Local
	}
	return &ExportService{timetable: timetable, loc: loc}
}

// ICS renders the timetable as an iCalendar feed. Weekday classes become
// weekly recurring events starting in the week the snapshot was captured.
func (s *ExportService) ICS(ctx context.Context) ([]byte, error) {
	snapshot, err := s.timetable.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//timetable-api//timetable export//EN")

	weekStart := mondayOf(snapshot.CapturedAt.In(s.loc))
	for _, entry := range snapshot.Entries {
		var start, end time.Time
		recurring := false
		if _, isWeekday := weekdayOf(entry.Day); isWeekday {
			start, end, _ = nextOccurrence(entry, weekStart)
			recurring = true
		} else {
			date, err := time.ParseInLocation(DateLayout, entry.Day, s.loc)
			if err != nil {
				return nil, fmt.Errorf("entry %s has invalid day %q: %w", entry.CourseCode, entry.Day, err)
			}
			start, end = atMinutes(date, entry.TimeRange.Start), atMinutes(date, entry.TimeRange.End)
		}

		event := cal.AddEvent(eventUID(entry))
		event.SetDtStampTime(snapshot.CapturedAt)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(eventSummary(entry))
		if loc := entry.Location(); loc != "" {
			event.SetLocation(loc)
		}
		if entry.CourseName != "" {
			event.SetDescription(entry.CourseName)
		}
		if recurring {
			event.AddProperty(ics.ComponentPropertyRrule, "FREQ=WEEKLY")
		}
	}

	return []byte(cal.Serialize()), nil
}

// XLSX renders one row per class.
func (s *ExportService) XLSX(ctx context.Context) ([]byte, error) {
	snapshot, err := s.timetable.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, e := range snapshot.Entries {
		row := []interface{}{
			e.Day,
			clock(e.TimeRange.Start),
			clock(e.TimeRange.End),
			e.CourseCode,
			e.CourseName,
			string(e.SessionType),
			deref(e.Building),
			deref(e.RoomNumber),
			deref(e.Group),
			e.AttendanceTime,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// eventUID is stable across exports so calendar clients update rather than duplicate.
func eventUID(e models.ClassEntry) string {
	key := fmt.Sprintf("%s|%d|%s", e.Day, e.TimeRange.Start, e.CourseCode)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String() + "@timetable-api"
}

func eventSummary(e models.ClassEntry) string {
	parts := []string{e.CourseCode}
	if e.SessionType != models.SessionOther {
		parts = append(parts, string(e.SessionType))
	}
	if e.Group != nil && *e.Group != "ALL" {
		parts = append(parts, "G"+*e.Group)
	}
	return strings.Join(parts, " ")
}

func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -offset)
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
