package services

import (
	"reflect"
	"testing"
	"time"

	"timetable-api/models"
)

func TestNormalizeDay(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Monday", want: "Monday"},
		{in: "mon", want: "Monday"},
		{in: "TUESDAY", want: "Tuesday"},
		{in: " Thurs. ", want: "Thursday"},
		{in: "05-03-2024", want: "05-03-2024"},
		{in: "5/3/2024", want: "05-03-2024"},
		{in: "2024-03-05", want: "05-03-2024"},
		{in: "Someday", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeDay(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizeDay(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		in         string
		start, end int
		wantErr    bool
	}{
		{in: "09:00-10:00", start: 540, end: 600},
		{in: "9:00 AM - 10:30 AM", start: 540, end: 630},
		{in: "09-10 AM", start: 540, end: 600},
		{in: "2 to 4 pm", start: 840, end: 960},
		{in: "11-1 PM", start: 660, end: 780},
		{in: "12:00 PM - 1:00 PM", start: 720, end: 780},
		{in: "9.30am-11am", start: 570, end: 660},
		{in: "13:15 – 14:45", start: 795, end: 885},
		{in: "10:00-09:00", wantErr: true},
		{in: "25:00-26:00", wantErr: true},
		{in: "09:00", wantErr: true},
		{in: "noon-1pm", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTimeRange(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeRange(%q) expected error, got %+v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeRange(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got.Start != tt.start || got.End != tt.end {
			t.Errorf("ParseTimeRange(%q) = %d-%d; want %d-%d", tt.in, got.Start, got.End, tt.start, tt.end)
		}
	}
}

func TestClassifySessionType(t *testing.T) {
	tests := map[string]models.SessionType{
		"Lecture":         models.SessionLecture,
		"LEC":             models.SessionLecture,
		"Tut.":            models.SessionTutorial,
		"Lab (Practical)": models.SessionPractical,
		"P":               models.SessionPractical,
		"Seminar":         models.SessionSeminar,
		"Mid-term Exam":   models.SessionOther,
		"exam":            models.SessionExam,
		"Workshop":        models.SessionOther,
		"":                models.SessionOther,
		"( )":             models.SessionOther,
	}
	for in, want := range tests {
		if got := ClassifySessionType(in); got != want {
			t.Errorf("ClassifySessionType(%q) = %s; want %s", in, got, want)
		}
	}
}

func TestParseVenue(t *testing.T) {
	tests := []struct {
		in             string
		building, room string
	}{
		{in: ""},
		{in: "assignment", building: "Online"},
		{in: "ONLINE", building: "Online"},
		{in: "Block 34 Room 301", building: "34", room: "301"},
		{in: "bldg a, 12", building: "A", room: "12"},
		{in: "Room 301", room: "301"},
		{in: "Rm.12", room: "12"},
		{in: "34-301", building: "34", room: "301"},
		{in: "LT 301", building: "LT", room: "301"},
		{in: "301A", room: "301A"},
		{in: "Main  Library", building: "Main Library"},
	}

	for _, tt := range tests {
		building, room := ParseVenue(tt.in)
		if deref(building) != tt.building || deref(room) != tt.room {
			t.Errorf("ParseVenue(%q) = %q, %q; want %q, %q", tt.in, deref(building), deref(room), tt.building, tt.room)
		}
		if tt.building == "" && building != nil {
			t.Errorf("ParseVenue(%q) building should be nil", tt.in)
		}
		if tt.room == "" && room != nil {
			t.Errorf("ParseVenue(%q) room should be nil", tt.in)
		}
	}
}

func TestParseGroup(t *testing.T) {
	tests := map[string]string{
		"G:1":       "1",
		"g - 2":     "2",
		"Group A":   "A",
		"grp:B":     "B",
		"all":       "ALL",
		"Group All": "ALL",
		"Gamma":     "Gamma",
	}
	for in, want := range tests {
		if got := ParseGroup(in); got == nil || *got != want {
			t.Errorf("ParseGroup(%q) = %v; want %q", in, got, want)
		}
	}
	if got := ParseGroup("  "); got != nil {
		t.Errorf("expected nil group for blank input, got %q", *got)
	}
}

func TestNormalizeFillsAttendanceTime(t *testing.T) {
	entry, err := Normalize(models.RawClass{Day: "Fri", Time: "2-3 PM", CourseCode: " cse 310 "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.CourseCode != "CSE310" {
		t.Errorf("expected compacted course code, got %q", entry.CourseCode)
	}
	if entry.AttendanceTime != "14:00 - 15:00" {
		t.Errorf("unexpected attendance time %q", entry.AttendanceTime)
	}
	if entry.SessionType != models.SessionOther || entry.Building != nil || entry.RoomNumber != nil || entry.Group != nil {
		t.Errorf("expected empty optional fields, got %+v", entry)
	}
}

func TestNormalizeRejectsMissingCourseCode(t *testing.T) {
	if _, err := Normalize(models.RawClass{Day: "Monday", Time: "09:00-10:00"}); err == nil {
		t.Fatal("expected error for missing course code")
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raws := append(sampleRaws(),
		models.RawClass{Day: "12/03/2024", Time: "09-11 AM", CourseCode: "CSE101", Type: "Exam", Venue: "Main Library"},
		models.RawClass{Day: "sat", Time: "10:00-11:00", CourseCode: "ENG100", Type: "Workshop", Venue: "assignment", Group: "all"},
		models.RawClass{Day: "Thursday", Time: "8-9", CourseCode: "CHM120", Type: "Seminar", Venue: "LT 4", Group: "g-3"},
		models.RawClass{Day: "Friday", Time: "15:30-17:00", CourseCode: "BIO101", Venue: "Rm. 12B", AttendanceTime: "15:30  to 17:00"},
	)

	for _, raw := range raws {
		first, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%+v): %v", raw, err)
		}
		second, err := Normalize(first.Raw())
		if err != nil {
			t.Fatalf("Normalize(Raw()) for %s: %v", first.CourseCode, err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("normalization is not idempotent for %s:\n first  %+v\n second %+v", first.CourseCode, first, second)
		}
	}
}

func TestNormalizeSnapshotSortsAndRejectsDuplicates(t *testing.T) {
	raws := []models.RawClass{
		{Day: "01-03-2024", Time: "09:00-10:00", CourseCode: "EXM1"},
		{Day: "Wednesday", Time: "09:00-10:00", CourseCode: "B200"},
		{Day: "Monday", Time: "11:00-12:00", CourseCode: "A100"},
		{Day: "Monday", Time: "09:00-10:00", CourseCode: "C300"},
		{Day: "Monday", Time: "09:00-10:00", CourseCode: "B200"},
	}
	snapshot, err := NormalizeSnapshot(raws, time.Now(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var order []string
	for _, e := range snapshot.Entries {
		order = append(order, e.Day+" "+e.CourseCode)
	}
	want := []string{"Monday B200", "Monday C300", "Monday A100", "Wednesday B200", "01-03-2024 EXM1"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("unexpected order %v; want %v", order, want)
	}
	if snapshot.SourceSessionToken != "tok" {
		t.Errorf("expected session token to be kept")
	}

	dup := append(raws, models.RawClass{Day: "mon", Time: "9-10", CourseCode: "b200"})
	if _, err := NormalizeSnapshot(dup, time.Now(), ""); err == nil {
		t.Fatal("expected duplicate entry error")
	}
}
