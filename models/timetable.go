package models

import (
	"fmt"
	"time"
)

type SessionType string

const (
	SessionLecture   SessionType = "Lecture"
	SessionTutorial  SessionType = "Tutorial"
	SessionPractical SessionType = "Practical"
	SessionSeminar   SessionType = "Seminar"
	SessionExam      SessionType = "Exam"
	SessionOther     SessionType = "Other"
)

// TimeRange holds minutes since midnight.
type TimeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", r.Start/60, r.Start%60, r.End/60, r.End%60)
}

// RawClass is one timetable row as the portal renders it.
type RawClass struct {
	Day            string `json:"day"`
	AttendanceTime string `json:"attendanceTime"`
	Time           string `json:"time"`
	CourseCode     string `json:"courseCode"`
	CourseName     string `json:"courseName"`
	Type           string `json:"type"`
	Venue          string `json:"venue"`
	Group          string `json:"group"`
}

// ClassEntry is one normalized scheduled occurrence.
type ClassEntry struct {
	Day            string      `json:"day"`
	AttendanceTime string      `json:"attendanceTime"`
	TimeRange      TimeRange   `json:"timeRange"`
	CourseCode     string      `json:"courseCode"`
	CourseName     string      `json:"courseName"`
	SessionType    SessionType `json:"sessionType"`
	Building       *string     `json:"building"`
	RoomNumber     *string     `json:"roomNumber"`
	Group          *string     `json:"group"`
}

// Location is the display form of building and room.
func (e ClassEntry) Location() string {
	switch {
	case e.Building != nil && e.RoomNumber != nil:
		return *e.Building + "-" + *e.RoomNumber
	case e.RoomNumber != nil:
		return *e.RoomNumber
	case e.Building != nil:
		return *e.Building
	}
	return ""
}

// Raw renders the entry back into the canonical upstream form.
func (e ClassEntry) Raw() RawClass {
	raw := RawClass{
		Day:            e.Day,
		AttendanceTime: e.AttendanceTime,
		Time:           e.TimeRange.String(),
		CourseCode:     e.CourseCode,
		CourseName:     e.CourseName,
		Type:           string(e.SessionType),
	}
	switch {
	case e.Building != nil && e.RoomNumber != nil:
		raw.Venue = *e.Building + "-" + *e.RoomNumber
	case e.RoomNumber != nil:
		raw.Venue = "Room " + *e.RoomNumber
	case e.Building != nil:
		raw.Venue = *e.Building
	}
	if e.Group != nil {
		raw.Group = *e.Group
	}
	return raw
}

// Clone returns a deep copy.
func (e ClassEntry) Clone() ClassEntry {
	e.Building = cloneString(e.Building)
	e.RoomNumber = cloneString(e.RoomNumber)
	e.Group = cloneString(e.Group)
	return e
}

type TimetableSnapshot struct {
	Entries            []ClassEntry `json:"entries"`
	CapturedAt         time.Time    `json:"capturedAt"`
	SourceSessionToken string       `json:"sourceSessionToken,omitempty"`
}

func (s TimetableSnapshot) Clone() TimetableSnapshot {
	entries := make([]ClassEntry, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = e.Clone()
	}
	s.Entries = entries
	return s
}

// CacheRecord wraps the one current snapshot held by a store.
type CacheRecord struct {
	Snapshot TimetableSnapshot `json:"snapshot"`
	SavedAt  time.Time         `json:"savedAt"`
}

func (r *CacheRecord) Clone() *CacheRecord {
	if r == nil {
		return nil
	}
	return &CacheRecord{Snapshot: r.Snapshot.Clone(), SavedAt: r.SavedAt}
}

type ChangeKind string

const (
	ChangeAdded           ChangeKind = "Added"
	ChangeRemoved         ChangeKind = "Removed"
	ChangeTimeChanged     ChangeKind = "TimeChanged"
	ChangeLocationChanged ChangeKind = "LocationChanged"
	ChangeTypeChanged     ChangeKind = "TypeChanged"
)

// ScheduleChange is one difference between two snapshots for a (day, course) pairing.
type ScheduleChange struct {
	Kind       ChangeKind  `json:"kind"`
	Day        string      `json:"day"`
	CourseCode string      `json:"courseCode"`
	CourseName string      `json:"courseName,omitempty"`
	Previous   string      `json:"previous,omitempty"`
	New        string      `json:"new,omitempty"`
	Entry      *ClassEntry `json:"entry,omitempty"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
