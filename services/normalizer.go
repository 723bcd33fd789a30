package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"timetable-api/models"
)

// DateLayout is the canonical form of an absolute-date day.
const DateLayout = "02-01-2006"

var weekdayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var weekdayAliases = map[string]string{
	"mon": "Monday", "tue": "Tuesday", "tues": "Tuesday", "wed": "Wednesday",
	"thu": "Thursday", "thur": "Thursday", "thurs": "Thursday", "fri": "Friday",
	"sat": "Saturday", "sun": "Sunday",
}

var dateLayouts = []string{"02-01-2006", "2-1-2006", "02/01/2006", "2/1/2006", "02.01.2006", "2.1.2006", "2006-01-02"}

var (
	timeSeparator = regexp.MustCompile(`(?i)\s*(?:-|–|\bto\b)\s*`)
	clockPattern  = regexp.MustCompile(`(?i)^(\d{1,2})(?:[:.](\d{2}))?\s*([ap])?\.?\s*(?:m\.?)?$`)
	groupPattern  = regexp.MustCompile(`(?i)^(?:(?:group|grp)\s*[:\-]?\s*|g\s*[:\-]\s*)(\S+)$`)
)

var sessionTypeRules = []struct {
	keys []string
	kind models.SessionType
}{
	{[]string{"lecture", "lec", "l", "th", "theory"}, models.SessionLecture},
	{[]string{"tutorial", "tut", "t"}, models.SessionTutorial},
	{[]string{"practical", "prac", "pr", "p", "lab", "laboratory"}, models.SessionPractical},
	{[]string{"seminar", "sem", "s"}, models.SessionSeminar},
	{[]string{"exam", "examination", "test", "quiz"}, models.SessionExam},
}

// venueRules are tried in order; the first match wins. Text matching none of
// them becomes the building verbatim.
//
//	""                  -> no building, no room
//	"assignment"        -> building "Online"
//	"Online"            -> building "Online"
//	"Block 34 Room 301" -> building "34", room "301"
//	"Bldg A, 12"        -> building "A", room "12"
//	"Room 301", "Rm.12" -> room only
//	"34-301"            -> building "34", room "301"
//	"LT 301"            -> building "LT", room "301"
//	"301A"              -> room only
var venueRules = []struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string) (building, room *string)
}{
	{"online", regexp.MustCompile(`(?i)^(?:assignment|online)$`), func(m []string) (*string, *string) {
		return strPtr("Online"), nil
	}},
	{"block-room", regexp.MustCompile(`(?i)^(?:block|blk|bldg|building)\.?\s*([a-z0-9]+)\s*[,/ -]\s*(?:(?:room|rm)\.?\s*)?([a-z]?\d+[a-z]?)$`), func(m []string) (*string, *string) {
		return strPtr(strings.ToUpper(m[1])), strPtr(strings.ToUpper(m[2]))
	}},
	{"room", regexp.MustCompile(`(?i)^(?:room|rm)\.?\s*(\S+)$`), func(m []string) (*string, *string) {
		return nil, strPtr(m[1])
	}},
	{"dashed", regexp.MustCompile(`^([A-Za-z0-9]+)\s*-\s*([A-Za-z]?\d+[A-Za-z]?)$`), func(m []string) (*string, *string) {
		return strPtr(m[1]), strPtr(m[2])
	}},
	{"spaced", regexp.MustCompile(`^([A-Za-z]+)\s+(\d+[A-Za-z]?)$`), func(m []string) (*string, *string) {
		return strPtr(m[1]), strPtr(m[2])
	}},
	{"bare-room", regexp.MustCompile(`^[A-Za-z]?\d+[A-Za-z]?$`), func(m []string) (*string, *string) {
		return nil, strPtr(m[0])
	}},
}

// Normalize turns one raw portal row into a ClassEntry. It is idempotent:
// Normalize(e.Raw()) == e for every e it returns.
func Normalize(raw models.RawClass) (models.ClassEntry, error) {
	day, err := NormalizeDay(raw.Day)
	if err != nil {
		return models.ClassEntry{}, err
	}

	timeRange, err := ParseTimeRange(raw.Time)
	if err != nil {
		return models.ClassEntry{}, err
	}

	code := strings.ToUpper(strings.Join(strings.Fields(raw.CourseCode), ""))
	if code == "" {
		return models.ClassEntry{}, fmt.Errorf("missing course code")
	}

	attendance := collapseSpaces(raw.AttendanceTime)
	if attendance == "" {
		attendance = fmt.Sprintf("%02d:%02d - %02d:%02d", timeRange.Start/60, timeRange.Start%60, timeRange.End/60, timeRange.End%60)
	}

	building, room := ParseVenue(raw.Venue)

	return models.ClassEntry{
		Day:            day,
		AttendanceTime: attendance,
		TimeRange:      timeRange,
		CourseCode:     code,
		CourseName:     collapseSpaces(raw.CourseName),
		SessionType:    ClassifySessionType(raw.Type),
		Building:       building,
		RoomNumber:     room,
		Group:          ParseGroup(raw.Group),
	}, nil
}

// NormalizeSnapshot normalizes every row, sorts the result and rejects
// duplicate (day, start, courseCode) rows, which indicate a parsing bug.
func NormalizeSnapshot(raws []models.RawClass, capturedAt time.Time, sessionToken string) (models.TimetableSnapshot, error) {
	entries := make([]models.ClassEntry, 0, len(raws))
	for i, raw := range raws {
		entry, err := Normalize(raw)
		if err != nil {
			return models.TimetableSnapshot{}, fmt.Errorf("row %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	if err := checkDuplicates(entries); err != nil {
		return models.TimetableSnapshot{}, err
	}
	SortEntries(entries)
	return models.TimetableSnapshot{
		Entries:            entries,
		CapturedAt:         capturedAt,
		SourceSessionToken: sessionToken,
	}, nil
}

// NormalizeEntries re-applies normalization to already structured entries.
func NormalizeEntries(entries []models.ClassEntry) ([]models.ClassEntry, error) {
	out := make([]models.ClassEntry, 0, len(entries))
	for i, e := range entries {
		n, err := Normalize(e.Raw())
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, n)
	}
	SortEntries(out)
	return out, nil
}

func checkDuplicates(entries []models.ClassEntry) error {
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		key := fmt.Sprintf("%s|%d|%s", e.Day, e.TimeRange.Start, e.CourseCode)
		if j, ok := seen[key]; ok {
			return fmt.Errorf("duplicate entry %s on %s at %s (rows %d and %d)", e.CourseCode, e.Day, e.TimeRange, j, i)
		}
		seen[key] = i
	}
	return nil
}

// NormalizeDay accepts weekday names in any case or abbreviation and dates
// in the common day-first layouts, returning "Monday" or "DD-MM-YYYY".
func NormalizeDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(strings.TrimSuffix(s, "."))
	for _, name := range weekdayNames {
		if lower == strings.ToLower(name) {
			return name, nil
		}
	}
	if name, ok := weekdayAliases[lower]; ok {
		return name, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized day %q", s)
}

// ParseTimeRange parses "09:00-10:00", "9:00 AM - 10:30 AM", "09-10 AM" or
// "2 to 4 pm" into minutes since midnight. A meridiem given only on the end
// also applies to the start unless that would invert the range.
func ParseTimeRange(s string) (models.TimeRange, error) {
	parts := timeSeparator.Split(strings.TrimSpace(s), -1)
	if len(parts) != 2 {
		return models.TimeRange{}, fmt.Errorf("unrecognized time range %q", s)
	}
	sh, smin, smer, err := parseClock(parts[0])
	if err != nil {
		return models.TimeRange{}, fmt.Errorf("time range %q: %w", s, err)
	}
	eh, emin, emer, err := parseClock(parts[1])
	if err != nil {
		return models.TimeRange{}, fmt.Errorf("time range %q: %w", s, err)
	}

	end := toMinutes(eh, emin, emer)
	start := toMinutes(sh, smin, smer)
	if smer == "" && emer != "" {
		if candidate := toMinutes(sh, smin, emer); candidate < end {
			start = candidate
		} else if emer == "p" {
			start = toMinutes(sh, smin, "a")
		}
	}
	if start >= end {
		return models.TimeRange{}, fmt.Errorf("time range %q does not end after it starts", s)
	}
	return models.TimeRange{Start: start, End: end}, nil
}

func parseClock(s string) (hour, minute int, meridiem string, err error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, "", fmt.Errorf("unrecognized clock %q", s)
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem = strings.ToLower(m[3])
	if minute > 59 {
		return 0, 0, "", fmt.Errorf("minute out of range in %q", s)
	}
	if meridiem != "" && (hour < 1 || hour > 12) {
		return 0, 0, "", fmt.Errorf("hour out of range in %q", s)
	}
	if meridiem == "" && hour > 23 {
		return 0, 0, "", fmt.Errorf("hour out of range in %q", s)
	}
	return hour, minute, meridiem, nil
}

func toMinutes(hour, minute int, meridiem string) int {
	switch meridiem {
	case "a":
		if hour == 12 {
			hour = 0
		}
	case "p":
		if hour < 12 {
			hour += 12
		}
	}
	return hour*60 + minute
}

// ClassifySessionType maps a free-text type label to a SessionType. Unknown
// labels classify as Other.
func ClassifySessionType(s string) models.SessionType {
	label := strings.ToLower(strings.Trim(strings.TrimSpace(s), ".()"))
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return models.SessionOther
	}
	first := strings.Trim(fields[0], ".(),")
	for _, candidate := range []string{label, first} {
		for _, rule := range sessionTypeRules {
			for _, key := range rule.keys {
				if candidate == key {
					return rule.kind
				}
			}
		}
	}
	return models.SessionOther
}

// ParseVenue splits a free-text location into building and room.
func ParseVenue(s string) (building, room *string) {
	s = collapseSpaces(s)
	if s == "" {
		return nil, nil
	}
	for _, rule := range venueRules {
		if m := rule.pattern.FindStringSubmatch(s); m != nil {
			return rule.build(m)
		}
	}
	return strPtr(s), nil
}

// ParseGroup strips "G:", "Group" and "Grp" prefixes; "all" displays as "ALL".
func ParseGroup(s string) *string {
	s = collapseSpaces(s)
	if s == "" {
		return nil
	}
	for m := groupPattern.FindStringSubmatch(s); m != nil; m = groupPattern.FindStringSubmatch(s) {
		s = m[1]
	}
	if strings.EqualFold(s, "all") {
		s = "ALL"
	}
	return &s
}

// SortEntries orders by day (weekdays first, then dates), start and course code.
func SortEntries(entries []models.ClassEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if c := compareDays(a.Day, b.Day); c != 0 {
			return c < 0
		}
		if a.TimeRange.Start != b.TimeRange.Start {
			return a.TimeRange.Start < b.TimeRange.Start
		}
		return a.CourseCode < b.CourseCode
	})
}

func compareDays(a, b string) int {
	ra, ta := dayRank(a)
	rb, tb := dayRank(b)
	if ra != rb {
		return ra - rb
	}
	switch {
	case ta.Before(tb):
		return -1
	case ta.After(tb):
		return 1
	}
	return strings.Compare(a, b)
}

// dayRank puts weekdays at 0..6, dates at 7 and anything else last.
func dayRank(day string) (int, time.Time) {
	for i, name := range weekdayNames {
		if day == name {
			return i, time.Time{}
		}
	}
	if t, err := time.Parse(DateLayout, day); err == nil {
		return 7, t
	}
	return 8, time.Time{}
}

func weekdayOf(day string) (time.Weekday, bool) {
	for i, name := range weekdayNames {
		if day == name {
			return time.Weekday((i + 1) % 7), true
		}
	}
	return 0, false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func strPtr(s string) *string {
	return &s
}
