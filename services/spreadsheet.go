package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"timetable-api/models"
)

// SpreadsheetFetcher reads the timetable from an XLSX workbook instead of the
// portal. It accepts both the portal column set and the layout ExportService
// writes, so an export can be fed back in.
type SpreadsheetFetcher struct {
	source string
	load   func(ctx context.Context) ([]byte, error)
}

func NewSpreadsheetFetcher(source string, load func(ctx context.Context) ([]byte, error)) *SpreadsheetFetcher {
	return &SpreadsheetFetcher{source: source, load: load}
}

// NewFileSpreadsheetFetcher reads the workbook from disk on every fetch.
func NewFileSpreadsheetFetcher(path string) *SpreadsheetFetcher {
	return NewSpreadsheetFetcher(path, func(context.Context) ([]byte, error) {
		return os.ReadFile(path)
	})
}

// NewMinIOSpreadsheetFetcher reads the workbook from the configured bucket.
func NewMinIOSpreadsheetFetcher(minio *MinIOService, objectPath string) *SpreadsheetFetcher {
	return NewSpreadsheetFetcher(objectPath, func(ctx context.Context) ([]byte, error) {
		data, err := minio.DownloadFile(ctx, objectPath)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, fmt.Errorf("object %s not found", objectPath)
		}
		return data, nil
	})
}

func (f *SpreadsheetFetcher) Fetch(ctx context.Context, _ string) (*FetchResult, error) {
	data, err := f.load(ctx)
	if err != nil {
		return nil, WrapError(ErrCodeUpstreamUnavailable, "failed to read timetable workbook "+f.source, err)
	}
	classes, err := ParseTimetableXLSX(data)
	if err != nil {
		return nil, WrapError(ErrCodeUpstreamParse, "failed to parse timetable workbook "+f.source, err)
	}
	return &FetchResult{Classes: classes, RawPayload: data}, nil
}

// ParseTimetableXLSX reads the first sheet. The first row is the header;
// columns are located by label and blank rows are skipped.
func ParseTimetableXLSX(data []byte) ([]models.RawClass, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	cols := make(map[string]int)
	for i, cell := range rows[0] {
		label := strings.ToLower(collapseSpaces(cell))
		if _, dup := cols[label]; label != "" && !dup {
			cols[label] = i
		}
	}
	_, hasBuilding := cols["building"]
	_, hasStart := cols["start"]
	_, hasEnd := cols["end"]
	splitTime := hasStart && hasEnd

	setters := make(map[int]func(*models.RawClass, string))
	for label, i := range cols {
		switch label {
		case "building", "room":
			if hasBuilding {
				continue
			}
		case "start", "end":
			if splitTime {
				continue
			}
		}
		if set, ok := timetableColumns[label]; ok {
			setters[i] = set
		}
	}
	if !hasAny(cols, "day", "date") || !(hasAny(cols, "time", "timing") || splitTime) || !hasAny(cols, "course code", "code") {
		return nil, fmt.Errorf("header is missing day, time or course code columns")
	}

	classes := make([]models.RawClass, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		var raw models.RawClass
		for i, cell := range row {
			if set, ok := setters[i]; ok {
				set(&raw, strings.TrimSpace(cell))
			}
		}
		if splitTime {
			raw.Time = cellAt(row, cols["start"]) + "-" + cellAt(row, cols["end"])
		}
		if hasBuilding {
			raw.Venue = joinVenue(cellAt(row, cols["building"]), cellOf(row, cols, "room"))
		}
		classes = append(classes, raw)
	}
	return classes, nil
}

// joinVenue renders building and room the way the portal prints a venue.
func joinVenue(building, room string) string {
	switch {
	case building != "" && room != "":
		return building + "-" + room
	case room != "":
		return "Room " + room
	}
	return building
}

func hasAny(cols map[string]int, labels ...string) bool {
	for _, l := range labels {
		if _, ok := cols[l]; ok {
			return true
		}
	}
	return false
}

func cellOf(row []string, cols map[string]int, label string) string {
	i, ok := cols[label]
	if !ok {
		return ""
	}
	return cellAt(row, i)
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
