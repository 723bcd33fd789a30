package services

import (
	"context"
	"time"

	"timetable-api/models"
)

// CacheStore holds exactly one current snapshot. Save replaces it wholesale
// and a concurrent Load sees either the old record or the new one, never a
// mix. Load returns (nil, nil) while nothing has been saved.
type CacheStore interface {
	Load(ctx context.Context) (*models.CacheRecord, error)
	Save(ctx context.Context, snapshot models.TimetableSnapshot) error
	// LastUpdatedAt reads only metadata; ok is false while nothing is stored.
	LastUpdatedAt(ctx context.Context) (capturedAt time.Time, ok bool, err error)
}

// recordMeta is the metadata kept next to a serialized snapshot.
type recordMeta struct {
	CapturedAt time.Time `json:"capturedAt"`
	SavedAt    time.Time `json:"savedAt"`
	ClassCount int       `json:"classCount"`
}
