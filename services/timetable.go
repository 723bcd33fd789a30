package services

import (
	"context"
	"time"

	"timetable-api/models"
)

// TimetableService is the read path. It only ever reads the store.
type TimetableService struct {
	store CacheStore
}

func NewTimetableService(store CacheStore) *TimetableService {
	return &TimetableService{store: store}
}

// GetCurrent returns the last stored snapshot, or ErrNotFound before the first refresh.
func (s *TimetableService) GetCurrent(ctx context.Context) (*models.TimetableSnapshot, error) {
	record, err := s.store.Load(ctx)
	if err != nil {
		return nil, WrapError(ErrCodeCacheIO, "failed to load cached timetable", err)
	}
	if record == nil {
		return nil, ErrNotFound
	}

	snapshot := record.Snapshot
	entries, err := NormalizeEntries(snapshot.Entries)
	if err != nil {
		return nil, WrapError(ErrCodeCacheIO, "cached timetable is malformed", err)
	}
	snapshot.Entries = entries
	return &snapshot, nil
}

// LastUpdated is a metadata-only read for status reporting.
func (s *TimetableService) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	return s.store.LastUpdatedAt(ctx)
}
