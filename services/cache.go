package services

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"timetable-api/models"
)

const (
	currentRecordKey = "timetable:current"
	currentMetaKey   = "timetable:meta"
)

// CacheService is the in-process CacheStore. Records are cloned on the way
// in and out, so a stored record is never mutated after Save.
type CacheService struct {
	cache *cache.Cache
	now   func() time.Time
}

func NewCacheService() *CacheService {
	return &CacheService{
		cache: cache.New(cache.NoExpiration, 0),
		now:   time.Now,
	}
}

func (s *CacheService) Load(_ context.Context) (*models.CacheRecord, error) {
	cached, found := s.cache.Get(currentRecordKey)
	if !found {
		return nil, nil
	}
	return cached.(*models.CacheRecord).Clone(), nil
}

func (s *CacheService) Save(_ context.Context, snapshot models.TimetableSnapshot) error {
	record := &models.CacheRecord{Snapshot: snapshot.Clone(), SavedAt: s.now()}
	meta := recordMeta{CapturedAt: snapshot.CapturedAt, SavedAt: record.SavedAt, ClassCount: len(snapshot.Entries)}

	// Record first: a reader seeing fresh metadata must also see the fresh record.
	s.cache.Set(currentRecordKey, record, cache.NoExpiration)
	s.cache.Set(currentMetaKey, meta, cache.NoExpiration)
	return nil
}

func (s *CacheService) LastUpdatedAt(_ context.Context) (time.Time, bool, error) {
	cached, found := s.cache.Get(currentMetaKey)
	if !found {
		return time.Time{}, false, nil
	}
	return cached.(recordMeta).CapturedAt, true, nil
}

func (s *CacheService) Flush() {
	s.cache.Flush()
}
