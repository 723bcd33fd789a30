package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"timetable-api/models"
)

// RedisStore writes the record and its metadata key inside one MULTI so
// neither is ever visible without the other.
type RedisStore struct {
	client  *redis.Client
	dataKey string
	metaKey string
	now     func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client:  client,
		dataKey: prefix + ":current",
		metaKey: prefix + ":meta",
		now:     time.Now,
	}
}

func (s *RedisStore) Load(ctx context.Context) (*models.CacheRecord, error) {
	value, err := s.client.Get(ctx, s.dataKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var record models.CacheRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) Save(ctx context.Context, snapshot models.TimetableSnapshot) error {
	record := models.CacheRecord{Snapshot: snapshot, SavedAt: s.now().UTC()}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	meta, err := json.Marshal(recordMeta{CapturedAt: snapshot.CapturedAt, SavedAt: record.SavedAt, ClassCount: len(snapshot.Entries)})
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.dataKey, data, 0)
		pipe.Set(ctx, s.metaKey, meta, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) LastUpdatedAt(ctx context.Context) (time.Time, bool, error) {
	value, err := s.client.Get(ctx, s.metaKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta recordMeta
	if err := json.Unmarshal(value, &meta); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta.CapturedAt, true, nil
}
