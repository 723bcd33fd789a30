package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"timetable-api/models"
)

// ChangeEvent is what a Notifier receives after a refresh that changed something.
type ChangeEvent struct {
	RefreshID  string                  `json:"refreshId"`
	CapturedAt time.Time               `json:"capturedAt"`
	Changes    []models.ScheduleChange `json:"changes"`
}

type Notifier interface {
	Notify(ctx context.Context, event ChangeEvent) error
}

// LogNotifier writes one line per change.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event ChangeEvent) error {
	for _, c := range event.Changes {
		log.Printf("Notifier - %s %s on %s: %q -> %q", c.Kind, c.CourseCode, c.Day, c.Previous, c.New)
	}
	return nil
}

// RedisNotifier publishes the event as JSON for browser push workers.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// MultiNotifier fans out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event ChangeEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
