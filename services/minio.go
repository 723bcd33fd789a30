package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"timetable-api/config"
	"timetable-api/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	capturedAtMetaKey = "Captured-At"
	classCountMetaKey = "Class-Count"
)

type MinIOService struct {
	client *minio.Client
	bucket string
}

func NewMinIOService(cfg *config.Config) (*MinIOService, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOService{
		client: client,
		bucket: cfg.MinIOBucket,
	}, nil
}

// EnsureBucket creates the bucket when it is missing.
func (s *MinIOService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	log.Printf("MinIOService - creating bucket %s", s.bucket)
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// StatMetadata returns the user metadata of an object, or ok=false if it does not exist.
func (s *MinIOService) StatMetadata(ctx context.Context, objectPath string) (map[string]string, bool, error) {
	info, err := s.client.StatObject(ctx, s.bucket, objectPath, minio.StatObjectOptions{})
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, err
	}
	return info.UserMetadata, true, nil
}

// DownloadFile returns nil data and no error when the object does not exist.
func (s *MinIOService) DownloadFile(ctx context.Context, objectPath string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return data, nil
}

func (s *MinIOService) UploadFile(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string, meta map[string]string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectPath, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// MinIOStore keeps the snapshot as one JSON object. A PUT replaces the
// object atomically, and the capture time rides along as user metadata so
// LastUpdatedAt only needs a HEAD request.
type MinIOStore struct {
	minio     *MinIOService
	objectKey string
	now       func() time.Time
}

func NewMinIOStore(minio *MinIOService, objectKey string) *MinIOStore {
	return &MinIOStore{minio: minio, objectKey: objectKey, now: time.Now}
}

func (s *MinIOStore) Load(ctx context.Context) (*models.CacheRecord, error) {
	data, err := s.minio.DownloadFile(ctx, s.objectKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var record models.CacheRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &record, nil
}

func (s *MinIOStore) Save(ctx context.Context, snapshot models.TimetableSnapshot) error {
	record := models.CacheRecord{Snapshot: snapshot, SavedAt: s.now().UTC()}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	meta := map[string]string{
		capturedAtMetaKey: snapshot.CapturedAt.UTC().Format(time.RFC3339Nano),
		classCountMetaKey: strconv.Itoa(len(snapshot.Entries)),
	}
	return s.minio.UploadFile(ctx, s.objectKey, bytes.NewReader(data), int64(len(data)), "application/json", meta)
}

func (s *MinIOStore) LastUpdatedAt(ctx context.Context) (time.Time, bool, error) {
	meta, ok, err := s.minio.StatMetadata(ctx, s.objectKey)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	raw, found := meta[capturedAtMetaKey]
	if !found {
		return time.Time{}, false, fmt.Errorf("object %s has no %s metadata", s.objectKey, capturedAtMetaKey)
	}
	capturedAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid %s metadata: %w", capturedAtMetaKey, err)
	}
	return capturedAt, true, nil
}
