// Package status records the outcome of sync runs so operators and the API
// can see when a course was last reconciled and how it went.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoRun reports that a course has no recorded sync run.
var ErrNoRun = errors.New("no sync run recorded")

// RunRecord is the stored outcome of one reconciliation run.
type RunRecord struct {
	RunID         string    `json:"run_id"`
	CourseID      int64     `json:"course_id"`
	Pipeline      string    `json:"pipeline"` // "legacy" or "current"
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	OK            bool      `json:"ok"`
	Error         string    `json:"error,omitempty"`
	TagCount      int       `json:"tag_count"`
	QuestionCount int       `json:"question_count"`
}

// RedisStore keeps the last run record per course in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection. Records
// expire after ttl; a zero ttl keeps them until overwritten.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "syncrun:", ttl: ttl}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "syncrun:"}
}

func (s *RedisStore) key(courseID int64) string {
	return s.prefix + strconv.FormatInt(courseID, 10)
}

// SaveRun stores the record as the course's last run.
func (s *RedisStore) SaveRun(ctx context.Context, record RunRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(record.CourseID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}
	return nil
}

// LastRun returns the course's last recorded run, or ErrNoRun.
func (s *RedisStore) LastRun(ctx context.Context, courseID int64) (RunRecord, error) {
	payload, err := s.client.Get(ctx, s.key(courseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return RunRecord{}, ErrNoRun
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("load run record: %w", err)
	}
	var record RunRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return RunRecord{}, fmt.Errorf("decode run record: %w", err)
	}
	return record, nil
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
