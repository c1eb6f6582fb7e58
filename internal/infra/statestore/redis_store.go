// Package statestore implements the progress.Store contract on Redis.
// One JSON blob per learner, one ephemeral slot per reviewer chat.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"student_review_bot/internal/domain/progress"

	"github.com/redis/go-redis/v9"
)

// Key prefixes for namespacing Redis keys.
const (
	prefixLearnerState  = "learner_state:"
	prefixPendingReview = "review_pending:"
)

// pendingReviewTTL bounds the life of an abandoned rejection slot.
const pendingReviewTTL = 24 * time.Hour

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisStore implements progress.Store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects, pings and returns the store.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("state store connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func learnerKey(learnerID int64) string {
	return prefixLearnerState + strconv.FormatInt(learnerID, 10)
}

func pendingKey(chatID int64) string {
	return prefixPendingReview + strconv.FormatInt(chatID, 10)
}

func (s *RedisStore) GetState(ctx context.Context, learnerID int64) (*progress.Data, error) {
	raw, err := s.client.Get(ctx, learnerKey(learnerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, progress.ErrStateNotFound
		}
		return nil, fmt.Errorf("state store get: %w", err)
	}

	var d progress.Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("state store decode: %w", err)
	}
	return &d, nil
}

// PutState persists the whole blob, stamping LastActivityAt. Learner state
// carries no TTL: it lives until explicitly deleted.
func (s *RedisStore) PutState(ctx context.Context, learnerID int64, d progress.Data) error {
	d.LastActivityAt = time.Now()

	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("state store encode: %w", err)
	}
	if err := s.client.Set(ctx, learnerKey(learnerID), raw, 0).Err(); err != nil {
		return fmt.Errorf("state store put: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteState(ctx context.Context, learnerID int64) error {
	if err := s.client.Del(ctx, learnerKey(learnerID)).Err(); err != nil {
		return fmt.Errorf("state store delete: %w", err)
	}
	return nil
}

func (s *RedisStore) GetPendingReview(ctx context.Context, chatID int64) (*progress.PendingReview, error) {
	raw, err := s.client.Get(ctx, pendingKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, progress.ErrStateNotFound
		}
		return nil, fmt.Errorf("state store get pending: %w", err)
	}

	var p progress.PendingReview
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("state store decode pending: %w", err)
	}
	return &p, nil
}

func (s *RedisStore) PutPendingReview(ctx context.Context, chatID int64, p progress.PendingReview) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("state store encode pending: %w", err)
	}
	if err := s.client.Set(ctx, pendingKey(chatID), raw, pendingReviewTTL).Err(); err != nil {
		return fmt.Errorf("state store put pending: %w", err)
	}
	return nil
}

func (s *RedisStore) DeletePendingReview(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, pendingKey(chatID)).Err(); err != nil {
		return fmt.Errorf("state store delete pending: %w", err)
	}
	return nil
}

// ListStates walks learner blobs with SCAN. Background sweeps only.
func (s *RedisStore) ListStates(ctx context.Context) (map[int64]progress.Data, error) {
	states := make(map[int64]progress.Data)

	iter := s.client.Scan(ctx, 0, prefixLearnerState+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		learnerID, err := strconv.ParseInt(strings.TrimPrefix(key, prefixLearnerState), 10, 64)
		if err != nil {
			continue // foreign key in our namespace, skip
		}

		d, err := s.GetState(ctx, learnerID)
		if err != nil {
			if errors.Is(err, progress.ErrStateNotFound) {
				continue // expired between scan and get
			}
			return nil, err
		}
		states[learnerID] = *d
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("state store scan: %w", err)
	}

	return states, nil
}
