// Package redisstore persists remote model metadata in Redis so restarts and
// sibling replicas can serve it before their first successful request.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	modelInfoKey    = "wildfire:model:latest"
	modelDetailsKey = "wildfire:model:details"
	// DefaultTTL bounds how long stale model metadata is served.
	DefaultTTL = 24 * time.Hour
)

// Connect initializes a Redis client from a redis:// URL or host:port.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	if redisURL == "" {
		return nil, errors.New("redis address is empty")
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Store implements predict.MetadataStore on Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps client. A non-positive ttl uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) SaveModelInfo(ctx context.Context, info domain.ModelInfo) error {
	return s.save(ctx, modelInfoKey, info)
}

// LatestModelInfo returns false when nothing has been saved or the entry
// expired.
func (s *Store) LatestModelInfo(ctx context.Context) (domain.ModelInfo, bool, error) {
	var info domain.ModelInfo
	ok, err := s.load(ctx, modelInfoKey, &info)
	return info, ok, err
}

func (s *Store) SaveModelDetails(ctx context.Context, details domain.ModelDetails) error {
	return s.save(ctx, modelDetailsKey, details)
}

func (s *Store) LatestModelDetails(ctx context.Context) (domain.ModelDetails, bool, error) {
	var details domain.ModelDetails
	ok, err := s.load(ctx, modelDetailsKey, &details)
	return details, ok, err
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// CheckReadiness pings Redis.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
