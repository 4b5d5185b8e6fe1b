package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
	"github.com/nerrad567/robotlan-core/internal/robot"
)

// Redis key prefixes.
const (
	lastAddressPrefix = "robot:lastip:"
	statusPrefix      = "robot:state:"
	favoritesPrefix   = "robot:favorites:"
)

// RedisStore implements Store on Redis. Addresses and statuses expire
// after the configured TTL; favorites never do.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisStore{client: client, ttl: cfg.TTL()}, nil
}

func (s *RedisStore) LastAddress(ctx context.Context, robotID string) (string, error) {
	addr, err := s.client.Get(ctx, lastAddressPrefix+robotID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading last address: %w", err)
	}
	return addr, nil
}

func (s *RedisStore) SetLastAddress(ctx context.Context, robotID, address string) error {
	if err := s.client.Set(ctx, lastAddressPrefix+robotID, address, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving last address: %w", err)
	}
	return nil
}

func (s *RedisStore) Favorites(ctx context.Context, robotID string) ([]robot.Favorite, error) {
	var favorites []robot.Favorite
	if _, err := s.getJSON(ctx, favoritesPrefix+robotID, &favorites); err != nil {
		return nil, fmt.Errorf("reading favorites: %w", err)
	}
	return favorites, nil
}

func (s *RedisStore) SaveFavorites(ctx context.Context, robotID string, favorites []robot.Favorite) error {
	if err := s.setJSON(ctx, favoritesPrefix+robotID, favorites, 0); err != nil {
		return fmt.Errorf("saving favorites: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveStatus(ctx context.Context, snap StatusSnapshot) error {
	if err := s.setJSON(ctx, statusPrefix+snap.RobotID, snap, s.ttl); err != nil {
		return fmt.Errorf("saving status: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadStatus(ctx context.Context, robotID string) (StatusSnapshot, bool, error) {
	var snap StatusSnapshot
	ok, err := s.getJSON(ctx, statusPrefix+robotID, &snap)
	if err != nil {
		return StatusSnapshot{}, false, fmt.Errorf("reading status: %w", err)
	}
	return snap, ok, nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}
