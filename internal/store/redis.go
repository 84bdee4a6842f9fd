package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/campusdesk/meeting-gateway/internal/models"
)

const keyPrefix = "meeting:"

// Transient store failures are retried here, at the adapter layer,
// so individual event handlers never see them.
const (
	retryAttempts = 3
	retryBackoff  = 50 * time.Millisecond
)

// RedisStore is the production SessionStore, one JSON blob per
// meeting with a native Redis TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close closes the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, meetingID string) (*models.MeetingSession, error) {
	var data string
	err := s.retry(ctx, "get", meetingID, func() error {
		var err error
		data, err = s.client.Get(ctx, keyPrefix+meetingID).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", meetingID, err)
	}

	var session models.MeetingSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", meetingID, err)
	}
	return &session, nil
}

func (s *RedisStore) Set(ctx context.Context, meetingID string, session *models.MeetingSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", meetingID, err)
	}
	err = s.retry(ctx, "set", meetingID, func() error {
		return s.client.Set(ctx, keyPrefix+meetingID, data, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", meetingID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, meetingID string) error {
	err := s.retry(ctx, "del", meetingID, func() error {
		return s.client.Del(ctx, keyPrefix+meetingID).Err()
	})
	if err != nil {
		return fmt.Errorf("redis del %s: %w", meetingID, err)
	}
	return nil
}

// retry runs op up to retryAttempts times. redis.Nil is a definitive
// answer, not a failure, and is returned immediately.
func (s *RedisStore) retry(ctx context.Context, op, meetingID string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, redis.Nil) {
			return err
		}
		log.Warn().Err(err).
			Str("op", op).
			Str("meetingId", meetingID).
			Int("attempt", attempt).
			Msg("session store operation failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}
