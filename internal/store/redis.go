package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pencil-me-in-backend/config"
	"pencil-me-in-backend/internal/event"
)

// NewRedisClient returns a configured Redis client after checking connectivity.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// redisStore keeps each event as a JSON string under prefix+id and tracks ids in a
// sorted set scored by first save time.
type redisStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisStore creates a Redis-backed event store.
func NewRedisStore(client *redis.Client, prefix string, log *zap.Logger) EventStore {
	return &redisStore{client: client, prefix: prefix, log: log}
}

func (s *redisStore) key(id string) string { return s.prefix + id }

func (s *redisStore) indexKey() string { return s.prefix + "_index" }

// Save overwrites the stored event.
func (s *redisStore) Save(ctx context.Context, ev *event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(ev.ID), payload, 0)
		pipe.ZAddNX(ctx, s.indexKey(), redis.Z{Score: float64(time.Now().UnixNano()), Member: ev.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", ev.ID, err)
	}
	return nil
}

// Load fetches a single event.
func (s *redisStore) Load(ctx context.Context, id string) (*event.Event, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	return decodeEvent(id, payload)
}

// Delete removes the event and its index entry.
func (s *redisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadAll returns every indexed event in save order. Unreadable or dangling entries
// are logged and skipped.
func (s *redisStore) LoadAll(ctx context.Context) ([]*event.Event, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if len(ids) == 0 {
		return []*event.Event{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	events := make([]*event.Event, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			s.log.Warn("event missing from index", zap.String("event_id", ids[i]))
			continue
		}
		ev, err := decodeEvent(ids[i], []byte(raw))
		if err != nil {
			s.log.Warn("skipping unreadable event", zap.String("event_id", ids[i]), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
