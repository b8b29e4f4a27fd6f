package sessionstorage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/errors/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/gemeente-forms/management/internal/sessioninfo"
)

const name = "github.com/gemeente-forms/management/internal/sessionstorage"

var _ Store = (*RedisStore)(nil)

// RedisStore stores session records as JSON values in redis, keyed by
// session ID, with redis enforcing the TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. The prefix namespaces the session keys
// within a shared redis instance.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":session:" + sessionID
}

// Get returns the record for sessionID, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*sessioninfo.Record, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "RedisStore.Get()")
	defer span.End()

	b, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrap(err, "redis.Client.Get()")
	}

	rec := &sessioninfo.Record{}
	if err := json.Unmarshal(b, rec); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal()")
	}

	return rec, nil
}

// Put writes the record with a conditional check on its version. The check
// runs under WATCH so a concurrent writer forces a retryable failure instead
// of a silent lost update.
func (s *RedisStore) Put(ctx context.Context, sessionID string, rec *sessioninfo.Record, ttl time.Duration) error {
	ctx, span := otel.Tracer(name).Start(ctx, "RedisStore.Put()")
	defer span.End()

	key := s.key(sessionID)

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			stored := &sessioninfo.Record{}
			if err := json.Unmarshal(cur, stored); err != nil {
				return errors.Wrap(err, "json.Unmarshal()")
			}
			if stored.Version != rec.Version {
				return ErrVersionMismatch
			}
		case errors.Is(err, redis.Nil):
			if rec.Version != 0 {
				return ErrVersionMismatch
			}
		default:
			return errors.Wrap(err, "redis.Tx.Get()")
		}

		next := *rec
		next.Version++
		next.UpdatedAt = time.Now()
		if next.CreatedAt.IsZero() {
			next.CreatedAt = next.UpdatedAt
		}

		b, err := json.Marshal(&next)
		if err != nil {
			return errors.Wrap(err, "json.Marshal()")
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)

			return nil
		}); err != nil {
			return errors.Wrap(err, "redis.Tx.TxPipelined()")
		}

		rec.Version = next.Version
		rec.CreatedAt = next.CreatedAt
		rec.UpdatedAt = next.UpdatedAt

		return nil
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return ErrVersionMismatch
		}

		return err
	}

	return nil
}

// Delete removes the record.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := otel.Tracer(name).Start(ctx, "RedisStore.Delete()")
	defer span.End()

	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return errors.Wrap(err, "redis.Client.Del()")
	}

	return nil
}

// Touch slides the record's expiry window.
func (s *RedisStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	ctx, span := otel.Tracer(name).Start(ctx, "RedisStore.Touch()")
	defer span.End()

	ok, err := s.client.Expire(ctx, s.key(sessionID), ttl).Result()
	if err != nil {
		return errors.Wrap(err, "redis.Client.Expire()")
	}
	if !ok {
		return ErrNotFound
	}

	return nil
}
