package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 3

// RedisStore keeps profiles as JSON strings under <prefix>user_profile_<id>
// and the current-session pointer under <prefix>current_session.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. prefix namespaces every key.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(sessionID string) string { return s.prefix + profileKey(sessionID) }

func (s *RedisStore) Load(ctx context.Context, sessionID string) (Profile, error) {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return Profile{}, err
	}
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("redis get profile: %w", err)
	}
	return decode(sessionID, data)
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, p Profile) error {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return err
	}
	data, err := encode(p)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(sessionID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set profile: %w", err)
	}
	return nil
}

// Update performs an optimistic WATCH/MULTI transaction, retrying when another
// writer touched the key in between.
func (s *RedisStore) Update(ctx context.Context, sessionID string, fn UpdateFunc) (Profile, error) {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return Profile{}, err
	}
	key := s.key(sessionID)

	var out Profile
	txf := func(tx *redis.Tx) error {
		var (
			p     Profile
			found bool
		)
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if p, err = decode(sessionID, data); err == nil {
				found = true
			}
		}
		if err := fn(&p, found); err != nil {
			return err
		}
		enc, err := encode(p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, enc, 0)
			return nil
		})
		if err == nil {
			out = p
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err = s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return Profile{}, err
	}
	return out, nil
}

func (s *RedisStore) SessionIDs(ctx context.Context) ([]string, error) {
	match := s.prefix + profileKeyPrefix + "*"
	var out []string
	iter := s.rdb.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), s.prefix+profileKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan profiles: %w", err)
	}
	return out, nil
}

func (s *RedisStore) SetCurrentSession(ctx context.Context, sessionID string) error {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+currentSessionKey, sessionID, 0).Err()
}

func (s *RedisStore) CurrentSession(ctx context.Context) (string, error) {
	id, err := s.rdb.Get(ctx, s.prefix+currentSessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get current session: %w", err)
	}
	return id, nil
}

func (s *RedisStore) ClearCurrentSession(ctx context.Context) error {
	return s.rdb.Del(ctx, s.prefix+currentSessionKey).Err()
}

// Ping is used by the readiness probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
