package canvas

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures RedisStore.
type RedisConfig struct {
	// URL is a redis:// connection string.
	URL string
	// Prefix namespaces every key. Defaults to "whiteboard:".
	Prefix string
}

// RedisStore keeps each session in a hash, names in plain keys reserved with
// SETNX, and a sorted set of ids scored by update time for listing.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreFromClient(client, cfg.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "whiteboard:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) sessionKey(id string) string { return s.prefix + "session:" + id }
func (s *RedisStore) nameKey(name string) string { return s.prefix + "name:" + name }
func (s *RedisStore) indexKey() string { return s.prefix + "sessions:updated" }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) CreateSession(ctx context.Context, session *Session) error {
	if err := prepareSession(session, uuid.NewString); err != nil {
		return err
	}
	raw, err := encodeElements(session.Elements)
	if err != nil {
		return err
	}

	exists, err := s.client.Exists(ctx, s.sessionKey(session.ID)).Result()
	if err != nil {
		return fmt.Errorf("create whiteboard session: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}
	if session.Name != "" {
		reserved, err := s.client.SetNX(ctx, s.nameKey(session.Name), session.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("reserve session name: %w", err)
		}
		if !reserved {
			return ErrAlreadyExists
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionKey(session.ID),
			"id", session.ID,
			"name", session.Name,
			"elements", string(raw),
			"created_at", formatNanos(session.CreatedAt),
			"updated_at", formatNanos(session.UpdatedAt),
		)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(session.UpdatedAt.UnixMilli()), Member: session.ID})
		return nil
	})
	if err != nil {
		if session.Name != "" {
			_ = s.client.Del(ctx, s.nameKey(session.Name)).Err()
		}
		return fmt.Errorf("create whiteboard session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*Session, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get whiteboard session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	session := &Session{
		ID:        fields["id"],
		Name:      fields["name"],
		CreatedAt: parseNanos(fields["created_at"]),
		UpdatedAt: parseNanos(fields["updated_at"]),
	}
	session.Elements, err = decodeElements([]byte(fields["elements"]))
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *RedisStore) GetSessionByName(ctx context.Context, name string) (*Session, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	id, err := s.client.Get(ctx, s.nameKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get whiteboard session by name: %w", err)
	}
	return s.GetSession(ctx, id)
}

func (s *RedisStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(normalizeLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list whiteboard sessions: %w", err)
	}
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		vals, err := s.client.HMGet(ctx, s.sessionKey(id), "name", "created_at", "updated_at").Result()
		if err != nil {
			return nil, fmt.Errorf("list whiteboard sessions: %w", err)
		}
		if vals[2] == nil {
			continue
		}
		name, _ := vals[0].(string)
		created, _ := vals[1].(string)
		updated, _ := vals[2].(string)
		sessions = append(sessions, &Session{
			ID:        id,
			Name:      name,
			CreatedAt: parseNanos(created),
			UpdatedAt: parseNanos(updated),
		})
	}
	return sessions, nil
}

func (s *RedisStore) SaveElements(ctx context.Context, id string, elements []Element) error {
	raw, err := encodeElements(elements)
	if err != nil {
		return err
	}
	exists, err := s.client.Exists(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("save whiteboard elements: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	now := time.Now().UTC()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionKey(id), "elements", string(raw), "updated_at", formatNanos(now))
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(now.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save whiteboard elements: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	name, err := s.client.HGet(ctx, s.sessionKey(id), "name").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("delete whiteboard session: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		if name != "" {
			pipe.Del(ctx, s.nameKey(name))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete whiteboard session: %w", err)
	}
	return nil
}

func formatNanos(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseNanos(value string) time.Time {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
