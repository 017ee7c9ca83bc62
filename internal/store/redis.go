package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"legalmind/internal/models"
	"legalmind/internal/redis"

	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "legalmind:session:"

// RedisStore keeps each session in three keys (document, history list, meta hash)
// whose TTL is refreshed on every write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func documentKey(id string) string { return redisKeyPrefix + id + ":document" }
func historyKey(id string) string  { return redisKeyPrefix + id + ":history" }
func metaKey(id string) string     { return redisKeyPrefix + id + ":meta" }

// touch stamps meta and refreshes the TTL of every key of the session.
func (s *RedisStore) touch(ctx context.Context, pipe goredis.Pipeliner, id string) {
	now := s.now().Format(time.RFC3339Nano)
	pipe.HSetNX(ctx, metaKey(id), "created_at", now)
	pipe.HSet(ctx, metaKey(id), "updated_at", now)
	if s.ttl > 0 {
		for _, key := range []string{documentKey(id), historyKey(id), metaKey(id)} {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
}

func (s *RedisStore) PutDocument(ctx context.Context, sessionID, text string) error {
	err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, documentKey(sessionID), text, s.ttl)
		s.touch(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

func (s *RedisStore) GetDocument(ctx context.Context, sessionID string) (string, bool, error) {
	text, err := s.client.Get(ctx, documentKey(sessionID))
	if errors.Is(err, redis.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get document: %w", err)
	}
	return text, true, nil
}

func (s *RedisStore) AppendMessages(ctx context.Context, sessionID string, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		cp.SessionID = sessionID
		cp.ID = 0
		raw, err := json.Marshal(cp)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		values = append(values, raw)
	}
	err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, historyKey(sessionID), values...)
		s.touch(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]*models.Message, error) {
	raw, err := s.client.LRange(ctx, historyKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]*models.Message, 0, len(raw))
	for i, item := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		m.ID = int64(i + 1)
		out = append(out, &m)
	}
	return out, nil
}

func (s *RedisStore) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	meta, err := s.client.HGetAll(ctx, metaKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(meta) == 0 {
		return nil, ErrNotFound
	}
	sess := &models.Session{ID: sessionID}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta["created_at"])
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, meta["updated_at"])
	text, found, err := s.GetDocument(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if found {
		sess.DocumentContext = &text
	}
	return sess, nil
}

// PurgeExpired is a no-op: redis expires the keys itself.
func (s *RedisStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the connection so turn locks can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
