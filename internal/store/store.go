package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"legalmind/internal/config"
	"legalmind/internal/logging"
	"legalmind/internal/models"
	"legalmind/internal/redis"
	"legalmind/internal/storage"
)

// ErrNotFound is returned when a session has never been seen or has expired.
var ErrNotFound = errors.New("session not found")

// DocumentStore maps a session id to the text extracted from its uploaded document.
type DocumentStore interface {
	// PutDocument stores text for the session, overwriting any prior value.
	PutDocument(ctx context.Context, sessionID, text string) error
	// GetDocument reports found=false when no document was ever put for the session.
	GetDocument(ctx context.Context, sessionID string) (string, bool, error)
}

// HistoryStore keeps the append-only conversation of each session.
type HistoryStore interface {
	AppendMessages(ctx context.Context, sessionID string, msgs ...*models.Message) error
	// History returns the session's messages oldest first; unknown sessions yield an empty slice.
	History(ctx context.Context, sessionID string) ([]*models.Message, error)
}

// Store is the full session backend used by the server.
type Store interface {
	DocumentStore
	HistoryStore
	Session(ctx context.Context, sessionID string) (*models.Session, error)
	// PurgeExpired drops sessions idle for longer than the configured TTL.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// Open builds the backend selected by basic_config.store.
func Open(cfg *config.Config) (Store, error) {
	ttl := cfg.SessionTTL()
	switch backend := strings.ToLower(cfg.BasicConfig.Store); backend {
	case config.StoreMemory, "":
		return NewMemoryStore(ttl), nil
	case config.StoreRedis:
		client, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return NewRedisStore(client, ttl), nil
	case config.StoreSQLite, "sqlite", config.StoreMySQL:
		dialect := storage.Dialect(backend)
		db, err := storage.Open(dialect, cfg)
		if err != nil {
			return nil, err
		}
		s, err := NewSQLStore(db, dialect, ttl)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.BasicConfig.Store)
	}
}

// StartSweeper purges expired sessions every interval until ctx is cancelled.
func StartSweeper(ctx context.Context, s Store, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := s.PurgeExpired(ctx, now.UTC())
				if err != nil {
					logging.Logger().Error("purge expired sessions failed", "error", err)
					continue
				}
				if n > 0 {
					logging.Logger().Info("purged expired sessions", "count", n)
				}
			}
		}
	}()
}

func expired(updated time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && updated.Add(ttl).Before(now)
}
