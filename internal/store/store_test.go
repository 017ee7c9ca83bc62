package store

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"legalmind/internal/config"
	"legalmind/internal/models"
	"legalmind/internal/redis"
	"legalmind/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T, ttl time.Duration) *SQLStore {
	t.Helper()
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{
		config.StoreSQLite: {DSN: ":memory:"},
	}}
	db, err := storage.Open(config.StoreSQLite, cfg)
	require.NoError(t, err)
	s, err := NewSQLStore(db, config.StoreSQLite, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func backends(t *testing.T) map[string]Store {
	out := map[string]Store{
		"memory": NewMemoryStore(time.Hour),
		"sqlite": newSQLiteStore(t, time.Hour),
	}
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		host, portStr, _ := strings.Cut(addr, ":")
		port, _ := strconv.Atoi(portStr)
		client, err := redis.NewRedisClient(&config.Config{Redis: config.RedisConfig{Host: host, Port: port}})
		require.NoError(t, err)
		s := NewRedisStore(client, time.Hour)
		t.Cleanup(func() { s.Close() })
		out["redis"] = s
	}
	return out
}

func freshID() string {
	return "test-" + uuid.New().String()
}

func TestDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := freshID()
			_, found, err := s.GetDocument(ctx, id)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.PutDocument(ctx, id, "Lease term: 12 months"))
			text, found, err := s.GetDocument(ctx, id)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "Lease term: 12 months", text)

			again, _, err := s.GetDocument(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, text, again)

			require.NoError(t, s.PutDocument(ctx, id, "replaced"))
			text, _, err = s.GetDocument(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "replaced", text)
		})
	}
}

func TestEmptyDocumentIsFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := freshID()
			require.NoError(t, s.PutDocument(ctx, id, ""))
			text, found, err := s.GetDocument(ctx, id)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Empty(t, text)

			sess, err := s.Session(ctx, id)
			require.NoError(t, err)
			assert.True(t, sess.HasDocument())
		})
	}
}

func TestHistoryAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := freshID()
			history, err := s.History(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, history)

			require.NoError(t, s.AppendMessages(ctx, id,
				models.NewMessage(id, models.RoleUser, "What is an NDA?"),
				models.NewMessage(id, models.RoleAssistant, "A confidentiality agreement."),
			))
			require.NoError(t, s.AppendMessages(ctx, id,
				models.NewMessage(id, models.RoleUser, "Thanks"),
				models.NewMessage(id, models.RoleAssistant, "You're welcome."),
			))

			history, err = s.History(ctx, id)
			require.NoError(t, err)
			require.Len(t, history, 4)
			assert.Equal(t, models.RoleUser, history[0].Role)
			assert.Equal(t, "What is an NDA?", history[0].Content)
			assert.Equal(t, models.RoleAssistant, history[3].Role)
			assert.Equal(t, "You're welcome.", history[3].Content)
			for _, m := range history {
				assert.Equal(t, id, m.SessionID)
			}

			sess, err := s.Session(ctx, id)
			require.NoError(t, err)
			assert.False(t, sess.HasDocument())
		})
	}
}

func TestSessionNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Session(ctx, freshID())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a, b := freshID(), freshID()
			require.NoError(t, s.PutDocument(ctx, a, "doc a"))
			require.NoError(t, s.AppendMessages(ctx, a, models.NewMessage(a, models.RoleUser, "hi")))

			_, found, err := s.GetDocument(ctx, b)
			require.NoError(t, err)
			assert.False(t, found)
			history, err := s.History(ctx, b)
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := freshID()
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					msg := models.NewMessage(id, models.RoleUser, strconv.Itoa(i))
					assert.NoError(t, s.AppendMessages(ctx, id, msg))
				}(i)
			}
			wg.Wait()
			history, err := s.History(ctx, id)
			require.NoError(t, err)
			assert.Len(t, history, 20)
		})
	}
}

func TestMemoryStorePurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	require.NoError(t, s.PutDocument(ctx, "old", "text"))
	s.now = func() time.Time { return base.Add(50 * time.Minute) }
	require.NoError(t, s.PutDocument(ctx, "recent", "text"))

	s.now = func() time.Time { return base.Add(90 * time.Minute) }
	_, found, err := s.GetDocument(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found, "expired session should be invisible before the sweep")

	n, err := s.PurgeExpired(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.Session(ctx, "recent")
	assert.NoError(t, err)
}

func TestSQLStorePurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t, time.Hour)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	require.NoError(t, s.PutDocument(ctx, "old", "text"))
	require.NoError(t, s.AppendMessages(ctx, "old", models.NewMessage("old", models.RoleUser, "hi")))
	s.now = func() time.Time { return base.Add(50 * time.Minute) }
	require.NoError(t, s.AppendMessages(ctx, "recent", models.NewMessage("recent", models.RoleUser, "hi")))

	n, err := s.PurgeExpired(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var left int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = 'old'`).Scan(&left))
	assert.Zero(t, left)

	_, err = s.Session(ctx, "recent")
	assert.NoError(t, err)
}

func TestSQLStoreReusedExpiredIDStartsOver(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t, time.Hour)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.AppendMessages(ctx, "sid", models.NewMessage("sid", models.RoleUser, "old turn")))

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	require.NoError(t, s.AppendMessages(ctx, "sid", models.NewMessage("sid", models.RoleUser, "new turn")))

	history, err := s.History(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "new turn", history[0].Content)
}

func TestOpenSelectsBackend(t *testing.T) {
	cfg := config.Default()
	s, err := Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg.BasicConfig.Store = config.StoreSQLite
	cfg.Databases[config.StoreSQLite] = config.DatabaseConfig{DSN: ":memory:"}
	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLStore{}, s)

	cfg.BasicConfig.Store = "etcd"
	_, err = Open(cfg)
	assert.Error(t, err)
}

func TestStartSweeperStopsWithContext(t *testing.T) {
	s := NewMemoryStore(time.Millisecond)
	require.NoError(t, s.PutDocument(context.Background(), "sid", "text"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartSweeper(ctx, s, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.sessions) == 0
	}, time.Second, 5*time.Millisecond)
}
