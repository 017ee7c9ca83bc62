package store

import (
	"context"
	"sync"
	"time"

	"legalmind/internal/models"
)

type memorySession struct {
	session models.Session
	history []models.Message
}

// MemoryStore keeps sessions in process memory. State is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// touch returns the live entry for id, creating it if needed. Caller holds mu.
func (s *MemoryStore) touch(id string) *memorySession {
	now := s.now()
	entry, ok := s.sessions[id]
	if !ok || expired(entry.session.UpdatedAt, s.ttl, now) {
		entry = &memorySession{session: models.Session{ID: id, CreatedAt: now}}
		s.sessions[id] = entry
	}
	entry.session.UpdatedAt = now
	return entry
}

// live returns the entry for id unless it is missing or expired. Caller holds mu.
func (s *MemoryStore) live(id string) (*memorySession, bool) {
	entry, ok := s.sessions[id]
	if !ok || expired(entry.session.UpdatedAt, s.ttl, s.now()) {
		return nil, false
	}
	return entry, true
}

func (s *MemoryStore) PutDocument(_ context.Context, sessionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.touch(sessionID)
	doc := text
	entry.session.DocumentContext = &doc
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.live(sessionID)
	if !ok || entry.session.DocumentContext == nil {
		return "", false, nil
	}
	return *entry.session.DocumentContext, true, nil
}

func (s *MemoryStore) AppendMessages(_ context.Context, sessionID string, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.touch(sessionID)
	for _, m := range msgs {
		cp := *m
		cp.SessionID = sessionID
		cp.ID = int64(len(entry.history) + 1)
		entry.history = append(entry.history, cp)
	}
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.live(sessionID)
	if !ok {
		return []*models.Message{}, nil
	}
	out := make([]*models.Message, len(entry.history))
	for i := range entry.history {
		m := entry.history[i]
		out[i] = &m
	}
	return out, nil
}

func (s *MemoryStore) Session(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.live(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	sess := entry.session
	if sess.DocumentContext != nil {
		doc := *sess.DocumentContext
		sess.DocumentContext = &doc
	}
	return &sess, nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.sessions {
		if expired(entry.session.UpdatedAt, s.ttl, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }
