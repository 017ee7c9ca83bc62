package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"legalmind/internal/models"
	"legalmind/internal/storage"
)

// SQLStore persists sessions and messages in sqlite3 or mysql.
type SQLStore struct {
	db      *sql.DB
	dialect string
	ttl     time.Duration
	now     func() time.Time
}

// NewSQLStore migrates db and wraps it. The store owns db from here on.
func NewSQLStore(db *sql.DB, dialect string, ttl time.Duration) (*SQLStore, error) {
	dialect = storage.Dialect(dialect)
	if err := storage.Migrate(db, dialect); err != nil {
		return nil, err
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SQLStore) upsertDocumentSQL() string {
	if s.dialect == "mysql" {
		return `INSERT INTO sessions (id, document_context, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE document_context = VALUES(document_context), updated_at = VALUES(updated_at)`
	}
	return `INSERT INTO sessions (id, document_context, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document_context = excluded.document_context, updated_at = excluded.updated_at`
}

func (s *SQLStore) ensureSessionSQL() string {
	if s.dialect == "mysql" {
		return `INSERT IGNORE INTO sessions (id, document_context, created_at, updated_at) VALUES (?, NULL, ?, ?)`
	}
	return `INSERT OR IGNORE INTO sessions (id, document_context, created_at, updated_at) VALUES (?, NULL, ?, ?)`
}

func (s *SQLStore) PutDocument(ctx context.Context, sessionID, text string) error {
	if err := s.dropIfExpired(ctx, sessionID); err != nil {
		return err
	}
	now := s.now()
	if _, err := s.db.ExecContext(ctx, s.upsertDocumentSQL(), sessionID, text, now, now); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

func (s *SQLStore) GetDocument(ctx context.Context, sessionID string) (string, bool, error) {
	var (
		doc     sql.NullString
		updated time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT document_context, updated_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&doc, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get document: %w", err)
	}
	if !doc.Valid || expired(updated, s.ttl, s.now()) {
		return "", false, nil
	}
	return doc.String, true, nil
}

func (s *SQLStore) AppendMessages(ctx context.Context, sessionID string, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := s.dropIfExpired(ctx, sessionID); err != nil {
		return err
	}
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.ensureSessionSQL(), sessionID, now, now); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			sessionID, string(m.Role), m.Content, m.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit messages: %w", err)
	}
	return nil
}

func (s *SQLStore) History(ctx context.Context, sessionID string) ([]*models.Message, error) {
	if _, err := s.Session(ctx, sessionID); errors.Is(err, ErrNotFound) {
		return []*models.Message{}, nil
	} else if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		var (
			m    models.Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = models.Role(role)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

func (s *SQLStore) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	var (
		sess models.Session
		doc  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_context, created_at, updated_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&sess.ID, &doc, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if expired(sess.UpdatedAt, s.ttl, s.now()) {
		return nil, ErrNotFound
	}
	if doc.Valid {
		sess.DocumentContext = &doc.String
	}
	return &sess, nil
}

// dropIfExpired deletes a stale row so a reused id starts over instead of reviving old state.
func (s *SQLStore) dropIfExpired(ctx context.Context, sessionID string) error {
	if s.ttl <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.ttl)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id IN (SELECT id FROM sessions WHERE id = ? AND updated_at < ?)`,
		sessionID, cutoff,
	); err != nil {
		return fmt.Errorf("drop expired messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND updated_at < ?`, sessionID, cutoff,
	); err != nil {
		return fmt.Errorf("drop expired session: %w", err)
	}
	return nil
}

func (s *SQLStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := now.UTC().Add(-s.ttl)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id IN (SELECT id FROM sessions WHERE updated_at < ?)`, cutoff,
	); err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return int(n), nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
