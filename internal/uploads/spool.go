package uploads

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"legalmind/internal/logging"
	"legalmind/internal/models"
)

const (
	DefaultTempFileTTL             = time.Hour
	DefaultTempFileCleanupInterval = 10 * time.Minute
)

// Spool keeps a temporary copy of each uploaded file under dir/<session>/<name>
// until its TTL runs out.
type Spool struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	files map[string]*models.TempFile
}

func NewSpool(dir string, ttl time.Duration) (*Spool, error) {
	if dir == "" {
		return nil, errors.New("upload dir is required")
	}
	if ttl <= 0 {
		ttl = DefaultTempFileTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Spool{
		dir:   dir,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
		files: make(map[string]*models.TempFile),
	}, nil
}

// Save writes content for the session and returns its record.
func (s *Spool) Save(sessionID, fileName string, content []byte) (*models.TempFile, error) {
	name := sanitizeName(fileName)
	if name == "" {
		return nil, errors.New("file name is required")
	}
	sessionDir := filepath.Join(s.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	path := filepath.Join(sessionDir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	now := s.now()
	tf := &models.TempFile{
		SessionID:  sessionID,
		FileName:   name,
		StoredPath: path,
		MimeType:   mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Size:       int64(len(content)),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	s.mu.Lock()
	s.files[path] = tf
	s.mu.Unlock()
	return tf, nil
}

// Remove deletes a spooled file right away.
func (s *Spool) Remove(tf *models.TempFile) {
	if tf == nil {
		return
	}
	s.mu.Lock()
	delete(s.files, tf.StoredPath)
	s.mu.Unlock()
	if err := os.Remove(tf.StoredPath); err != nil && !os.IsNotExist(err) {
		logging.Logger().Warn("remove temp file failed", "path", tf.StoredPath, "error", err)
	}
	// prune empty directories
	_ = os.Remove(filepath.Dir(tf.StoredPath))
}

func (s *Spool) StartTempFileCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTempFileCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Spool) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.cleanupExpiredFiles(); err != nil {
				logging.Logger().Error("cleanup temp files error", "error", err)
			} else if n > 0 {
				logging.Logger().Info("removed expired temp files", "count", n)
			}
		}
	}
}

// cleanupExpiredFiles removes tracked files past their expiry and untracked leftovers
// from earlier runs whose mtime is older than the TTL.
func (s *Spool) cleanupExpiredFiles() (int, error) {
	now := s.now()
	s.mu.Lock()
	var expired []*models.TempFile
	for path, tf := range s.files {
		if !tf.ExpiresAt.After(now) {
			expired = append(expired, tf)
			delete(s.files, path)
		}
	}
	tracked := make(map[string]bool, len(s.files))
	for path := range s.files {
		tracked[path] = true
	}
	s.mu.Unlock()

	removed := 0
	for _, tf := range expired {
		if err := os.Remove(tf.StoredPath); err != nil && !os.IsNotExist(err) {
			logging.Logger().Warn("remove temp file failed", "path", tf.StoredPath, "error", err)
			continue
		}
		removed++
		_ = os.Remove(filepath.Dir(tf.StoredPath))
	}

	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || tracked[path] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) < s.ttl {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
			_ = os.Remove(filepath.Dir(path))
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return removed, fmt.Errorf("walk upload dir: %w", err)
	}
	return removed, nil
}

// sanitizeName keeps only the base name so uploads cannot escape the session dir.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
