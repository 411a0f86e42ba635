package collector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/bibwatch/internal/result"
)

// Store persists the complete result set. Save always receives every known
// result; implementations replace what they held before.
type Store interface {
	Load(ctx context.Context) ([]result.Snapshot, error)
	Save(ctx context.Context, snapshots []result.Snapshot) error
	Close() error
}

// FileStore keeps one line per result in a plain text file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore prepares path for writing. It fails if the parent directory or
// the file cannot be created, which callers treat as fatal at startup.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}
	_ = f.Close()
	return &FileStore{path: path, logger: logger}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads all rows. A missing file is an empty set; unparsable lines are
// skipped with a warning.
func (s *FileStore) Load(_ context.Context) ([]result.Snapshot, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []result.Snapshot
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		snap, err := result.ParseRow(text)
		if err != nil {
			s.logger.Warn("skipping store line", "path", s.path, "line", line, "error", err)
			continue
		}
		out = append(out, snap)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}
	return out, nil
}

// Save rewrites the whole file through a temporary file and rename.
func (s *FileStore) Save(_ context.Context, snapshots []result.Snapshot) error {
	var b strings.Builder
	for _, snap := range snapshots {
		row, err := result.MarshalRow(snap)
		if err != nil {
			s.logger.Warn("result not stored", "identity", snap.Identity, "error", err)
			continue
		}
		b.WriteString(row)
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open.
func (s *FileStore) Close() error { return nil }
