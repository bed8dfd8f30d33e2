package notes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Separator is appended after every note so consecutive appends stay
// readable as separate paragraphs.
const Separator = "\n\n"

const probeName = ".health_check.md"

// Store appends note text to durable storage. Implementations never
// overwrite existing content.
type Store interface {
	Backend() string
	Append(ctx context.Context, name, text string) (string, error)
	Probe(ctx context.Context) error
}

type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, errors.New("notes directory is required")
	}
	return &FileStore{dir: trimmed}, nil
}

func (s *FileStore) Backend() string {
	return "file"
}

// Append writes text plus Separator to the end of dir/name. name must be a
// bare file name.
func (s *FileStore) Append(_ context.Context, name, text string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid note name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create notes dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open note %q: %w", name, err)
	}
	if _, err := f.WriteString(text + Separator); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write note %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close note %q: %w", name, err)
	}
	return path, nil
}

func (s *FileStore) Probe(ctx context.Context) error {
	path, err := s.Append(ctx, probeName, "health check")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove probe note: %w", err)
	}
	return nil
}
