// Package file persists the crawl cursor as a JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// Store keeps the cursor in a single JSON document.
type Store struct {
	path string
}

// New returns a store writing to path.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	return &Store{path: path}, nil
}

// Load reads the cursor. A missing file means no cursor.
func (s *Store) Load(_ context.Context) (crawler.Cursor, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return crawler.Cursor{}, false, nil
	}
	if err != nil {
		return crawler.Cursor{}, false, fmt.Errorf("read checkpoint: %w", err)
	}
	var cursor crawler.Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return crawler.Cursor{}, false, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	if cursor.SearchTerm == "" {
		return crawler.Cursor{}, false, nil
	}
	return cursor, true, nil
}

// Save replaces the cursor atomically.
func (s *Store) Save(_ context.Context, cursor crawler.Cursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Clear removes the cursor.
func (s *Store) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}
