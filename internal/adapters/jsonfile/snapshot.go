// Package jsonfile persists the paper portfolio snapshot as an indented JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
)

// SnapshotFile implements ports.SnapshotStore on a single file.
type SnapshotFile struct {
	mu   sync.Mutex
	path string
}

var _ ports.SnapshotStore = (*SnapshotFile)(nil)

// NewSnapshotFile returns a store for path. The parent directory is created on the first save.
func NewSnapshotFile(path string) (*SnapshotFile, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: snapshot path is empty", ports.ErrConfigurationError)
	}
	return &SnapshotFile{path: path}, nil
}

func (s *SnapshotFile) Path() string { return s.path }

// Load reads the snapshot, returning ports.ErrNotFound when the file does not exist yet.
func (s *SnapshotFile) Load(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %s: %w", s.path, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot %s: %v", ports.ErrInvalidRequest, s.path, err)
	}
	if snap.Positions == nil {
		snap.Positions = make(map[string]*domain.Position)
	}
	return &snap, nil
}

// Save writes the snapshot to a temporary file and renames it over the target.
func (s *SnapshotFile) Save(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ports.ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
