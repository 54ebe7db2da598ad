package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

const corruptSuffix = ".corrupt"

// JSONHistoryStore keeps history in a single JSON file.
type JSONHistoryStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

var _ ports.HistoryStore = (*JSONHistoryStore)(nil)

// NewJSONHistoryStore points the store at path; the file is created on first save.
func NewJSONHistoryStore(path string, logger *slog.Logger) *JSONHistoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONHistoryStore{path: filepath.Clean(path), logger: logger}
}

// Load returns the persisted history. A missing or empty file yields an empty
// history; an undecodable file is moved aside to path.corrupt and also yields
// an empty history. Any other read failure is returned so the caller never
// overwrites a file it could not read.
func (s *JSONHistoryStore) Load(ctx context.Context) (domain.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return domain.EmptyHistory(), nil
	case err != nil:
		return domain.History{}, fmt.Errorf("read history: %w", err)
	case len(bytes.TrimSpace(raw)) == 0:
		return domain.EmptyHistory(), nil
	}

	var history domain.History
	if err := json.Unmarshal(raw, &history); err != nil {
		quarantine := s.path + corruptSuffix
		if rerr := os.Rename(s.path, quarantine); rerr != nil {
			return domain.History{}, fmt.Errorf("history corrupt (%v) and could not be moved aside: %w", err, rerr)
		}
		s.logger.Warn("history corrupt, moved aside and starting empty", "path", s.path, "moved_to", quarantine, "error", err)
		return domain.EmptyHistory(), nil
	}
	if history.PostedIDs == nil {
		history.PostedIDs = []string{}
	}
	if history.DislikedTopics == nil {
		history.DislikedTopics = []string{}
	}
	return history, nil
}

// Save replaces the file via write-temp-then-rename.
func (s *JSONHistoryStore) Save(ctx context.Context, history domain.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	b, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
