// Package notes stores free-text annotations attached to tension graph nodes.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cortex/internal/storage"
)

// Key is the storage key holding the notes object.
const Key = "cortex_node_notes"

// MaxNoteLength bounds a single note, in bytes.
const MaxNoteLength = 4096

// ErrNoteTooLong is returned by Set for notes longer than MaxNoteLength.
var ErrNoteTooLong = errors.New("note exceeds maximum length")

// Store persists notes as a single JSON object keyed by node id.
type Store struct {
	backend storage.Backend
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewStore returns a notes store over backend.
func NewStore(backend storage.Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

// All returns every note. Unreadable content is logged and treated as empty.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	data, err := s.backend.Get(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading node notes: %w", err)
	}

	notes := map[string]string{}
	if err := json.Unmarshal(data, &notes); err != nil || notes == nil {
		s.logger.Warn("node notes unreadable, treating as empty", zap.Error(err))
		return map[string]string{}, nil
	}
	return notes, nil
}

// Get returns the note for nodeID, or "" when none is stored.
func (s *Store) Get(ctx context.Context, nodeID string) (string, error) {
	notes, err := s.All(ctx)
	if err != nil {
		return "", err
	}
	return notes[nodeID], nil
}

// Set stores note for nodeID. A blank note removes the entry.
func (s *Store) Set(ctx context.Context, nodeID, note string) error {
	if nodeID == "" {
		return errors.New("node id is required")
	}
	if len(note) > MaxNoteLength {
		return ErrNoteTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.All(ctx)
	if err != nil {
		return err
	}

	if strings.TrimSpace(note) == "" {
		delete(notes, nodeID)
	} else {
		notes[nodeID] = note
	}

	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("encoding node notes: %w", err)
	}
	if err := s.backend.Put(ctx, Key, data); err != nil {
		return fmt.Errorf("writing node notes: %w", err)
	}
	return nil
}
