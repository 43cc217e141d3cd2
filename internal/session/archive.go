package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cortex/internal/storage"
)

// ArchiveKey is the storage key holding the session array.
const ArchiveKey = "cortex_sessions"

var (
	// ArchiveCorruptions counts loads that found unreadable archive content.
	ArchiveCorruptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cortex",
			Subsystem: "archive",
			Name:      "corruptions_total",
			Help:      "Archive loads that found non-array or unparsable content and fell back to an empty archive",
		},
	)

	// SkippedRecords counts individual records dropped while decoding a valid
	// array: unreadable ones and ones without an id.
	SkippedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cortex",
			Subsystem: "archive",
			Name:      "skipped_records_total",
			Help:      "Archive records that failed to decode or lacked an id and were skipped",
		},
	)
)

// Store is the persistence port the journal depends on.
type Store interface {
	// Load returns all sessions in storage order (newest first).
	Load(ctx context.Context) ([]Session, error)

	// Append stores s ahead of every existing session.
	Append(ctx context.Context, s Session) error

	// Clear removes every session.
	Clear(ctx context.Context) error
}

// Archive is the Store backed by a single storage key.
type Archive struct {
	backend storage.Backend
	logger  *zap.Logger

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewArchive returns an archive over backend.
func NewArchive(backend storage.Backend, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{
		backend: backend,
		logger:  logger,
	}
}

// Load reads the archive.
//
// A missing key yields an empty archive. Content that is not a JSON array
// is treated as corruption: it is logged, counted and reported as empty.
// Only backend failures are returned as errors.
func (a *Archive) Load(ctx context.Context) ([]Session, error) {
	data, err := a.backend.Get(ctx, ArchiveKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session archive: %w", err)
	}
	return a.decode(data), nil
}

func (a *Archive) decode(data []byte) []Session {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		a.corrupted(errors.New("archive content is not a JSON array"))
		return []Session{}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		a.corrupted(err)
		return []Session{}
	}

	sessions := make([]Session, 0, len(raw))
	for i, r := range raw {
		var s Session
		if err := json.Unmarshal(r, &s); err != nil {
			SkippedRecords.Inc()
			a.logger.Warn("skipping unreadable archive record",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		if s.ID == "" {
			SkippedRecords.Inc()
			a.logger.Warn("skipping archive record without id", zap.Int("index", i))
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}

func (a *Archive) corrupted(err error) {
	ArchiveCorruptions.Inc()
	a.logger.Warn("session archive corrupted, treating as empty",
		zap.String("key", ArchiveKey),
		zap.Error(err),
	)
}

// Append prepends s to the archive and writes it back.
func (a *Archive) Append(ctx context.Context, s Session) error {
	if s.ID == "" {
		return errors.New("session id is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.Load(ctx)
	if err != nil {
		return err
	}

	sessions := make([]Session, 0, len(existing)+1)
	sessions = append(sessions, s)
	sessions = append(sessions, existing...)

	return a.save(ctx, sessions)
}

// Import merges sessions into the archive and returns how many were added.
//
// Sessions whose id already exists are ignored; sessions without an id get
// a new one. The merged archive is stored newest first.
func (a *Archive) Import(ctx context.Context, incoming []Session) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.Load(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, s := range existing {
		seen[s.ID] = struct{}{}
	}

	merged := existing
	added := 0
	for _, s := range incoming {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		merged = append(merged, s)
		added++
	}

	if added == 0 {
		return 0, nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	if err := a.save(ctx, merged); err != nil {
		return 0, err
	}
	return added, nil
}

// Clear deletes the archive key.
func (a *Archive) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.backend.Delete(ctx, ArchiveKey); err != nil {
		return fmt.Errorf("clearing session archive: %w", err)
	}
	return nil
}

func (a *Archive) save(ctx context.Context, sessions []Session) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encoding session archive: %w", err)
	}
	if err := a.backend.Put(ctx, ArchiveKey, data); err != nil {
		return fmt.Errorf("writing session archive: %w", err)
	}
	return nil
}

var _ Store = (*Archive)(nil)
