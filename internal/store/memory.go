package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/aggregate"
	"github.com/sells-group/solar-cli/pkg/solar"
)

// MemoryStore implements Store in process memory. It backs `serve` when no
// database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	insts   []solar.Installation
	imports []ImportRun
}

var _ Store = (*MemoryStore)(nil)

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) ReplaceInstallations(_ context.Context, insts []solar.Installation) (int64, error) {
	rows := dedupe(insts)

	s.mu.Lock()
	s.insts = rows
	s.mu.Unlock()
	return int64(len(rows)), nil
}

func (s *MemoryStore) ListInstallations(_ context.Context, filter Filter) ([]solar.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return aggregate.Filter(s.insts, solar.InstallationQuery{
		State:       filter.State,
		Year:        filter.Year,
		MinCapacity: filter.MinCapacity,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}), nil
}

func (s *MemoryStore) CreateImport(_ context.Context, source, etag string) (*ImportRun, error) {
	run := ImportRun{
		ID:        uuid.New().String(),
		Source:    source,
		ETag:      etag,
		Status:    ImportRunning,
		StartedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.imports = append(s.imports, run)
	s.mu.Unlock()
	return &run, nil
}

func (s *MemoryStore) CompleteImport(_ context.Context, id string, imported, failed int, importErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.imports {
		if s.imports[i].ID != id {
			continue
		}
		now := time.Now().UTC()
		s.imports[i].Status = importStatus(importErr)
		s.imports[i].Imported = imported
		s.imports[i].Failed = failed
		s.imports[i].FinishedAt = &now
		if importErr != nil {
			s.imports[i].Error = importErr.Error()
		}
		return nil
	}
	return eris.Errorf("import run not found: %s", id)
}

func (s *MemoryStore) LatestImport(context.Context) (*ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.imports) == 0 {
		return nil, nil
	}
	run := s.imports[len(s.imports)-1]
	return &run, nil
}
