// Package memory provides an in-memory run store used for tests and ephemeral
// environments. The sqlite and postgres stores embed it and snapshot its state.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"standsim/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.RunStore = (*Store)(nil)

// Snapshot is the serialisable state of a store.
type Snapshot struct {
	Runs []domain.RunRecord `json:"runs"`
}

// Store keeps run records in a map guarded by a read-write mutex.
type Store struct {
	mu   sync.RWMutex
	runs map[string]domain.RunRecord
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{runs: make(map[string]domain.RunRecord)}
}

func cloneRun(r domain.RunRecord) domain.RunRecord {
	cp := r
	cp.Steps = make([]domain.StepRecord, len(r.Steps))
	for i, step := range r.Steps {
		step.Plots = append([]domain.PlotSnapshot(nil), step.Plots...)
		cp.Steps[i] = step
	}
	cp.Violations = append([]domain.Violation(nil), r.Violations...)
	return cp
}

// SaveRun inserts or replaces a run.
func (s *Store) SaveRun(_ context.Context, run domain.RunRecord) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("memory store: run id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun returns a copy of the run with the given id.
func (s *Store) GetRun(_ context.Context, id string) (domain.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

// ListRuns returns every run ordered by start time, then id.
func (s *Store) ListRuns(_ context.Context) ([]domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(), nil
}

func (s *Store) sortedLocked() []domain.RunRecord {
	out := make([]domain.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// DeleteRun removes a run. Deleting an unknown id is not an error.
func (s *Store) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// ExportState returns a deep copy of the store contents.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Runs: s.sortedLocked()}
}

// ImportState replaces the store contents with the snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = make(map[string]domain.RunRecord, len(snapshot.Runs))
	for _, run := range snapshot.Runs {
		if run.ID == "" {
			continue
		}
		s.runs[run.ID] = cloneRun(run)
	}
}
