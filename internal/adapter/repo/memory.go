package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"server/internal/domain"
)

// MemoryStore is an in-memory domain.JobRepository and
// domain.HistoryRepository with the same conditional-transition semantics as
// the PostgreSQL implementations. It backs tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	jobs    map[string]*domain.Job
	history map[string][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*domain.Job),
		history: make(map[string][]string),
	}
}

// Create inserts a new job row. A duplicate UID is an error, matching the
// primary-key constraint of the SQL implementation.
func (s *MemoryStore) Create(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.UID]; exists {
		return fmt.Errorf("job %s already exists", job.UID)
	}
	now := time.Now()
	clone := cloneJob(job)
	if clone.SubmittedAt.IsZero() {
		clone.SubmittedAt = now
	}
	clone.UpdatedAt = now
	s.jobs[clone.UID] = clone
	return nil
}

// GetByUID fetches a job by identifier.
func (s *MemoryStore) GetByUID(ctx context.Context, uid string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[uid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

// TransitionTerminal applies a terminal outcome unless the row is already
// terminal. The mutex stands in for the database's atomic conditional write.
func (s *MemoryStore) TransitionTerminal(ctx context.Context, uid string, outcome domain.TerminalOutcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[uid]
	if !ok {
		return false, domain.ErrNotFound
	}
	if job.Phase.Terminal() {
		return false, nil
	}
	job.Phase = outcome.Phase
	job.Artifacts = append([]domain.Artifact(nil), outcome.Artifacts...)
	if outcome.Error != nil {
		e := *outcome.Error
		job.Error = &e
	} else {
		job.Error = nil
	}
	job.UpdatedAt = time.Now()
	return true, nil
}

// AdvancePhase conditionally moves a non-terminal row forward.
func (s *MemoryStore) AdvancePhase(ctx context.Context, uid string, next domain.Phase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[uid]
	if !ok {
		return false, domain.ErrNotFound
	}
	if next == domain.PhaseFailed {
		return false, domain.ErrPhaseConflict
	}
	if !job.Phase.CanTransition(next) {
		return false, nil
	}
	job.Phase = next
	job.UpdatedAt = time.Now()
	return true, nil
}

// RecordSubProgress stores partial completion and lifts submitted rows into
// rendering, mirroring the SQL implementation.
func (s *MemoryStore) RecordSubProgress(ctx context.Context, uid string, progress domain.SubProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[uid]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Phase != domain.PhaseSubmitted && job.Phase != domain.PhaseRendering {
		return nil
	}
	job.SubProgress = &domain.SubProgress{
		CompletedUnits: progress.CompletedUnits,
		TotalUnits:     progress.TotalUnits,
	}
	job.Phase = domain.PhaseRendering
	job.UpdatedAt = time.Now()
	return nil
}

// PurgeTerminalBefore removes terminal rows last touched before cutoff.
func (s *MemoryStore) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for uid, job := range s.jobs {
		if job.Phase.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, uid)
			purged++
		}
	}
	return purged, nil
}

// ListRecent returns up to limit most recent entries, newest first.
func (s *MemoryStore) ListRecent(ctx context.Context, ownerID, category string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.history[historyKey(ownerID, category)]
	var out []string
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// Append stores a new entry, evicting oldest beyond window.
func (s *MemoryStore) Append(ctx context.Context, ownerID, category, text string, window int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := historyKey(ownerID, category)
	entries := append(s.history[key], text)
	if window > 0 && len(entries) > window {
		entries = entries[len(entries)-window:]
	}
	s.history[key] = entries
	return nil
}

func historyKey(ownerID, category string) string {
	return ownerID + "|" + category
}

func cloneJob(job *domain.Job) *domain.Job {
	clone := *job
	clone.Artifacts = append([]domain.Artifact(nil), job.Artifacts...)
	if job.SubProgress != nil {
		p := *job.SubProgress
		clone.SubProgress = &p
	}
	if job.Error != nil {
		e := *job.Error
		clone.Error = &e
	}
	return &clone
}
