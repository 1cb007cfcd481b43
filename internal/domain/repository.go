package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job rows. Implementations must back
// the conditional transition methods with an atomic compare-and-set so that
// concurrent webhook and poller writers cannot tear a row.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByUID(ctx context.Context, uid string) (*Job, error)

	// TransitionTerminal conditionally writes a terminal outcome. It returns
	// (true, nil) when the write applied, (false, nil) when the row was
	// already terminal, and ErrNotFound when no row exists.
	TransitionTerminal(ctx context.Context, uid string, outcome TerminalOutcome) (bool, error)

	// AdvancePhase conditionally moves a non-terminal row forward to next.
	// Returns false without error when the stored phase does not permit the
	// move (already past it, or terminal).
	AdvancePhase(ctx context.Context, uid string, next Phase) (bool, error)

	// RecordSubProgress opportunistically stores partial batch completion and
	// lifts a submitted row into rendering. No-ops on terminal rows.
	RecordSubProgress(ctx context.Context, uid string, progress SubProgress) error

	// PurgeTerminalBefore removes terminal rows last updated before cutoff.
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryRepository owns the bounded per-(owner, category) output history.
type HistoryRepository interface {
	ListRecent(ctx context.Context, ownerID, category string, limit int) ([]string, error)
	// Append stores a new entry, evicting oldest entries beyond window.
	Append(ctx context.Context, ownerID, category, text string, window int) error
}
