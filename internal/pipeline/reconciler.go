package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/render"
)

// Hard ceilings on caller-chosen polling budgets. Requested values are
// clamped rather than rejected.
const (
	MaxPollAttempts     = 30
	MaxPollInterval     = 2 * time.Second
	DefaultPollAttempts = 24
	DefaultPollInterval = 2 * time.Second
)

// PollOptions bounds one reconciliation loop.
type PollOptions struct {
	MaxAttempts int
	Interval    time.Duration
}

func (o PollOptions) clamped() PollOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultPollAttempts
	}
	if o.MaxAttempts > MaxPollAttempts {
		o.MaxAttempts = MaxPollAttempts
	}
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.Interval > MaxPollInterval {
		o.Interval = MaxPollInterval
	}
	return o
}

// Reconciler is the fallback completion path for jobs whose webhook delivery
// cannot be assumed to have happened. It applies the same conditional
// transition as the webhook receiver, so running both concurrently is safe.
type Reconciler struct {
	jobs   domain.JobRepository
	render render.Client
	log    zerolog.Logger
}

// NewReconciler wires a reconciler.
func NewReconciler(jobs domain.JobRepository, client render.Client, log zerolog.Logger) *Reconciler {
	return &Reconciler{jobs: jobs, render: client, log: log}
}

// Poll drives the bounded reconciliation loop for one job. It returns the
// terminal row when the job finishes within budget, or the last-read row with
// domain.ErrPollTimeout when the budget runs out while the job is still in
// flight. Timeout and cancellation stop only the loop; the row is never
// mutated by either. Transient service or store errors consume an attempt and
// the loop keeps going.
func (r *Reconciler) Poll(ctx context.Context, uid string, opts PollOptions) (*domain.Job, error) {
	opts = opts.clamped()

	var job *domain.Job
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		row, err := r.jobs.GetByUID(ctx, uid)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrNotFound
			}
			// A transient read failure consumes the attempt but must not
			// discard the last known-good row.
			r.log.Warn().Err(err).Str("uid", uid).Int("attempt", attempt).Msg("reconciler: row read failed")
		} else {
			job = row
			if job.Phase.Terminal() {
				return job, nil
			}
			if done, terminal := r.reconcileOnce(ctx, job, attempt); done {
				return terminal, nil
			}
		}

		if attempt == opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}

	r.log.Debug().Str("uid", uid).Int("attempts", opts.MaxAttempts).Msg("reconciler: poll budget exhausted")
	return job, domain.ErrPollTimeout
}

// reconcileOnce performs a single status query and, when the service reports
// a terminal state, applies the shared conditional transition. It re-reads
// the row afterwards rather than trusting its earlier read, since a webhook
// delivery may have raced the attempt.
func (r *Reconciler) reconcileOnce(ctx context.Context, job *domain.Job, attempt int) (bool, *domain.Job) {
	coll, err := r.render.GetCollection(ctx, job.UID)
	if err != nil {
		r.log.Warn().Err(err).Str("uid", job.UID).Int("attempt", attempt).Msg("reconciler: status query failed")
		return false, nil
	}

	outcome, terminal := OutcomeFromCollection(coll)
	if !terminal {
		if completed, total := coll.CompletedImages(); total > 0 {
			if err := r.jobs.RecordSubProgress(ctx, job.UID, domain.SubProgress{CompletedUnits: completed, TotalUnits: total}); err != nil {
				r.log.Warn().Err(err).Str("uid", job.UID).Msg("reconciler: sub-progress write failed")
			}
		}
		return false, nil
	}

	applied, err := ApplyTerminal(ctx, r.jobs, job.UID, outcome)
	if err != nil {
		r.log.Warn().Err(err).Str("uid", job.UID).Int("attempt", attempt).Msg("reconciler: terminal write failed")
		return false, nil
	}
	if !applied {
		r.log.Debug().Str("uid", job.UID).Msg("reconciler: webhook won the transition")
	}

	final, err := r.jobs.GetByUID(ctx, job.UID)
	if err != nil {
		// The write landed; fall back to a locally assembled view.
		r.log.Warn().Err(err).Str("uid", job.UID).Msg("reconciler: re-read after transition failed")
		job.Phase = outcome.Phase
		job.Artifacts = outcome.Artifacts
		job.Error = outcome.Error
		return true, job
	}
	return true, final
}
