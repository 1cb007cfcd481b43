package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. All
// transition methods are phase-guarded UPDATEs so concurrent webhook and
// poller writers race safely without external locking.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job row.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	artifacts, err := json.Marshal(jobArtifacts(job))
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}
	query := `
INSERT INTO jobs (uid, owner_id, kind, phase, artifacts, webhook_token, submitted_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW());
`
	_, err = r.pool.Exec(ctx, query,
		job.UID,
		job.OwnerID,
		job.Kind,
		job.Phase,
		artifacts,
		job.WebhookToken,
	)
	return err
}

// GetByUID fetches a job by the rendering service's collection identifier.
func (r *JobRepositoryPG) GetByUID(ctx context.Context, uid string) (*domain.Job, error) {
	query := `
SELECT uid, owner_id, kind, phase, sub_completed, sub_total, artifacts, error, webhook_token, submitted_at, updated_at
FROM jobs
WHERE uid = $1;
`
	row := r.pool.QueryRow(ctx, query, uid)
	var (
		job           domain.Job
		subCompleted  *int
		subTotal      *int
		artifactsJSON []byte
		errorJSON     []byte
	)
	if err := row.Scan(
		&job.UID,
		&job.OwnerID,
		&job.Kind,
		&job.Phase,
		&subCompleted,
		&subTotal,
		&artifactsJSON,
		&errorJSON,
		&job.WebhookToken,
		&job.SubmittedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if subCompleted != nil && subTotal != nil {
		job.SubProgress = &domain.SubProgress{CompletedUnits: *subCompleted, TotalUnits: *subTotal}
	}
	if len(artifactsJSON) > 0 {
		if err := json.Unmarshal(artifactsJSON, &job.Artifacts); err != nil {
			return nil, fmt.Errorf("unmarshal artifacts: %w", err)
		}
	}
	if len(errorJSON) > 0 {
		job.Error = &domain.JobError{}
		if err := json.Unmarshal(errorJSON, job.Error); err != nil {
			return nil, fmt.Errorf("unmarshal error detail: %w", err)
		}
	}
	return &job, nil
}

// TransitionTerminal conditionally writes a terminal outcome. The WHERE
// clause is the compare-and-set: a row already in a terminal phase is never
// touched, so duplicate webhook deliveries and poller races are no-ops.
func (r *JobRepositoryPG) TransitionTerminal(ctx context.Context, uid string, outcome domain.TerminalOutcome) (bool, error) {
	if !outcome.Phase.Terminal() {
		return false, fmt.Errorf("%w: %s is not terminal", domain.ErrPhaseConflict, outcome.Phase)
	}
	artifacts, err := json.Marshal(outcomeArtifacts(outcome))
	if err != nil {
		return false, fmt.Errorf("marshal artifacts: %w", err)
	}
	var errorJSON []byte
	if outcome.Error != nil {
		if errorJSON, err = json.Marshal(outcome.Error); err != nil {
			return false, fmt.Errorf("marshal error detail: %w", err)
		}
	}
	query := `
UPDATE jobs
SET phase = $2,
    artifacts = $3,
    error = $4,
    updated_at = NOW()
WHERE uid = $1
  AND phase NOT IN ('completed', 'failed');
`
	tag, err := r.pool.Exec(ctx, query, uid, outcome.Phase, artifacts, nullableBytes(errorJSON))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	// Either already terminal or missing. Distinguish for the webhook's 404.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE uid = $1)`, uid).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// AdvancePhase conditionally moves a non-terminal row forward.
func (r *JobRepositoryPG) AdvancePhase(ctx context.Context, uid string, next domain.Phase) (bool, error) {
	allowed := domain.PhasesBefore(next)
	if len(allowed) == 0 {
		return false, fmt.Errorf("%w: cannot advance to %s", domain.ErrPhaseConflict, next)
	}
	from := make([]string, 0, len(allowed))
	for _, p := range allowed {
		from = append(from, string(p))
	}
	query := `
UPDATE jobs
SET phase = $2,
    updated_at = NOW()
WHERE uid = $1
  AND phase = ANY($3);
`
	tag, err := r.pool.Exec(ctx, query, uid, next, from)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE uid = $1)`, uid).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// RecordSubProgress stores partial batch completion reported by the rendering
// service and lifts a freshly submitted row into rendering.
func (r *JobRepositoryPG) RecordSubProgress(ctx context.Context, uid string, progress domain.SubProgress) error {
	query := `
UPDATE jobs
SET sub_completed = $2,
    sub_total = $3,
    phase = CASE WHEN phase = 'submitted' THEN 'rendering' ELSE phase END,
    updated_at = NOW()
WHERE uid = $1
  AND phase IN ('submitted', 'rendering');
`
	_, err := r.pool.Exec(ctx, query, uid, progress.CompletedUnits, progress.TotalUnits)
	return err
}

// PurgeTerminalBefore removes terminal rows last touched before cutoff.
func (r *JobRepositoryPG) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
DELETE FROM jobs
WHERE phase IN ('completed', 'failed')
  AND updated_at < $1;
`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func jobArtifacts(job *domain.Job) []domain.Artifact {
	if job.Artifacts == nil {
		return []domain.Artifact{}
	}
	return job.Artifacts
}

func outcomeArtifacts(outcome domain.TerminalOutcome) []domain.Artifact {
	if outcome.Artifacts == nil {
		return []domain.Artifact{}
	}
	return outcome.Artifacts
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
