package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryRepositoryPG implements domain.HistoryRepository on PostgreSQL.
type HistoryRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a history repository backed by PostgreSQL.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepositoryPG {
	return &HistoryRepositoryPG{pool: pool}
}

// ListRecent returns up to limit most recent entries, newest first.
func (r *HistoryRepositoryPG) ListRecent(ctx context.Context, ownerID, category string, limit int) ([]string, error) {
	query := `
SELECT entry
FROM caption_history
WHERE owner_id = $1 AND category = $2
ORDER BY id DESC
LIMIT $3;
`
	rows, err := r.pool.Query(ctx, query, ownerID, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []string
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Append stores a new entry and evicts oldest rows beyond the window. A lost
// entry under concurrent appends only degrades dedup quality, so no locking
// beyond the statement itself.
func (r *HistoryRepositoryPG) Append(ctx context.Context, ownerID, category, text string, window int) error {
	insert := `
INSERT INTO caption_history (owner_id, category, entry)
VALUES ($1, $2, $3);
`
	if _, err := r.pool.Exec(ctx, insert, ownerID, category, text); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	trim := `
DELETE FROM caption_history
WHERE owner_id = $1 AND category = $2
  AND id NOT IN (
    SELECT id FROM caption_history
    WHERE owner_id = $1 AND category = $2
    ORDER BY id DESC
    LIMIT $3
  );
`
	if _, err := r.pool.Exec(ctx, trim, ownerID, category, window); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}
