package database

import (
	"context"
	"fmt"
	"time"

	"hotelsync/internal/models"
)

// ListOrphans returns ledger entries recorded before the cutoff.
func (db *DB) ListOrphans(ctx context.Context, before time.Time) ([]models.OrphanedArtifact, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, path, kind, mutation_id, created_at FROM orphaned_artifacts WHERE created_at <= ? ORDER BY id ASC`,
		before.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned artifacts: %w", err)
	}
	defer rows.Close()

	var orphans []models.OrphanedArtifact
	for rows.Next() {
		var o models.OrphanedArtifact
		if err := rows.Scan(&o.ID, &o.Path, &o.Kind, &o.MutationID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned artifact: %w", err)
		}
		orphans = append(orphans, o)
	}
	return orphans, rows.Err()
}

func (db *DB) DeleteOrphan(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM orphaned_artifacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete orphan %d: %w", id, err)
	}
	return nil
}
