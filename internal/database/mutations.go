package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hotelsync/internal/models"
)

const mutationColumns = `id, request_type, payload, artifact_paths, retry_count, last_error, created_at, last_attempt_at`

// Enqueue persists a new mutation and assigns its id. The row is durable once Enqueue returns.
func (db *DB) Enqueue(ctx context.Context, m *models.PendingMutation) (int64, error) {
	if m == nil {
		return 0, errors.New("mutation is nil")
	}
	table, err := tableFor(m.Kind)
	if err != nil {
		return 0, err
	}
	if !m.Kind.Supports(m.RequestType) {
		return 0, fmt.Errorf("request type %q is not valid for %s", m.RequestType, m.Kind)
	}
	if m.Payload == "" {
		return 0, errors.New("mutation payload is required")
	}

	paths := m.ArtifactPaths
	if paths == nil {
		paths = []string{}
	}
	pathsJSON, err := json.Marshal(paths)
	if err != nil {
		return 0, fmt.Errorf("encode artifact paths: %w", err)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO %s (request_type, payload, artifact_paths, retry_count, created_at)
              VALUES (?, ?, ?, 0, ?)`, table)
	result, err := db.ExecContext(ctx, query, m.RequestType, m.Payload, string(pathsJSON), now)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s mutation: %w", m.Kind, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	m.RetryCount = 0
	m.ArtifactPaths = paths

	return id, nil
}

// DequeueBatch reads up to limit mutations of a kind, oldest first, without removing them.
func (db *DB) DequeueBatch(ctx context.Context, kind models.Kind, limit int) ([]models.PendingMutation, error) {
	return db.DequeueEligible(ctx, kind, limit, 0)
}

// DequeueEligible is DequeueBatch restricted to rows with fewer than maxAttempts failures.
// maxAttempts <= 0 disables the filter.
func (db *DB) DequeueEligible(ctx context.Context, kind models.Kind, limit, maxAttempts int) ([]models.PendingMutation, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = models.DefaultBatchSize
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, mutationColumns, table)
	args := []interface{}{}
	if maxAttempts > 0 {
		query += ` WHERE retry_count < ?`
		args = append(args, maxAttempts)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s batch: %w", kind, err)
	}
	defer rows.Close()

	var batch []models.PendingMutation
	for rows.Next() {
		m, err := scanMutation(rows, kind)
		if err != nil {
			return nil, err
		}
		batch = append(batch, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s batch: %w", kind, err)
	}
	return batch, nil
}

// Get returns a single mutation or ErrNotFound.
func (db *DB) Get(ctx context.Context, kind models.Kind, id int64) (*models.PendingMutation, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, mutationColumns, table)
	m, err := scanMutation(db.QueryRowContext(ctx, query, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// MarkSucceeded deletes a confirmed mutation and then removes its artifacts.
// Paths listed in retained were not delivered with the remote call; they are kept on
// disk and recorded in the orphan ledger instead of being removed.
func (db *DB) MarkSucceeded(ctx context.Context, kind models.Kind, id int64, retained []string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark succeeded: %w", err)
	}
	defer tx.Rollback()

	var rawPaths string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT artifact_paths FROM %s WHERE id = ?`, table), id).Scan(&rawPaths)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load artifacts of %s/%d: %w", kind, id, err)
	}
	paths, err := decodePaths(rawPaths)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
		return fmt.Errorf("delete %s/%d: %w", kind, id, err)
	}

	keep := make(map[string]bool, len(retained))
	now := time.Now().UTC()
	for _, p := range retained {
		keep[p] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO orphaned_artifacts (path, kind, mutation_id, created_at) VALUES (?, ?, ?, ?)`,
			p, kind, id, now); err != nil {
			return fmt.Errorf("record orphaned artifact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark succeeded: %w", err)
	}

	var remove []string
	for _, p := range paths {
		if !keep[p] {
			remove = append(remove, p)
		}
	}
	if len(remove) > 0 && db.artifacts != nil {
		if err := db.artifacts.Remove(remove...); err != nil {
			// the record is gone already; a leftover file is not worth failing the pass for
			db.logger.Warn().Err(err).Str("kind", string(kind)).Int64("id", id).Msg("artifact cleanup failed")
		}
	}
	return nil
}

// MarkFailed bumps retry_count and stores the failure reason in one statement.
func (db *DB) MarkFailed(ctx context.Context, kind models.Kind, id int64, reason string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET retry_count = retry_count + 1, last_error = ?, last_attempt_at = ? WHERE id = ?`, table)
	result, err := db.ExecContext(ctx, query, reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark %s/%d failed: %w", kind, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) Count(ctx context.Context, kind models.Kind) (int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var count int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return count, nil
}

// CountStuck counts rows that reached maxAttempts and are no longer attempted.
func (db *DB) CountStuck(ctx context.Context, kind models.Kind, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE retry_count >= ?`, table)
	if err := db.QueryRowContext(ctx, query, maxAttempts).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stuck %s: %w", kind, err)
	}
	return count, nil
}

// Counts returns pending totals for every kind.
func (db *DB) Counts(ctx context.Context) (map[models.Kind]int, error) {
	counts := make(map[models.Kind]int, len(kindTables))
	for _, kind := range models.AllKinds() {
		n, err := db.Count(ctx, kind)
		if err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, nil
}

// ListAll returns every pending mutation across kinds, oldest first within each kind.
func (db *DB) ListAll(ctx context.Context) ([]models.PendingMutation, error) {
	var all []models.PendingMutation
	for _, kind := range models.AllKinds() {
		table, _ := tableFor(kind)
		rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY id ASC`, mutationColumns, table))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		for rows.Next() {
			m, err := scanMutation(rows, kind)
			if err != nil {
				rows.Close()
				return nil, err
			}
			all = append(all, *m)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
	}
	return all, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMutation(row rowScanner, kind models.Kind) (*models.PendingMutation, error) {
	var (
		m           models.PendingMutation
		rawPaths    string
		lastError   sql.NullString
		lastAttempt sql.NullTime
	)
	err := row.Scan(&m.ID, &m.RequestType, &m.Payload, &rawPaths, &m.RetryCount, &lastError, &m.CreatedAt, &lastAttempt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan %s mutation: %w", kind, err)
	}
	m.Kind = kind
	if lastError.Valid {
		msg := lastError.String
		m.LastError = &msg
	}
	if lastAttempt.Valid {
		at := lastAttempt.Time
		m.LastAttemptAt = &at
	}
	paths, err := decodePaths(rawPaths)
	if err != nil {
		return nil, err
	}
	m.ArtifactPaths = paths
	return &m, nil
}

func decodePaths(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var paths []string
	if err := json.Unmarshal([]byte(raw), &paths); err != nil {
		return nil, fmt.Errorf("decode artifact paths: %w", err)
	}
	return paths, nil
}
