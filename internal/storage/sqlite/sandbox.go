package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskforge/taskforge/internal/model"
)

// CreateSandboxRecord creates a new sandbox record.
func (r *Repository) CreateSandboxRecord(ctx context.Context, rec model.SandboxRecord) error {
	query := `
		INSERT INTO sandbox_records (id, branch_name, purpose, handle, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.BranchName, rec.Purpose, rec.Handle, rec.CreatedAt.UnixNano())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sandbox_records.") {
			return fmt.Errorf("sandbox record for branch %q already exists: %w", rec.BranchName, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert sandbox record: %w", err)
	}

	r.logger.Debugf("Created sandbox record in repository: %s", rec.ID)
	return nil
}

// GetSandboxRecord retrieves a sandbox record by exact (branch, purpose) match.
func (r *Repository) GetSandboxRecord(ctx context.Context, branch string, purpose model.SandboxPurpose) (*model.SandboxRecord, error) {
	query := `
		SELECT id, branch_name, purpose, handle, created_at
		FROM sandbox_records
		WHERE branch_name = ? AND purpose = ?
	`

	var rec model.SandboxRecord
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, branch, purpose).Scan(
		&rec.ID, &rec.BranchName, &rec.Purpose, &rec.Handle, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sandbox record for branch %q (%s): %w", branch, purpose, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get sandbox record: %w", err)
	}

	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return &rec, nil
}

// DeleteSandboxRecord deletes a sandbox record by ID.
func (r *Repository) DeleteSandboxRecord(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sandbox_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete sandbox record: %w", err)
	}

	r.logger.Debugf("Deleted sandbox record from repository: %s", id)
	return nil
}

// EnqueueDestroyRetry stores a failed remote destroy for the reaper.
func (r *Repository) EnqueueDestroyRetry(ctx context.Context, retry model.DestroyRetry) error {
	query := `
		INSERT INTO destroy_retries (id, handle, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, retry.ID, retry.Handle, retry.Attempts, retry.LastError, retry.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("could not enqueue destroy retry: %w", err)
	}

	r.logger.Debugf("Enqueued destroy retry for handle: %s", retry.Handle)
	return nil
}

// ListDestroyRetries returns the queued destroy retries oldest first.
func (r *Repository) ListDestroyRetries(ctx context.Context) ([]model.DestroyRetry, error) {
	query := `
		SELECT id, handle, attempts, last_error, created_at
		FROM destroy_retries
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not list destroy retries: %w", err)
	}
	defer rows.Close()

	var retries []model.DestroyRetry
	for rows.Next() {
		var retry model.DestroyRetry
		var createdAt int64
		err := rows.Scan(&retry.ID, &retry.Handle, &retry.Attempts, &retry.LastError, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("could not scan destroy retry: %w", err)
		}
		retry.CreatedAt = time.Unix(0, createdAt).UTC()
		retries = append(retries, retry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate destroy retries: %w", err)
	}

	return retries, nil
}

// DeleteDestroyRetry removes a retry from the queue.
func (r *Repository) DeleteDestroyRetry(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM destroy_retries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete destroy retry: %w", err)
	}

	return nil
}
