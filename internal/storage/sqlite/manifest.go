package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taskforge/taskforge/internal/model"
)

// CreateManifest creates a new manifest in the repository.
func (r *Repository) CreateManifest(ctx context.Context, m model.Manifest) error {
	query := `
		INSERT INTO manifests (id, project_id, status, completed_tasks, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, m.ID, m.ProjectID, m.Status, m.CompletedTasks, m.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("could not insert manifest: %w", err)
	}

	r.logger.Debugf("Created manifest in repository: %s", m.ID)
	return nil
}

// GetManifest retrieves a manifest by ID.
func (r *Repository) GetManifest(ctx context.Context, id string) (*model.Manifest, error) {
	query := `
		SELECT id, project_id, status, completed_tasks, created_at
		FROM manifests
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	m, err := scanManifest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("manifest %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get manifest: %w", err)
	}

	return m, nil
}

// ListActiveManifests retrieves the manifests of a project in an active
// status, in stable (creation, id) order.
func (r *Repository) ListActiveManifests(ctx context.Context, projectID string) ([]model.Manifest, error) {
	query := `
		SELECT id, project_id, status, completed_tasks, created_at
		FROM manifests
		WHERE project_id = ? AND status IN (?, ?, ?)
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(
		ctx, query, projectID,
		model.ManifestStatusPending, model.ManifestStatusActive, model.ManifestStatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("could not list active manifests: %w", err)
	}
	defer rows.Close()

	var manifests []model.Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan manifest: %w", err)
		}
		manifests = append(manifests, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate manifests: %w", err)
	}

	return manifests, nil
}

// UpdateManifestStatus updates the status of a manifest.
func (r *Repository) UpdateManifestStatus(ctx context.Context, id string, status model.ManifestStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE manifests SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("could not update manifest status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("manifest %s: %w", id, model.ErrNotFound)
	}

	return nil
}

func scanManifest(row rowScanner) (*model.Manifest, error) {
	var m model.Manifest
	var createdAt int64

	err := row.Scan(&m.ID, &m.ProjectID, &m.Status, &m.CompletedTasks, &createdAt)
	if err != nil {
		return nil, err
	}

	m.CreatedAt = time.Unix(0, createdAt).UTC()
	return &m, nil
}
