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

// CreateProject creates a new project in the repository.
func (r *Repository) CreateProject(ctx context.Context, p model.Project) error {
	query := `
		INSERT INTO projects (
			id, owner_user_id, name, repo_url,
			encrypted_repo_token, agent_instructions, setup_script,
			created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		p.ID,
		p.OwnerUserID,
		p.Name,
		p.RepoURL,
		p.EncryptedRepoToken,
		p.AgentInstructions,
		p.SetupScript,
		p.CreatedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: projects.") {
			return fmt.Errorf("project already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert project: %w", err)
	}

	r.logger.Debugf("Created project in repository: %s", p.ID)
	return nil
}

// GetProject retrieves a project by ID.
func (r *Repository) GetProject(ctx context.Context, id string) (*model.Project, error) {
	query := `
		SELECT
			id, owner_user_id, name, repo_url,
			encrypted_repo_token, agent_instructions, setup_script,
			created_at
		FROM projects
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get project: %w", err)
	}

	return p, nil
}

// ListProjectsByOwner retrieves all projects owned by a user.
func (r *Repository) ListProjectsByOwner(ctx context.Context, ownerUserID string) ([]model.Project, error) {
	query := `
		SELECT
			id, owner_user_id, name, repo_url,
			encrypted_repo_token, agent_instructions, setup_script,
			created_at
		FROM projects
		WHERE owner_user_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("could not list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate projects: %w", err)
	}

	return projects, nil
}

// DeleteProject deletes a project. Tasks, comments, sessions and manifests
// cascade through the schema's foreign keys.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete project: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted project from repository: %s", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*model.Project, error) {
	var p model.Project
	var createdAt int64

	err := row.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Name,
		&p.RepoURL,
		&p.EncryptedRepoToken,
		&p.AgentInstructions,
		&p.SetupScript,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return &p, nil
}
