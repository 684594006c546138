package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taskforge/taskforge/internal/model"
)

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	query := `
		INSERT INTO tasks (
			id, project_id, title, description, type, status,
			execution_state, branch_name, agent_model, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.ProjectID,
		t.Title,
		t.Description,
		t.Type,
		t.Status,
		t.ExecutionState,
		t.BranchName,
		t.AgentModel,
		t.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	query := `
		SELECT
			id, project_id, title, description, type, status,
			execution_state, branch_name, agent_model, created_at
		FROM tasks
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	return t, nil
}

// ListTasksByProject retrieves all tasks of a project.
func (r *Repository) ListTasksByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	query := `
		SELECT
			id, project_id, title, description, type, status,
			execution_state, branch_name, agent_model, created_at
		FROM tasks
		WHERE project_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate tasks: %w", err)
	}

	return tasks, nil
}

// ClaimTaskExecution atomically claims the task for a new execution attempt.
// The conditional update is the concurrency guard: two racing claims can't
// both succeed because only the first one matches the WHERE clause.
func (r *Repository) ClaimTaskExecution(ctx context.Context, taskID string) error {
	query := `
		UPDATE tasks
		SET execution_state = ?
		WHERE id = ? AND execution_state != ?
	`

	res, err := r.db.ExecContext(ctx, query, model.ExecutionStateInProgress, taskID, model.ExecutionStateInProgress)
	if err != nil {
		return fmt.Errorf("could not claim task execution: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		// Either the task is missing or it is already in progress,
		// disambiguate so callers get the right error kind.
		_, err := r.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		return fmt.Errorf("task %s is already executing: %w", taskID, model.ErrAlreadyExists)
	}

	r.logger.Debugf("Claimed execution of task: %s", taskID)
	return nil
}

// SetTaskExecutionState sets the execution state of a task unconditionally.
func (r *Repository) SetTaskExecutionState(ctx context.Context, taskID string, state model.ExecutionState) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET execution_state = ? WHERE id = ?`, state, taskID)
	if err != nil {
		return fmt.Errorf("could not update task execution state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	return nil
}

// DeleteTask deletes a task. Comments and sessions cascade.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted task from repository: %s", id)
	return nil
}

func scanTask(row rowScanner) (*model.Task, error) {
	var t model.Task
	var createdAt int64

	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Title,
		&t.Description,
		&t.Type,
		&t.Status,
		&t.ExecutionState,
		&t.BranchName,
		&t.AgentModel,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	t.CreatedAt = time.Unix(0, createdAt).UTC()
	return &t, nil
}
