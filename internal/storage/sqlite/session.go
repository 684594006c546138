package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage"
)

// CreateSession appends a new execution session to the ledger.
func (r *Repository) CreateSession(ctx context.Context, s model.ExecutionSession) error {
	return r.createSession(ctx, r.db, s)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) createSession(ctx context.Context, db execer, s model.ExecutionSession) error {
	var completedAt *int64
	if s.CompletedAt != nil {
		u := s.CompletedAt.UnixNano()
		completedAt = &u
	}

	query := `
		INSERT INTO sessions (
			id, task_id, correlation_id, status, mode,
			sandbox_handle, sandbox_url, sandbox_password, webhook_secret,
			branch_name, message_count, token_count,
			created_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(
		ctx,
		query,
		s.ID,
		s.TaskID,
		s.CorrelationID,
		s.Status,
		s.Mode,
		s.SandboxHandle,
		s.SandboxURL,
		s.SandboxPassword,
		s.WebhookSecret,
		s.BranchName,
		s.MessageCount,
		s.TokenCount,
		s.CreatedAt.UnixNano(),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("could not insert session: %w", err)
	}

	r.logger.Debugf("Created session in repository: %s", s.ID)
	return nil
}

// GetLatestSession retrieves the most recent session of a task.
func (r *Repository) GetLatestSession(ctx context.Context, taskID string) (*model.ExecutionSession, error) {
	query := sessionSelect + `
		WHERE task_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, taskID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session for task %s: %w", taskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get latest session: %w", err)
	}

	return s, nil
}

// ListSessionsForTasks retrieves all sessions of the given tasks ordered by
// creation time descending. An empty id set short-circuits without a query.
func (r *Repository) ListSessionsForTasks(ctx context.Context, taskIDs []string) ([]model.ExecutionSession, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(taskIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := sessionSelect + fmt.Sprintf(`
		WHERE task_id IN (%s)
		ORDER BY created_at DESC, id DESC
	`, placeholders)

	args := make([]any, 0, len(taskIDs))
	for _, id := range taskIDs {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.ExecutionSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate sessions: %w", err)
	}

	return sessions, nil
}

// UpdateSession merges the provided fields into the session row. Nil fields
// are left untouched, non-nil fields are written even when zero valued. A
// non-nil zero CompletedAt clears the completion timestamp.
func (r *Repository) UpdateSession(ctx context.Context, id string, u storage.SessionUpdate) error {
	return r.updateSession(ctx, r.db, id, u)
}

func (r *Repository) updateSession(ctx context.Context, db execer, id string, u storage.SessionUpdate) error {
	sets := []string{}
	args := []any{}

	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
	}
	if u.SandboxHandle != nil {
		sets = append(sets, "sandbox_handle = ?")
		args = append(args, *u.SandboxHandle)
	}
	if u.SandboxURL != nil {
		sets = append(sets, "sandbox_url = ?")
		args = append(args, *u.SandboxURL)
	}
	if u.SandboxPassword != nil {
		sets = append(sets, "sandbox_password = ?")
		args = append(args, *u.SandboxPassword)
	}
	if u.WebhookSecret != nil {
		sets = append(sets, "webhook_secret = ?")
		args = append(args, *u.WebhookSecret)
	}
	if u.MessageCount != nil {
		sets = append(sets, "message_count = ?")
		args = append(args, *u.MessageCount)
	}
	if u.TokenCount != nil {
		sets = append(sets, "token_count = ?")
		args = append(args, *u.TokenCount)
	}
	if u.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		if u.CompletedAt.IsZero() {
			args = append(args, nil)
		} else {
			args = append(args, u.CompletedAt.UnixNano())
		}
	}

	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id = ?`, strings.Join(sets, ", "))
	args = append(args, id)

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Updated session in repository: %s", id)
	return nil
}

// CommitExecutionStart persists a started execution attempt as one
// transaction: the new session, the task's branch name, and the audit
// comment. Either all of it lands or none of it does, so a failure here
// leaves the ledger consistent for the caller's compensation.
func (r *Repository) CommitExecutionStart(ctx context.Context, start storage.ExecutionStart) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.createSession(ctx, tx, start.Session); err != nil {
		return err
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE tasks SET branch_name = ? WHERE id = ?`,
		start.Session.BranchName, start.Session.TaskID,
	)
	if err != nil {
		return fmt.Errorf("could not update task branch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", start.Session.TaskID, model.ErrNotFound)
	}

	c := start.Comment
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO comments (id, task_id, author_user_id, agent_name, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AuthorUserID, c.AgentName, c.Content, c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("could not insert audit comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit execution start: %w", err)
	}

	r.logger.Debugf("Committed execution start for task: %s", start.Session.TaskID)
	return nil
}

// CommitCompletion applies a completion callback as one transaction: the
// session's final update, the task's next execution state and the optional
// summary comment land together or not at all.
func (r *Repository) CommitCompletion(ctx context.Context, completion storage.ExecutionCompletion) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.updateSession(ctx, tx, completion.SessionID, completion.Update); err != nil {
		return err
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE tasks SET execution_state = ? WHERE id = ?`,
		completion.TaskState, completion.TaskID,
	)
	if err != nil {
		return fmt.Errorf("could not update task state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", completion.TaskID, model.ErrNotFound)
	}

	if completion.Comment != nil {
		c := completion.Comment
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO comments (id, task_id, author_user_id, agent_name, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.TaskID, c.AuthorUserID, c.AgentName, c.Content, c.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("could not insert summary comment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit completion: %w", err)
	}

	r.logger.Debugf("Committed completion for task: %s", completion.TaskID)
	return nil
}

const sessionSelect = `
	SELECT
		id, task_id, correlation_id, status, mode,
		sandbox_handle, sandbox_url, sandbox_password, webhook_secret,
		branch_name, message_count, token_count,
		created_at, completed_at
	FROM sessions
`

func scanSession(row rowScanner) (*model.ExecutionSession, error) {
	var s model.ExecutionSession
	var createdAt int64
	var completedAt *int64

	err := row.Scan(
		&s.ID,
		&s.TaskID,
		&s.CorrelationID,
		&s.Status,
		&s.Mode,
		&s.SandboxHandle,
		&s.SandboxURL,
		&s.SandboxPassword,
		&s.WebhookSecret,
		&s.BranchName,
		&s.MessageCount,
		&s.TokenCount,
		&createdAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	s.CreatedAt = time.Unix(0, createdAt).UTC()
	if completedAt != nil {
		t := time.Unix(0, *completedAt).UTC()
		s.CompletedAt = &t
	}

	return &s, nil
}
