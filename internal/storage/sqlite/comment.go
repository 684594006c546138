package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/taskforge/taskforge/internal/model"
)

// CreateComment appends a comment to a task.
func (r *Repository) CreateComment(ctx context.Context, c model.Comment) error {
	query := `
		INSERT INTO comments (id, task_id, author_user_id, agent_name, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		c.ID,
		c.TaskID,
		c.AuthorUserID,
		c.AgentName,
		c.Content,
		c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("could not insert comment: %w", err)
	}

	r.logger.Debugf("Created comment in repository: %s", c.ID)
	return nil
}

// ListCommentsByTask retrieves all comments of a task in ascending creation
// order. The id tiebreak keeps the order total when timestamps collide.
func (r *Repository) ListCommentsByTask(ctx context.Context, taskID string) ([]model.Comment, error) {
	query := `
		SELECT id, task_id, author_user_id, agent_name, content, created_at
		FROM comments
		WHERE task_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not list comments: %w", err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		var createdAt int64
		err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorUserID, &c.AgentName, &c.Content, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("could not scan comment: %w", err)
		}
		c.CreatedAt = time.Unix(0, createdAt).UTC()
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate comments: %w", err)
	}

	return comments, nil
}
