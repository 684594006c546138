package model

import (
	"fmt"
	"time"
)

// Comment is an append-only message on a task, authored either by a user or
// by an agent (mutually exclusive). Ordering by creation timestamp is
// load-bearing: it drives both display and prompt construction.
type Comment struct {
	ID     string
	TaskID string
	// AuthorUserID is set for user comments, empty for agent comments.
	AuthorUserID string
	// AgentName is set for agent comments, empty for user comments.
	AgentName string
	Content   string
	CreatedAt time.Time
}

// Validate validates the comment.
func (c *Comment) Validate() error {
	if c.TaskID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	if c.Content == "" {
		return fmt.Errorf("content is required: %w", ErrNotValid)
	}
	if c.AuthorUserID == "" && c.AgentName == "" {
		return fmt.Errorf("comment requires a user or agent author: %w", ErrNotValid)
	}
	if c.AuthorUserID != "" && c.AgentName != "" {
		return fmt.Errorf("comment author can't be both user and agent: %w", ErrNotValid)
	}
	return nil
}

// IsAgent returns true when the comment was authored by an agent.
func (c *Comment) IsAgent() bool { return c.AgentName != "" }
