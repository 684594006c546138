package model

import (
	"fmt"
	"time"
)

// SessionStatus is the status of a single execution attempt.
type SessionStatus string

const (
	// SessionStatusPending indicates the sandbox was spawned and the agent hasn't reported yet.
	SessionStatusPending SessionStatus = "pending"
	// SessionStatusInProgress indicates the agent reported it is working.
	SessionStatusInProgress SessionStatus = "in_progress"
	// SessionStatusCompleted indicates the attempt finished successfully.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusError indicates the attempt failed.
	SessionStatusError SessionStatus = "error"
)

// ExecutionMode says where an execution attempt ran.
type ExecutionMode string

const (
	// ExecutionModeLocal is an execution on the user's machine.
	ExecutionModeLocal ExecutionMode = "local"
	// ExecutionModeSandbox is an execution inside a disposable sandbox.
	ExecutionModeSandbox ExecutionMode = "sandbox"
)

// ExecutionSession is the ledger record of one execution attempt. A task
// accumulates one session per attempt, the latest one is the one with the
// greatest creation timestamp.
type ExecutionSession struct {
	ID     string
	TaskID string
	// CorrelationID correlates the session with the out-of-process agent run.
	CorrelationID string
	Status        SessionStatus
	Mode          ExecutionMode
	SandboxHandle string
	SandboxURL    string
	// SandboxPassword grants access to the sandbox UI, stored encrypted by
	// callers that persist it.
	SandboxPassword string
	// WebhookSecret authenticates the asynchronous completion callback.
	WebhookSecret string
	BranchName    string
	// MessageCount and TokenCount are kept as strings so they can grow past
	// int64 without a schema change.
	MessageCount string
	TokenCount   string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// Validate validates the execution session.
func (s *ExecutionSession) Validate() error {
	if s.TaskID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}

	switch s.Status {
	case SessionStatusPending, SessionStatusInProgress, SessionStatusCompleted, SessionStatusError:
	default:
		return fmt.Errorf("unknown session status %q: %w", s.Status, ErrNotValid)
	}

	switch s.Mode {
	case ExecutionModeLocal, ExecutionModeSandbox:
	default:
		return fmt.Errorf("unknown execution mode %q: %w", s.Mode, ErrNotValid)
	}

	return nil
}
