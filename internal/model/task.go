package model

import (
	"fmt"
	"time"
)

// TaskType classifies a task on the board.
type TaskType string

const (
	// TaskTypeBug is a bug fix task.
	TaskTypeBug TaskType = "bug"
	// TaskTypeFeature is a feature task.
	TaskTypeFeature TaskType = "feature"
	// TaskTypePlan is a planning task.
	TaskTypePlan TaskType = "plan"
	// TaskTypeOther is any other kind of task.
	TaskTypeOther TaskType = "other"
)

// ExecutionState is the guarded lifecycle state of a task execution.
type ExecutionState string

const (
	// ExecutionStateIdle indicates the task has never been executed.
	ExecutionStateIdle ExecutionState = "idle"
	// ExecutionStateInProgress indicates an execution attempt is running.
	ExecutionStateInProgress ExecutionState = "in_progress"
	// ExecutionStateAwaitingReview indicates the agent finished and a human review is pending.
	ExecutionStateAwaitingReview ExecutionState = "awaiting_review"
	// ExecutionStateCompleted indicates the last execution finished successfully.
	ExecutionStateCompleted ExecutionState = "completed"
	// ExecutionStateError indicates the last execution failed.
	ExecutionStateError ExecutionState = "error"
)

// Task represents a unit of work to be executed by an agent against a
// project. Its ExecutionState transitions are guarded by the execute
// service, the board Status column is display-only.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Type        TaskType
	// Status is the board column, opaque to the execution core.
	Status         string
	ExecutionState ExecutionState
	// BranchName is set by the first execution (or the sandbox provisioner)
	// and kept stable across retries unless explicitly overwritten.
	BranchName string
	// AgentModel is the selected agent model identifier, resolved through the
	// agent model table at execution time.
	AgentModel string
	CreatedAt  time.Time
}

// Validate validates the task.
func (t *Task) Validate() error {
	if t.ProjectID == "" {
		return fmt.Errorf("project id is required: %w", ErrNotValid)
	}
	if t.Title == "" {
		return fmt.Errorf("title is required: %w", ErrNotValid)
	}

	switch t.Type {
	case TaskTypeBug, TaskTypeFeature, TaskTypePlan, TaskTypeOther:
	default:
		return fmt.Errorf("unknown task type %q: %w", t.Type, ErrNotValid)
	}

	switch t.ExecutionState {
	case ExecutionStateIdle, ExecutionStateInProgress, ExecutionStateAwaitingReview,
		ExecutionStateCompleted, ExecutionStateError:
	default:
		return fmt.Errorf("unknown execution state %q: %w", t.ExecutionState, ErrNotValid)
	}

	return nil
}
