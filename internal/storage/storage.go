package storage

import (
	"context"
	"time"

	"github.com/taskforge/taskforge/internal/model"
)

// ProjectRepository is the interface for project persistence.
type ProjectRepository interface {
	CreateProject(ctx context.Context, p model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerUserID string) ([]model.Project, error)
	// DeleteProject cascades to the project's tasks, comments, sessions and
	// manifests.
	DeleteProject(ctx context.Context, id string) error
}

// TaskRepository is the interface for task persistence.
type TaskRepository interface {
	CreateTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasksByProject(ctx context.Context, projectID string) ([]model.Task, error)
	// ClaimTaskExecution atomically moves the task into in_progress. It is a
	// conditional update ("set in_progress where current state is not
	// in_progress"): when zero rows are affected because another execution
	// already holds the claim, it fails with model.ErrAlreadyExists and no
	// state is touched.
	ClaimTaskExecution(ctx context.Context, taskID string) error
	SetTaskExecutionState(ctx context.Context, taskID string, state model.ExecutionState) error
	// DeleteTask cascades to the task's comments and sessions.
	DeleteTask(ctx context.Context, id string) error
}

// CommentRepository is the interface for comment persistence. Comments are
// append-only and always read in ascending creation order.
type CommentRepository interface {
	CreateComment(ctx context.Context, c model.Comment) error
	ListCommentsByTask(ctx context.Context, taskID string) ([]model.Comment, error)
}

// SessionUpdate is a partial update of an execution session. A nil field is
// left untouched, a non-nil field is written even when it points to the zero
// value, so omission and explicit clear stay distinguishable.
type SessionUpdate struct {
	Status          *model.SessionStatus
	SandboxHandle   *string
	SandboxURL      *string
	SandboxPassword *string
	WebhookSecret   *string
	MessageCount    *string
	TokenCount      *string
	CompletedAt     *time.Time
}

// SessionRepository is the interface for the execution session ledger.
type SessionRepository interface {
	CreateSession(ctx context.Context, s model.ExecutionSession) error
	// GetLatestSession returns the most recent session of a task by creation
	// time, model.ErrNotFound when the task has none.
	GetLatestSession(ctx context.Context, taskID string) (*model.ExecutionSession, error)
	// ListSessionsForTasks returns all sessions of the given tasks ordered by
	// creation time descending. An empty id set returns empty without hitting
	// storage.
	ListSessionsForTasks(ctx context.Context, taskIDs []string) ([]model.ExecutionSession, error)
	UpdateSession(ctx context.Context, id string, u SessionUpdate) error
}

// SandboxRecordRepository is the interface for sandbox record persistence.
type SandboxRecordRepository interface {
	CreateSandboxRecord(ctx context.Context, r model.SandboxRecord) error
	// GetSandboxRecord is an exact match on both branch and purpose.
	GetSandboxRecord(ctx context.Context, branch string, purpose model.SandboxPurpose) (*model.SandboxRecord, error)
	DeleteSandboxRecord(ctx context.Context, id string) error
}

// DestroyQueueRepository is the interface for the failed-destroy retry queue.
type DestroyQueueRepository interface {
	EnqueueDestroyRetry(ctx context.Context, r model.DestroyRetry) error
	ListDestroyRetries(ctx context.Context) ([]model.DestroyRetry, error)
	DeleteDestroyRetry(ctx context.Context, id string) error
}

// ManifestRepository is the interface for manifest persistence.
type ManifestRepository interface {
	CreateManifest(ctx context.Context, m model.Manifest) error
	GetManifest(ctx context.Context, id string) (*model.Manifest, error)
	// ListActiveManifests returns the project's manifests whose status counts
	// against the single-active-run invariant, in stable (creation, id)
	// order. More than one result means the invariant was broken by a racing
	// writer, callers treat that as a data integrity warning.
	ListActiveManifests(ctx context.Context, projectID string) ([]model.Manifest, error)
	UpdateManifestStatus(ctx context.Context, id string, status model.ManifestStatus) error
}

// ExecutionStart is the single logical unit committed when an execution
// attempt starts: the new ledger session, the task's claimed state and
// branch, and the audit comment. Implementations commit it atomically.
type ExecutionStart struct {
	Session model.ExecutionSession
	Comment model.Comment
}

// ExecutionCompletion is the single logical unit committed when a completion
// callback is applied: the session's final update, the task's next execution
// state, and the optional summary comment.
type ExecutionCompletion struct {
	SessionID string
	Update    SessionUpdate
	TaskID    string
	TaskState model.ExecutionState
	// Comment is nil when the callback carried no summary.
	Comment *model.Comment
}

// ExecutionRepository is the interface for the transactional pieces of the
// execute state machine.
type ExecutionRepository interface {
	// CommitExecutionStart persists the session, sets the task's branch name
	// from the session, and appends the audit comment in one transaction.
	CommitExecutionStart(ctx context.Context, start ExecutionStart) error
	// CommitCompletion applies the session update, the task state transition
	// and the summary comment in one transaction, so a failure midway never
	// leaves a completed session on an in_progress task.
	CommitCompletion(ctx context.Context, completion ExecutionCompletion) error
}

// Repository is the composed interface for the whole storage layer.
type Repository interface {
	ProjectRepository
	TaskRepository
	CommentRepository
	SessionRepository
	SandboxRecordRepository
	DestroyQueueRepository
	ManifestRepository
	ExecutionRepository
}
