// Package task implements task management under a project: creation,
// comments and the execution session ledger reads.
package task

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage"
)

// ServiceConfig is the configuration for the task service.
type ServiceConfig struct {
	Repository storage.Repository
	Guard      *auth.Guard
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Guard == nil {
		return fmt.Errorf("guard is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Task"})
	return nil
}

// Service handles task business logic.
type Service struct {
	repo   storage.Repository
	guard  *auth.Guard
	logger log.Logger
}

// NewService creates a new task service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		guard:  cfg.Guard,
		logger: cfg.Logger,
	}, nil
}

// CreateOptions are the options for filing a task.
type CreateOptions struct {
	ProjectID   string
	Title       string
	Description string
	Type        model.TaskType
	AgentModel  string
}

// Create files a new task against a project, guarded by project ownership.
func (s *Service) Create(ctx context.Context, caller model.User, opts CreateOptions) (*model.Task, error) {
	if _, err := s.guard.Project(ctx, caller, opts.ProjectID); err != nil {
		return nil, err
	}

	if opts.Type == "" {
		opts.Type = model.TaskTypeOther
	}

	t := model.Task{
		ID:             newID(),
		ProjectID:      opts.ProjectID,
		Title:          opts.Title,
		Description:    opts.Description,
		Type:           opts.Type,
		ExecutionState: model.ExecutionStateIdle,
		AgentModel:     opts.AgentModel,
		CreatedAt:      time.Now().UTC(),
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("could not save task: %w", err)
	}

	s.logger.Infof("Created task: %s (%s)", t.Title, t.ID)

	return &t, nil
}

// Get retrieves a task, guarded through its owning project.
func (s *Service) Get(ctx context.Context, caller model.User, id string) (*model.Task, error) {
	t, _, err := s.guard.ProjectForTask(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// List retrieves the tasks of a project, guarded by project ownership.
func (s *Service) List(ctx context.Context, caller model.User, projectID string) ([]model.Task, error) {
	if _, err := s.guard.Project(ctx, caller, projectID); err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	return tasks, nil
}

// AddComment appends a user comment to a task, guarded through its owning
// project.
func (s *Service) AddComment(ctx context.Context, caller model.User, taskID string, content string) (*model.Comment, error) {
	if _, _, err := s.guard.ProjectForTask(ctx, caller, taskID); err != nil {
		return nil, err
	}

	c := model.Comment{
		ID:           newID(),
		TaskID:       taskID,
		AuthorUserID: caller.ID,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid comment: %w", err)
	}

	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("could not save comment: %w", err)
	}

	return &c, nil
}

// ListComments retrieves the comments of a task in ascending creation order,
// guarded through its owning project.
func (s *Service) ListComments(ctx context.Context, caller model.User, taskID string) ([]model.Comment, error) {
	if _, _, err := s.guard.ProjectForTask(ctx, caller, taskID); err != nil {
		return nil, err
	}

	comments, err := s.repo.ListCommentsByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not list comments: %w", err)
	}

	return comments, nil
}

// LatestSession retrieves the most recent execution session of a task,
// guarded through its owning project.
func (s *Service) LatestSession(ctx context.Context, caller model.User, taskID string) (*model.ExecutionSession, error) {
	if _, _, err := s.guard.ProjectForTask(ctx, caller, taskID); err != nil {
		return nil, err
	}

	return s.repo.GetLatestSession(ctx, taskID)
}

// ProjectSessions retrieves all execution sessions of a project's tasks,
// newest first, guarded by project ownership.
func (s *Service) ProjectSessions(ctx context.Context, caller model.User, projectID string) ([]model.ExecutionSession, error) {
	if _, err := s.guard.Project(ctx, caller, projectID); err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}

	sessions, err := s.repo.ListSessionsForTasks(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("could not list sessions: %w", err)
	}

	return sessions, nil
}

// Delete removes a task and its comments and sessions, guarded through its
// owning project.
func (s *Service) Delete(ctx context.Context, caller model.User, id string) error {
	if _, _, err := s.guard.ProjectForTask(ctx, caller, id); err != nil {
		return err
	}

	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	s.logger.Infof("Deleted task: %s", id)
	return nil
}

func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
