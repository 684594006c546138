// Package complete applies the asynchronous completion callback of an
// execution attempt: it authenticates the callback with the session's
// webhook secret, updates the ledger and moves the task out of in_progress.
package complete

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskforge/taskforge/internal/agent"
	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage"
)

// ServiceConfig is the configuration for the complete service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Complete"})
	return nil
}

// Service applies execution completion callbacks. It authenticates by the
// per-run webhook secret instead of a user identity: the caller is the
// out-of-process agent, not the project owner.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new complete service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// CompleteOptions are the options for applying a completion callback.
type CompleteOptions struct {
	TaskID string
	// Secret must match the latest session's webhook secret.
	Secret string
	// Success decides the session status and the task's next state:
	// awaiting_review on success, error otherwise.
	Success      bool
	Summary      string
	MessageCount string
	TokenCount   string
}

// Complete applies a completion callback to the task's latest session.
func (s *Service) Complete(ctx context.Context, opts CompleteOptions) (*model.ExecutionSession, error) {
	session, err := s.repo.GetLatestSession(ctx, opts.TaskID)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(session.WebhookSecret), []byte(opts.Secret)) != 1 {
		return nil, fmt.Errorf("webhook secret mismatch for task %s: %w", opts.TaskID, model.ErrUnauthorized)
	}

	sessionStatus := model.SessionStatusCompleted
	taskState := model.ExecutionStateAwaitingReview
	if !opts.Success {
		sessionStatus = model.SessionStatusError
		taskState = model.ExecutionStateError
	}

	now := time.Now().UTC()
	update := storage.SessionUpdate{
		Status:      &sessionStatus,
		CompletedAt: &now,
	}
	if opts.MessageCount != "" {
		update.MessageCount = &opts.MessageCount
	}
	if opts.TokenCount != "" {
		update.TokenCount = &opts.TokenCount
	}

	completion := storage.ExecutionCompletion{
		SessionID: session.ID,
		Update:    update,
		TaskID:    opts.TaskID,
		TaskState: taskState,
	}
	if opts.Summary != "" {
		completion.Comment = &model.Comment{
			ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
			TaskID:    opts.TaskID,
			AgentName: agent.Name,
			Content:   opts.Summary,
			CreatedAt: now,
		}
	}

	// Session, task state and summary land as one unit, a failure midway
	// can't leave a completed session on an in_progress task.
	if err := s.repo.CommitCompletion(ctx, completion); err != nil {
		return nil, fmt.Errorf("could not commit completion: %w", err)
	}

	s.logger.Infof("Completed session %s of task %s (%s)", session.ID, opts.TaskID, sessionStatus)

	updated, err := s.repo.GetLatestSession(ctx, opts.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not reload session: %w", err)
	}

	return updated, nil
}
