// Package execute implements the task execution state machine: it validates
// preconditions, claims the task, builds the agent prompt, decrypts the
// project credential, spawns the sandbox and commits the new session, task
// state and audit comment.
package execute

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/taskforge/taskforge/internal/agent"
	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/lifecycle"
	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/sandbox"
	"github.com/taskforge/taskforge/internal/storage"
	"github.com/taskforge/taskforge/internal/vault"
)

// ServiceConfig is the configuration for the execute service.
type ServiceConfig struct {
	Repository storage.Repository
	Guard      *auth.Guard
	Vault      *vault.Vault
	Lifecycle  *lifecycle.Manager
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Guard == nil {
		return fmt.Errorf("guard is required")
	}
	if c.Vault == nil {
		return fmt.Errorf("vault is required")
	}
	if c.Lifecycle == nil {
		return fmt.Errorf("lifecycle manager is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Execute"})
	return nil
}

// Service handles the execution of a task in a sandbox.
type Service struct {
	repo      storage.Repository
	guard     *auth.Guard
	vault     *vault.Vault
	lifecycle *lifecycle.Manager
	logger    log.Logger
}

// NewService creates a new execute service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:      cfg.Repository,
		guard:     cfg.Guard,
		vault:     cfg.Vault,
		lifecycle: cfg.Lifecycle,
		logger:    cfg.Logger,
	}, nil
}

// Result is the outcome of a started execution attempt.
type Result struct {
	Session model.ExecutionSession
	// SandboxPassword is the plaintext password for display to the caller,
	// the persisted session stores it encrypted.
	SandboxPassword string
}

// Execute starts one execution attempt of a task.
func (s *Service) Execute(ctx context.Context, caller model.User, taskID string) (*Result, error) {
	// 1. Resolve the task and guard ownership through its project.
	task, project, err := s.guard.ProjectForTask(ctx, caller, taskID)
	if err != nil {
		return nil, err
	}

	// 2. Claim the task. The conditional update rejects a concurrent start
	// before any side effect happens: no session, no sandbox, no comment.
	err = s.repo.ClaimTaskExecution(ctx, task.ID)
	if err != nil {
		if errors.Is(err, model.ErrAlreadyExists) {
			return nil, fmt.Errorf("task %s is already executing: %w", task.ID, model.ErrNotValid)
		}
		return nil, fmt.Errorf("could not claim task: %w", err)
	}

	result, err := s.startClaimed(ctx, caller, *task, *project)
	if err != nil {
		// The claim was taken, leave the task in error instead of stuck.
		if stateErr := s.repo.SetTaskExecutionState(ctx, task.ID, model.ExecutionStateError); stateErr != nil {
			s.logger.Errorf("Could not reset task %s after failed start: %s", task.ID, stateErr)
		}
		return nil, err
	}

	return result, nil
}

// startClaimed runs the steps that happen after the task claim. Any error
// returned here makes the caller roll the task into the error state.
func (s *Service) startClaimed(ctx context.Context, caller model.User, task model.Task, project model.Project) (*Result, error) {
	// 3. Load the comment history in ascending creation order.
	comments, err := s.repo.ListCommentsByTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("could not load comments: %w", err)
	}

	// 4. Build the agent prompt.
	prompt := agent.BuildPrompt(task, comments, project.AgentInstructions)

	// 5. Decrypt the repository credential.
	repoToken, err := s.vault.Decrypt(project.EncryptedRepoToken)
	if err != nil {
		return nil, fmt.Errorf("could not decrypt repository credential: %w", err)
	}

	// 6. Spawn the sandbox.
	spawned, err := s.lifecycle.Spawn(ctx, sandbox.SpawnSpec{
		TaskID:            task.ID,
		TaskTitle:         task.Title,
		TaskDescription:   task.Description,
		BranchName:        task.BranchName,
		Purpose:           model.SandboxPurposeTask,
		ProjectID:         project.ID,
		RepoURL:           project.RepoURL,
		RepoToken:         repoToken,
		Prompt:            prompt,
		AgentModel:        agent.ResolveModel(task.AgentModel),
		AgentInstructions: project.AgentInstructions,
		SetupScript:       project.SetupScript,
		CallerUserID:      caller.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("could not spawn sandbox: %w", err)
	}

	// 7. Commit session, branch and audit comment as one unit. On failure
	// the spawned sandbox is destroyed as compensation so it isn't orphaned.
	encryptedPassword, err := s.vault.Encrypt(spawned.Password)
	if err != nil {
		s.compensateSpawn(ctx, spawned.BranchName)
		return nil, fmt.Errorf("could not encrypt sandbox password: %w", err)
	}

	now := time.Now().UTC()
	session := model.ExecutionSession{
		ID:              newID(),
		TaskID:          task.ID,
		CorrelationID:   uuid.NewString(),
		Status:          model.SessionStatusPending,
		Mode:            model.ExecutionModeSandbox,
		SandboxHandle:   spawned.Handle,
		SandboxURL:      spawned.URL,
		SandboxPassword: encryptedPassword,
		WebhookSecret:   spawned.WebhookSecret,
		BranchName:      spawned.BranchName,
		MessageCount:    "0",
		TokenCount:      "0",
		CreatedAt:       now,
	}
	comment := model.Comment{
		ID:        newID(),
		TaskID:    task.ID,
		AgentName: agent.Name,
		Content:   fmt.Sprintf("Started sandbox %s on branch %s.", spawned.Handle, spawned.BranchName),
		CreatedAt: now,
	}

	err = s.repo.CommitExecutionStart(ctx, storage.ExecutionStart{
		Session: session,
		Comment: comment,
	})
	if err != nil {
		s.compensateSpawn(ctx, spawned.BranchName)
		return nil, fmt.Errorf("could not commit execution start: %w", err)
	}

	s.logger.Infof("Started execution of task %s in sandbox %s (branch: %s)", task.ID, spawned.Handle, spawned.BranchName)

	return &Result{
		Session:         session,
		SandboxPassword: spawned.Password,
	}, nil
}

// compensateSpawn destroys a sandbox spawned by an attempt whose persistence
// failed. Destroy never fails the caller, failed remote destroys land on the
// reaper queue.
func (s *Service) compensateSpawn(ctx context.Context, branch string) {
	if err := s.lifecycle.Destroy(ctx, branch, model.SandboxPurposeTask); err != nil {
		s.logger.Errorf("Could not compensate spawned sandbox for branch %s: %s", branch, err)
	}
}

func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
