// Package lifecycle implements the sandbox lifecycle manager: it provisions
// sandboxes through the external provider, tracks them by (branch, purpose),
// and destroys them idempotently.
package lifecycle

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/sandbox"
	"github.com/taskforge/taskforge/internal/storage"
)

// ManagerConfig is the configuration for the lifecycle manager.
type ManagerConfig struct {
	Provider   sandbox.Provider
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ManagerConfig) defaults() error {
	if c.Provider == nil {
		return fmt.Errorf("provider is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "lifecycle.Manager"})
	return nil
}

// Manager handles sandbox provisioning and teardown around the external
// provider.
type Manager struct {
	provider sandbox.Provider
	repo     storage.Repository
	logger   log.Logger
}

// NewManager creates a new lifecycle manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{
		provider: cfg.Provider,
		repo:     cfg.Repository,
		logger:   cfg.Logger,
	}, nil
}

// Spawn provisions a sandbox and tracks it with a record keyed by
// (branch, purpose). When the record can't be stored the fresh sandbox is
// destroyed best-effort so it doesn't leak untracked.
func (m *Manager) Spawn(ctx context.Context, spec sandbox.SpawnSpec) (*sandbox.Spawned, error) {
	spawned, err := m.provider.Spawn(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("could not spawn sandbox: %w", err)
	}

	rec := model.SandboxRecord{
		ID:         newID(),
		BranchName: spawned.BranchName,
		Purpose:    spec.Purpose,
		Handle:     spawned.Handle,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.repo.CreateSandboxRecord(ctx, rec); err != nil {
		m.destroyRemote(ctx, spawned.Handle)
		return nil, fmt.Errorf("could not save sandbox record: %w", err)
	}

	m.logger.Infof("Spawned sandbox %s for branch %s (%s)", spawned.Handle, spawned.BranchName, spec.Purpose)

	return spawned, nil
}

// Exec runs a command in the sandbox tracked for (branch, purpose), resolving
// the remote handle from the record. Unlike Destroy, a missing record is an
// error: there is nothing to run the command in.
func (m *Manager) Exec(ctx context.Context, branch string, purpose model.SandboxPurpose, command []string, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	rec, err := m.repo.GetSandboxRecord(ctx, branch, purpose)
	if err != nil {
		return nil, fmt.Errorf("could not get sandbox record: %w", err)
	}

	result, err := m.provider.Exec(ctx, rec.Handle, command, opts)
	if err != nil {
		return nil, fmt.Errorf("could not execute command in sandbox %s: %w", rec.Handle, err)
	}

	return result, nil
}

// Destroy tears down the sandbox tracked for (branch, purpose). It never
// fails its caller: a missing record is a no-op success (repeated destroys
// are idempotent) and a failed remote destroy is logged, queued for the
// reaper, and swallowed. The record is deleted regardless of the remote
// outcome.
func (m *Manager) Destroy(ctx context.Context, branch string, purpose model.SandboxPurpose) error {
	rec, err := m.repo.GetSandboxRecord(ctx, branch, purpose)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			m.logger.Debugf("No sandbox record for branch %s (%s), nothing to destroy", branch, purpose)
			return nil
		}
		return fmt.Errorf("could not get sandbox record: %w", err)
	}

	m.destroyRemote(ctx, rec.Handle)

	if err := m.repo.DeleteSandboxRecord(ctx, rec.ID); err != nil {
		return fmt.Errorf("could not delete sandbox record: %w", err)
	}

	return nil
}

// destroyRemote destroys the remote sandbox best-effort. Failures are logged
// and enqueued for the reaper instead of being propagated.
func (m *Manager) destroyRemote(ctx context.Context, handle string) {
	err := m.provider.Destroy(ctx, handle)
	if err == nil {
		m.logger.Infof("Destroyed sandbox: %s", handle)
		return
	}

	m.logger.Warningf("Could not destroy sandbox %s, queued for reaper: %s", handle, err)

	retry := model.DestroyRetry{
		ID:        newID(),
		Handle:    handle,
		Attempts:  1,
		LastError: err.Error(),
		CreatedAt: time.Now().UTC(),
	}
	if qErr := m.repo.EnqueueDestroyRetry(ctx, retry); qErr != nil {
		m.logger.Errorf("Could not enqueue destroy retry for %s: %s", handle, qErr)
	}
}

// Reap drains the failed-destroy queue, retrying every queued remote
// destroy. It returns how many sandboxes were reaped. Entries that fail
// again stay queued with their attempt counter bumped.
func (m *Manager) Reap(ctx context.Context) (int, error) {
	retries, err := m.repo.ListDestroyRetries(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not list destroy retries: %w", err)
	}

	reaped := 0
	for _, retry := range retries {
		err := m.provider.Destroy(ctx, retry.Handle)
		if err != nil {
			m.logger.Warningf("Reaper could not destroy sandbox %s (attempt %d): %s", retry.Handle, retry.Attempts+1, err)
			if delErr := m.repo.DeleteDestroyRetry(ctx, retry.ID); delErr != nil {
				m.logger.Errorf("Could not delete destroy retry %s: %s", retry.ID, delErr)
				continue
			}
			retry.Attempts++
			retry.LastError = err.Error()
			if qErr := m.repo.EnqueueDestroyRetry(ctx, retry); qErr != nil {
				m.logger.Errorf("Could not requeue destroy retry for %s: %s", retry.Handle, qErr)
			}
			continue
		}

		if err := m.repo.DeleteDestroyRetry(ctx, retry.ID); err != nil {
			m.logger.Errorf("Could not delete destroy retry %s: %s", retry.ID, err)
			continue
		}

		m.logger.Infof("Reaped sandbox: %s", retry.Handle)
		reaped++
	}

	return reaped, nil
}

func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
