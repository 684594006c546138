// Package manifest implements batch-run management and the single-active-run
// invariant: a project holds at most one manifest in an active status.
package manifest

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage"
)

// ServiceConfig is the configuration for the manifest service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Manifest"})
	return nil
}

// Service handles manifest business logic.
type Service struct {
	repo   storage.Repository
	guard  *auth.Guard
	logger log.Logger
}

// NewService creates a new manifest service.
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

// Create starts a new batch run for a project. It is rejected while another
// manifest of the project is still active. The check is read-then-write, the
// unique-active property is an application invariant, not a storage
// constraint, which is why GetActive tolerates duplicates.
func (s *Service) Create(ctx context.Context, caller model.User, projectID string) (*model.Manifest, error) {
	if _, err := s.guard.Project(ctx, caller, projectID); err != nil {
		return nil, err
	}

	active, err := s.getActive(ctx, projectID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("project %s already has an active manifest %s: %w", projectID, active.ID, model.ErrAlreadyExists)
	}

	m := model.Manifest{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		ProjectID: projectID,
		Status:    model.ManifestStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateManifest(ctx, m); err != nil {
		return nil, fmt.Errorf("could not save manifest: %w", err)
	}

	s.logger.Infof("Created manifest %s for project %s", m.ID, projectID)

	return &m, nil
}

// GetActive returns the project's single active manifest, guarded by
// project ownership. model.ErrNotFound when there is none.
func (s *Service) GetActive(ctx context.Context, caller model.User, projectID string) (*model.Manifest, error) {
	if _, err := s.guard.Project(ctx, caller, projectID); err != nil {
		return nil, err
	}

	return s.getActive(ctx, projectID)
}

func (s *Service) getActive(ctx context.Context, projectID string) (*model.Manifest, error) {
	manifests, err := s.repo.ListActiveManifests(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("could not list active manifests: %w", err)
	}

	if len(manifests) == 0 {
		return nil, fmt.Errorf("active manifest for project %s: %w", projectID, model.ErrNotFound)
	}

	// More than one active manifest means a racing writer broke the
	// invariant. Warn and answer with the first by stable order instead of
	// failing reads forever.
	if len(manifests) > 1 {
		s.logger.Warningf("Project %s has %d active manifests, expected at most one", projectID, len(manifests))
	}

	return &manifests[0], nil
}

// UpdateStatus moves a manifest to a new status, guarded through its owning
// project.
func (s *Service) UpdateStatus(ctx context.Context, caller model.User, manifestID string, status model.ManifestStatus) error {
	if _, _, err := s.guard.ProjectForManifest(ctx, caller, manifestID); err != nil {
		return err
	}

	switch status {
	case model.ManifestStatusPending, model.ManifestStatusActive, model.ManifestStatusRunning,
		model.ManifestStatusCompleted, model.ManifestStatusFailed, model.ManifestStatusCancelled:
	default:
		return fmt.Errorf("unknown manifest status %q: %w", status, model.ErrNotValid)
	}

	if err := s.repo.UpdateManifestStatus(ctx, manifestID, status); err != nil {
		return fmt.Errorf("could not update manifest status: %w", err)
	}

	s.logger.Infof("Updated manifest %s to %s", manifestID, status)
	return nil
}

// Cancel cancels a manifest, guarded through its owning project.
func (s *Service) Cancel(ctx context.Context, caller model.User, manifestID string) error {
	return s.UpdateStatus(ctx, caller, manifestID, model.ManifestStatusCancelled)
}
