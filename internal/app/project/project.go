// Package project implements project registration and management.
package project

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
	"github.com/taskforge/taskforge/internal/vault"
)

// ServiceConfig is the configuration for the project service.
type ServiceConfig struct {
	Repository storage.Repository
	Guard      *auth.Guard
	Vault      *vault.Vault
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
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Project"})
	return nil
}

// Service handles project business logic.
type Service struct {
	repo   storage.Repository
	guard  *auth.Guard
	vault  *vault.Vault
	logger log.Logger
}

// NewService creates a new project service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		guard:  cfg.Guard,
		vault:  cfg.Vault,
		logger: cfg.Logger,
	}, nil
}

// CreateOptions are the options for registering a project.
type CreateOptions struct {
	Name    string
	RepoURL string
	// RepoToken is the plaintext repository credential, it is encrypted
	// before it ever reaches storage.
	RepoToken         string
	AgentInstructions string
	SetupScript       string
}

// Create registers a new project owned by the caller.
func (s *Service) Create(ctx context.Context, caller model.User, opts CreateOptions) (*model.Project, error) {
	encryptedToken := ""
	if opts.RepoToken != "" {
		var err error
		encryptedToken, err = s.vault.Encrypt(opts.RepoToken)
		if err != nil {
			return nil, fmt.Errorf("could not encrypt repository credential: %w", err)
		}
	}

	p := model.Project{
		ID:                 ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		OwnerUserID:        caller.ID,
		Name:               opts.Name,
		RepoURL:            opts.RepoURL,
		EncryptedRepoToken: encryptedToken,
		AgentInstructions:  opts.AgentInstructions,
		SetupScript:        opts.SetupScript,
		CreatedAt:          time.Now().UTC(),
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}

	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("could not save project: %w", err)
	}

	s.logger.Infof("Registered project: %s (%s)", p.Name, p.ID)

	return &p, nil
}

// Get retrieves a project, guarded by ownership.
func (s *Service) Get(ctx context.Context, caller model.User, id string) (*model.Project, error) {
	return s.guard.Project(ctx, caller, id)
}

// List retrieves the caller's projects.
func (s *Service) List(ctx context.Context, caller model.User) ([]model.Project, error) {
	projects, err := s.repo.ListProjectsByOwner(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("could not list projects: %w", err)
	}

	return projects, nil
}

// Delete removes a project and everything hanging off it, guarded by
// ownership.
func (s *Service) Delete(ctx context.Context, caller model.User, id string) error {
	if _, err := s.guard.Project(ctx, caller, id); err != nil {
		return err
	}

	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("could not delete project: %w", err)
	}

	s.logger.Infof("Deleted project: %s", id)
	return nil
}
