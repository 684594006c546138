package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/taskforge/taskforge/internal/model"
)

// ProjectYAMLRepository loads project registration specs from YAML files.
type ProjectYAMLRepository struct {
	fs fs.FS
}

// NewProjectYAMLRepository creates a new YAML project spec repository.
func NewProjectYAMLRepository(filesystem fs.FS) *ProjectYAMLRepository {
	return &ProjectYAMLRepository{fs: filesystem}
}

// GetProjectSpec loads a project registration spec from a YAML file and
// returns a validated domain model. The returned project carries the repo
// token in plaintext, callers must encrypt it before persisting.
func (r *ProjectYAMLRepository) GetProjectSpec(ctx context.Context, path string) (model.Project, string, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Project{}, "", fmt.Errorf("reading project file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Project{}, "", ctx.Err()
	}

	var spec ProjectSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return model.Project{}, "", fmt.Errorf("parsing YAML: %w", err)
	}

	if err := spec.validate(); err != nil {
		return model.Project{}, "", fmt.Errorf("invalid project spec: %w", err)
	}

	return spec.toModel(), spec.Repo.Token, nil
}

// ProjectSpec represents the YAML structure for a project registration.
type ProjectSpec struct {
	Name  string     `yaml:"name"`
	Repo  RepoSpec   `yaml:"repo"`
	Agent *AgentSpec `yaml:"agent,omitempty"`
	Setup *SetupSpec `yaml:"setup,omitempty"`
}

// RepoSpec represents the YAML structure for the project repository.
type RepoSpec struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// AgentSpec represents the YAML structure for agent customization.
type AgentSpec struct {
	Instructions string `yaml:"instructions"`
}

// SetupSpec represents the YAML structure for sandbox preparation.
type SetupSpec struct {
	Script string `yaml:"script"`
}

func (s ProjectSpec) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Repo.URL == "" {
		return fmt.Errorf("repo url is required")
	}
	if s.Setup != nil && s.Setup.Script == "" {
		return fmt.Errorf("setup script can't be empty when setup is present")
	}
	return nil
}

func (s ProjectSpec) toModel() model.Project {
	p := model.Project{
		Name:    s.Name,
		RepoURL: s.Repo.URL,
	}

	if s.Agent != nil {
		p.AgentInstructions = s.Agent.Instructions
	}
	if s.Setup != nil {
		p.SetupScript = s.Setup.Script
	}

	return p
}
