package model

import (
	"fmt"
	"time"
)

// SandboxPurpose disambiguates per-task sandboxes from batch-run (manifest)
// sandboxes that share a branch name.
type SandboxPurpose string

const (
	// SandboxPurposeTask is a sandbox spawned for a single task execution.
	SandboxPurposeTask SandboxPurpose = "task"
	// SandboxPurposeManifest is a sandbox spawned for a manifest batch run.
	SandboxPurposeManifest SandboxPurpose = "manifest"
)

// SandboxRecord tracks a remote sandbox by (branch, purpose). It is
// associated by branch name instead of a hard foreign key because the
// sandbox provider is external and its sandboxes can outlive (or die
// independently of) our rows. The record is deleted on destroy regardless of
// the remote destroy outcome.
type SandboxRecord struct {
	ID         string
	BranchName string
	Purpose    SandboxPurpose
	// Handle is the provider-side sandbox name.
	Handle    string
	CreatedAt time.Time
}

// DestroyRetry is a queued retry for a sandbox whose remote destroy failed.
// Destroy never fails its caller, so failed destroys land here and a reaper
// drains the queue instead of silently leaking billable sandboxes.
type DestroyRetry struct {
	ID        string
	Handle    string
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// Validate validates the sandbox record.
func (s *SandboxRecord) Validate() error {
	if s.BranchName == "" {
		return fmt.Errorf("branch name is required: %w", ErrNotValid)
	}
	if s.Handle == "" {
		return fmt.Errorf("handle is required: %w", ErrNotValid)
	}

	switch s.Purpose {
	case SandboxPurposeTask, SandboxPurposeManifest:
	default:
		return fmt.Errorf("unknown sandbox purpose %q: %w", s.Purpose, ErrNotValid)
	}

	return nil
}
