package model

import (
	"fmt"
	"time"
)

// ManifestStatus is the status of a batch run.
type ManifestStatus string

const (
	// ManifestStatusPending indicates the batch run was created but not started.
	ManifestStatusPending ManifestStatus = "pending"
	// ManifestStatusActive indicates the batch run is being prepared.
	ManifestStatusActive ManifestStatus = "active"
	// ManifestStatusRunning indicates tasks of the batch are executing.
	ManifestStatusRunning ManifestStatus = "running"
	// ManifestStatusCompleted indicates all tasks of the batch finished.
	ManifestStatusCompleted ManifestStatus = "completed"
	// ManifestStatusFailed indicates the batch run failed.
	ManifestStatusFailed ManifestStatus = "failed"
	// ManifestStatusCancelled indicates the batch run was cancelled.
	ManifestStatusCancelled ManifestStatus = "cancelled"
)

// IsActive returns true for the statuses that count against the
// single-active-run invariant.
func (s ManifestStatus) IsActive() bool {
	return s == ManifestStatusPending || s == ManifestStatusActive || s == ManifestStatusRunning
}

// Manifest is a batch of tasks executed together under one run. A project
// may hold at most one manifest in an active status at a time.
type Manifest struct {
	ID             string
	ProjectID      string
	Status         ManifestStatus
	CompletedTasks int
	CreatedAt      time.Time
}

// Validate validates the manifest.
func (m *Manifest) Validate() error {
	if m.ProjectID == "" {
		return fmt.Errorf("project id is required: %w", ErrNotValid)
	}

	switch m.Status {
	case ManifestStatusPending, ManifestStatusActive, ManifestStatusRunning,
		ManifestStatusCompleted, ManifestStatusFailed, ManifestStatusCancelled:
	default:
		return fmt.Errorf("unknown manifest status %q: %w", m.Status, ErrNotValid)
	}

	if m.CompletedTasks < 0 {
		return fmt.Errorf("completed tasks can't be negative: %w", ErrNotValid)
	}

	return nil
}
