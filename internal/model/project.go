package model

import (
	"fmt"
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID   string
	Name string
}

// Project represents a registered code repository that tasks are executed
// against. The repository credential is stored encrypted and only decrypted
// at the moment a sandbox is spawned.
type Project struct {
	ID          string
	OwnerUserID string
	Name        string
	RepoURL     string
	// EncryptedRepoToken is a credential vault blob, never plaintext.
	EncryptedRepoToken string
	// AgentInstructions are optional extra instructions appended to every
	// agent prompt for this project.
	AgentInstructions string
	// SetupScript is an optional script executed in the sandbox before the
	// agent starts. Presence toggles the setup step.
	SetupScript string
	CreatedAt   time.Time
}

// Validate validates the project.
func (p *Project) Validate() error {
	if p.OwnerUserID == "" {
		return fmt.Errorf("owner user id is required: %w", ErrNotValid)
	}
	if p.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}
	if p.RepoURL == "" {
		return fmt.Errorf("repo url is required: %w", ErrNotValid)
	}
	return nil
}
