package sandbox

import (
	"context"
	"io"

	"github.com/taskforge/taskforge/internal/model"
)

// SpawnSpec is everything the provider needs to provision a sandbox and
// start the agent inside it. The repository token is the decrypted
// credential, it is handed to the provider and never persisted in this form.
type SpawnSpec struct {
	TaskID          string
	TaskTitle       string
	TaskDescription string
	// BranchName may be empty, the provider generates one in that case.
	BranchName string
	Purpose    model.SandboxPurpose

	ProjectID string
	RepoURL   string
	RepoToken string

	// Prompt is the fully rendered agent prompt.
	Prompt string
	// AgentModel is the provider-qualified model string.
	AgentModel string
	// AgentInstructions are the project's custom instructions, may be empty.
	AgentInstructions string
	// SetupScript runs in the sandbox before the agent starts, may be empty.
	SetupScript string

	CallerUserID string
}

// Spawned is the result of provisioning a sandbox.
type Spawned struct {
	// Handle is the provider-side sandbox name, used for exec and destroy.
	Handle string
	// URL is the connection URL of the sandbox UI.
	URL string
	// Password grants access to the sandbox UI.
	Password string
	// WebhookSecret authenticates the asynchronous completion callback of
	// this run.
	WebhookSecret string
	// BranchName is the spec's branch, or a generated one when it was empty.
	BranchName string
}

// ExecOpts are the options for executing a command in a sandbox.
type ExecOpts struct {
	WorkingDir string
	Env        map[string]string
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// ExecResult is the result of executing a command in a sandbox.
type ExecResult struct {
	ExitCode int
}

// Provider is the interface for the external sandbox compute capability.
// Calls are bounded remote calls, implementations propagate provider
// timeouts and errors instead of hanging.
type Provider interface {
	Spawn(ctx context.Context, spec SpawnSpec) (*Spawned, error)
	Exec(ctx context.Context, handle string, command []string, opts ExecOpts) (*ExecResult, error)
	Destroy(ctx context.Context, handle string) error
}
