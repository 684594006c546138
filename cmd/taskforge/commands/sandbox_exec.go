package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/lifecycle"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/sandbox"
)

type SandboxExecCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	branch     string
	command    []string
	purpose    string
	workingDir string
	envSpecs   []string
	agentImage string
}

// NewSandboxExecCommand returns the sandbox exec command.
func NewSandboxExecCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *SandboxExecCommand {
	c := &SandboxExecCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("exec", "Execute a command in the sandbox tracked for a branch.")
	c.Cmd.Arg("branch", "Branch name the sandbox is tracked under.").Required().StringVar(&c.branch)
	c.Cmd.Arg("command", "Command to execute (use -- before command).").Required().StringsVar(&c.command)
	c.Cmd.Flag("purpose", "Sandbox purpose.").Default(string(model.SandboxPurposeTask)).EnumVar(&c.purpose,
		string(model.SandboxPurposeTask), string(model.SandboxPurposeManifest))
	c.Cmd.Flag("workdir", "Working directory for command execution.").Short('w').StringVar(&c.workingDir)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("agent-image", "Container image that carries the coding agent.").Default(defaultAgentImage).StringVar(&c.agentImage)

	return c
}

func (c SandboxExecCommand) Name() string { return c.Cmd.FullCommand() }

func (c SandboxExecCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cmdEnv, err := parseEnvSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}

	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	provider, err := c.rootCmd.newSandboxProvider(c.agentImage)
	if err != nil {
		return err
	}

	manager, err := lifecycle.NewManager(lifecycle.ManagerConfig{
		Provider:   provider,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create lifecycle manager: %w", err)
	}

	// Execute with stdin/stdout/stderr wired directly to the terminal.
	result, err := manager.Exec(ctx, c.branch, model.SandboxPurpose(c.purpose), c.command, sandbox.ExecOpts{
		WorkingDir: c.workingDir,
		Env:        cmdEnv,
		Stdin:      c.rootCmd.Stdin,
		Stdout:     c.rootCmd.Stdout,
		Stderr:     c.rootCmd.Stderr,
	})
	if err != nil {
		return fmt.Errorf("could not execute command: %w", err)
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("command exited with code %d: %w", result.ExitCode, model.ErrSandboxExecution)
	}

	return nil
}
