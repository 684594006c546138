package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/execute"
	"github.com/taskforge/taskforge/internal/lifecycle"
	"github.com/taskforge/taskforge/internal/printer"
)

const defaultAgentImage = "ghcr.io/taskforge/agent:latest"

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID     string
	agentImage string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Execute a task in a disposable sandbox.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("agent-image", "Container image that carries the coding agent.").Default(defaultAgentImage).StringVar(&c.agentImage)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	user, err := c.rootCmd.currentUser(ctx)
	if err != nil {
		return err
	}

	// Initialize storage (SQLite).
	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	guard, err := c.rootCmd.newGuard(repo)
	if err != nil {
		return err
	}

	v, err := c.rootCmd.newVault()
	if err != nil {
		return err
	}

	// Initialize the sandbox provider and its lifecycle manager.
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

	// Create execute service.
	svc, err := execute.NewService(execute.ServiceConfig{
		Repository: repo,
		Guard:      guard,
		Vault:      v,
		Lifecycle:  manager,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute the task.
	result, err := svc.Execute(ctx, *user, c.taskID)
	if err != nil {
		return fmt.Errorf("could not execute task: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	msg := fmt.Sprintf("Started execution on branch %s\nSandbox URL: %s\nSandbox password: %s",
		result.Session.BranchName, result.Session.SandboxURL, result.SandboxPassword)
	if err := p.PrintMessage(msg); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
