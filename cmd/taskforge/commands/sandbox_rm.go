package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/lifecycle"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/printer"
)

type SandboxRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	branch     string
	purpose    string
	agentImage string
}

// NewSandboxRmCommand returns the sandbox rm command.
func NewSandboxRmCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *SandboxRmCommand {
	c := &SandboxRmCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("rm", "Destroy the sandbox tracked for a branch.")
	c.Cmd.Arg("branch", "Branch name the sandbox is tracked under.").Required().StringVar(&c.branch)
	c.Cmd.Flag("purpose", "Sandbox purpose.").Default(string(model.SandboxPurposeTask)).EnumVar(&c.purpose,
		string(model.SandboxPurposeTask), string(model.SandboxPurposeManifest))
	c.Cmd.Flag("agent-image", "Container image that carries the coding agent.").Default(defaultAgentImage).StringVar(&c.agentImage)

	return c
}

func (c SandboxRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c SandboxRmCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

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

	if err := manager.Destroy(ctx, c.branch, model.SandboxPurpose(c.purpose)); err != nil {
		return fmt.Errorf("could not destroy sandbox: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Destroyed sandbox for branch: %s", c.branch)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
