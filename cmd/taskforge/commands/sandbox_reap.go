package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/lifecycle"
	"github.com/taskforge/taskforge/internal/printer"
)

type SandboxReapCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	agentImage string
}

// NewSandboxReapCommand returns the sandbox reap command.
func NewSandboxReapCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *SandboxReapCommand {
	c := &SandboxReapCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("reap", "Retry pending sandbox destroys that failed earlier.")
	c.Cmd.Flag("agent-image", "Container image that carries the coding agent.").Default(defaultAgentImage).StringVar(&c.agentImage)

	return c
}

func (c SandboxReapCommand) Name() string { return c.Cmd.FullCommand() }

func (c SandboxReapCommand) Run(ctx context.Context) error {
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

	reaped, err := manager.Reap(ctx)
	if err != nil {
		return fmt.Errorf("could not reap sandboxes: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Reaped %d sandboxes", reaped)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
