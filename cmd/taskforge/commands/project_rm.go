package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/project"
	"github.com/taskforge/taskforge/internal/printer"
)

type ProjectRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
}

// NewProjectRmCommand returns the project rm command.
func NewProjectRmCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ProjectRmCommand {
	c := &ProjectRmCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("rm", "Remove a project and everything that hangs off it.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)

	return c
}

func (c ProjectRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProjectRmCommand) Run(ctx context.Context) error {
	user, err := c.rootCmd.currentUser(ctx)
	if err != nil {
		return err
	}

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

	svc, err := project.NewService(project.ServiceConfig{
		Repository: repo,
		Guard:      guard,
		Vault:      v,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Delete(ctx, *user, c.projectID); err != nil {
		return fmt.Errorf("could not remove project: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Removed project: %s", c.projectID)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
