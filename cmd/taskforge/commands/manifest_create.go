package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/manifest"
	"github.com/taskforge/taskforge/internal/printer"
)

type ManifestCreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
}

// NewManifestCreateCommand returns the manifest create command.
func NewManifestCreateCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ManifestCreateCommand {
	c := &ManifestCreateCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("create", "Create a batch run for a project.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)

	return c
}

func (c ManifestCreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c ManifestCreateCommand) Run(ctx context.Context) error {
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

	svc, err := manifest.NewService(manifest.ServiceConfig{
		Repository: repo,
		Guard:      guard,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	m, err := svc.Create(ctx, *user, c.projectID)
	if err != nil {
		return fmt.Errorf("could not create manifest: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Created manifest %s", m.ID)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
