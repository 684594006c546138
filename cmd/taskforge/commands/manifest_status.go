package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/manifest"
	"github.com/taskforge/taskforge/internal/model"
)

type ManifestStatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
	format    string
}

// NewManifestStatusCommand returns the manifest status command.
func NewManifestStatusCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ManifestStatusCommand {
	c := &ManifestStatusCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("status", "Show the active batch run of a project.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ManifestStatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c ManifestStatusCommand) Run(ctx context.Context) error {
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

	m, err := svc.GetActive(ctx, *user, c.projectID)
	if err != nil {
		// No active manifest is a regular answer, not a failure.
		if errors.Is(err, model.ErrNotFound) {
			return c.rootCmd.newPrinter(c.format).PrintMessage(fmt.Sprintf("No active manifest for project %s", c.projectID))
		}
		return fmt.Errorf("could not get active manifest: %w", err)
	}

	if err := c.rootCmd.newPrinter(c.format).PrintManifest(*m); err != nil {
		return fmt.Errorf("could not print manifest: %w", err)
	}

	return nil
}
