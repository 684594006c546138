package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/manifest"
	"github.com/taskforge/taskforge/internal/printer"
)

type ManifestCancelCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	manifestID string
}

// NewManifestCancelCommand returns the manifest cancel command.
func NewManifestCancelCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ManifestCancelCommand {
	c := &ManifestCancelCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("cancel", "Cancel a batch run.")
	c.Cmd.Arg("manifest-id", "Manifest ID.").Required().StringVar(&c.manifestID)

	return c
}

func (c ManifestCancelCommand) Name() string { return c.Cmd.FullCommand() }

func (c ManifestCancelCommand) Run(ctx context.Context) error {
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

	if err := svc.Cancel(ctx, *user, c.manifestID); err != nil {
		return fmt.Errorf("could not cancel manifest: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Cancelled manifest: %s", c.manifestID)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
