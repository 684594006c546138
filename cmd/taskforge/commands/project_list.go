package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/project"
)

type ProjectListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewProjectListCommand returns the project list command.
func NewProjectListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ProjectListCommand {
	c := &ProjectListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List the projects owned by the acting user.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ProjectListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProjectListCommand) Run(ctx context.Context) error {
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

	projects, err := svc.List(ctx, *user)
	if err != nil {
		return fmt.Errorf("could not list projects: %w", err)
	}

	if err := c.rootCmd.newPrinter(c.format).PrintProjectList(projects); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
