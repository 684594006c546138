package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/project"
	"github.com/taskforge/taskforge/internal/printer"
	storageio "github.com/taskforge/taskforge/internal/storage/io"
)

type ProjectRegisterCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name         string
	repoURL      string
	repoToken    string
	instructions string
	setupScript  string
	specFile     string
}

// NewProjectRegisterCommand returns the project register command.
func NewProjectRegisterCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ProjectRegisterCommand {
	c := &ProjectRegisterCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("register", "Register a new project.")
	c.Cmd.Flag("name", "Project name.").StringVar(&c.name)
	c.Cmd.Flag("repo-url", "Repository URL.").StringVar(&c.repoURL)
	c.Cmd.Flag("repo-token", "Repository access token, stored encrypted.").StringVar(&c.repoToken)
	c.Cmd.Flag("instructions", "Extra instructions appended to every agent prompt.").StringVar(&c.instructions)
	c.Cmd.Flag("setup-script", "Script executed in the sandbox before the agent starts.").StringVar(&c.setupScript)
	c.Cmd.Flag("file", "Path to a YAML project spec, flags override its values.").Short('f').StringVar(&c.specFile)

	return c
}

func (c ProjectRegisterCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProjectRegisterCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	opts := project.CreateOptions{
		Name:              c.name,
		RepoURL:           c.repoURL,
		RepoToken:         c.repoToken,
		AgentInstructions: c.instructions,
		SetupScript:       c.setupScript,
	}

	// Load the YAML spec first so explicit flags can override it.
	if c.specFile != "" {
		dir, file := filepath.Split(c.specFile)
		if dir == "" {
			dir = "."
		}
		loader := storageio.NewProjectYAMLRepository(os.DirFS(dir))
		spec, token, err := loader.GetProjectSpec(ctx, file)
		if err != nil {
			return fmt.Errorf("could not load project spec: %w", err)
		}
		if opts.Name == "" {
			opts.Name = spec.Name
		}
		if opts.RepoURL == "" {
			opts.RepoURL = spec.RepoURL
		}
		if opts.RepoToken == "" {
			opts.RepoToken = token
		}
		if opts.AgentInstructions == "" {
			opts.AgentInstructions = spec.AgentInstructions
		}
		if opts.SetupScript == "" {
			opts.SetupScript = spec.SetupScript
		}
	}

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
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	p, err := svc.Create(ctx, *user, opts)
	if err != nil {
		return fmt.Errorf("could not register project: %w", err)
	}

	pr := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := pr.PrintMessage(fmt.Sprintf("Registered project %s (%s)", p.Name, p.ID)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
