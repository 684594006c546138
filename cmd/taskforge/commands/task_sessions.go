package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/task"
	"github.com/taskforge/taskforge/internal/model"
)

type TaskSessionsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID    string
	projectID string
	format    string
}

// NewTaskSessionsCommand returns the task sessions command.
func NewTaskSessionsCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TaskSessionsCommand {
	c := &TaskSessionsCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("sessions", "List execution sessions of a task or a whole project.")
	c.Cmd.Flag("task", "Task ID, lists the latest session of the task.").StringVar(&c.taskID)
	c.Cmd.Flag("project", "Project ID, lists the sessions of every task of the project.").StringVar(&c.projectID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c TaskSessionsCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskSessionsCommand) Run(ctx context.Context) error {
	if (c.taskID == "") == (c.projectID == "") {
		return fmt.Errorf("exactly one of --task or --project is required")
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

	svc, err := task.NewService(task.ServiceConfig{
		Repository: repo,
		Guard:      guard,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	var sessions []model.ExecutionSession
	if c.taskID != "" {
		session, err := svc.LatestSession(ctx, *user, c.taskID)
		if err != nil {
			return fmt.Errorf("could not get latest session: %w", err)
		}
		sessions = []model.ExecutionSession{*session}
	} else {
		sessions, err = svc.ProjectSessions(ctx, *user, c.projectID)
		if err != nil {
			return fmt.Errorf("could not list sessions: %w", err)
		}
	}

	if err := c.rootCmd.newPrinter(c.format).PrintSessionList(sessions); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
