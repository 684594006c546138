package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/task"
	"github.com/taskforge/taskforge/internal/printer"
)

type TaskCommentCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID  string
	content string
}

// NewTaskCommentCommand returns the task comment command.
func NewTaskCommentCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TaskCommentCommand {
	c := &TaskCommentCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("comment", "Add a comment to a task.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)
	c.Cmd.Arg("content", "Comment content.").Required().StringVar(&c.content)

	return c
}

func (c TaskCommentCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskCommentCommand) Run(ctx context.Context) error {
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

	comment, err := svc.AddComment(ctx, *user, c.taskID, c.content)
	if err != nil {
		return fmt.Errorf("could not add comment: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Added comment %s", comment.ID)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
