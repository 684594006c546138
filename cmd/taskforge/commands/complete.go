package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/complete"
	"github.com/taskforge/taskforge/internal/printer"
)

type CompleteCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID       string
	secret       string
	failed       bool
	summary      string
	messageCount string
	tokenCount   string
}

// NewCompleteCommand returns the complete command.
func NewCompleteCommand(rootCmd *RootCommand, app *kingpin.Application) *CompleteCommand {
	c := &CompleteCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("complete", "Apply an execution completion callback, authenticated by the run's webhook secret.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("secret", "Webhook secret handed to the sandbox at spawn time.").Required().StringVar(&c.secret)
	c.Cmd.Flag("failed", "Mark the execution as failed.").BoolVar(&c.failed)
	c.Cmd.Flag("summary", "Agent summary, recorded as a comment on the task.").StringVar(&c.summary)
	c.Cmd.Flag("messages", "Number of agent messages exchanged.").StringVar(&c.messageCount)
	c.Cmd.Flag("tokens", "Number of tokens consumed.").StringVar(&c.tokenCount)

	return c
}

func (c CompleteCommand) Name() string { return c.Cmd.FullCommand() }

func (c CompleteCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := complete.NewService(complete.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	session, err := svc.Complete(ctx, complete.CompleteOptions{
		TaskID:       c.taskID,
		Secret:       c.secret,
		Success:      !c.failed,
		Summary:      c.summary,
		MessageCount: c.messageCount,
		TokenCount:   c.tokenCount,
	})
	if err != nil {
		return fmt.Errorf("could not complete execution: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Completed session %s with status %s", session.ID, session.Status)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
