package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskforge/taskforge/internal/app/task"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/printer"
)

type TaskAddCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID   string
	title       string
	description string
	taskType    string
	agentModel  string
}

// NewTaskAddCommand returns the task add command.
func NewTaskAddCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TaskAddCommand {
	c := &TaskAddCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("add", "Add a task to a project.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)
	c.Cmd.Arg("title", "Task title.").Required().StringVar(&c.title)
	c.Cmd.Flag("description", "Task description.").StringVar(&c.description)
	c.Cmd.Flag("type", "Task type.").Default(string(model.TaskTypeOther)).EnumVar(&c.taskType,
		string(model.TaskTypeBug), string(model.TaskTypeFeature), string(model.TaskTypePlan), string(model.TaskTypeOther))
	c.Cmd.Flag("model", "Agent model alias used when the task is executed.").StringVar(&c.agentModel)

	return c
}

func (c TaskAddCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskAddCommand) Run(ctx context.Context) error {
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

	t, err := svc.Create(ctx, *user, task.CreateOptions{
		ProjectID:   c.projectID,
		Title:       c.title,
		Description: c.description,
		Type:        model.TaskType(c.taskType),
		AgentModel:  c.agentModel,
	})
	if err != nil {
		return fmt.Errorf("could not add task: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Added task %s (%s)", t.Title, t.ID)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
