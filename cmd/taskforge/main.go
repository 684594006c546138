package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/taskforge/taskforge/cmd/taskforge/commands"
	"github.com/taskforge/taskforge/internal/log"
	loglogrus "github.com/taskforge/taskforge/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("taskforge", "AI coding task execution tool.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	runCmd := commands.NewRunCommand(rootCmd, app)
	completeCmd := commands.NewCompleteCommand(rootCmd, app)

	// Project subcommands share a parent command.
	projectCmd := app.Command("project", "Manage projects.")
	projectRegisterCmd := commands.NewProjectRegisterCommand(rootCmd, projectCmd)
	projectListCmd := commands.NewProjectListCommand(rootCmd, projectCmd)
	projectRmCmd := commands.NewProjectRmCommand(rootCmd, projectCmd)

	// Task subcommands share a parent command.
	taskCmd := app.Command("task", "Manage tasks.")
	taskAddCmd := commands.NewTaskAddCommand(rootCmd, taskCmd)
	taskListCmd := commands.NewTaskListCommand(rootCmd, taskCmd)
	taskShowCmd := commands.NewTaskShowCommand(rootCmd, taskCmd)
	taskCommentCmd := commands.NewTaskCommentCommand(rootCmd, taskCmd)
	taskSessionsCmd := commands.NewTaskSessionsCommand(rootCmd, taskCmd)
	taskRmCmd := commands.NewTaskRmCommand(rootCmd, taskCmd)

	// Sandbox subcommands share a parent command.
	sandboxCmd := app.Command("sandbox", "Manage sandboxes.")
	sandboxExecCmd := commands.NewSandboxExecCommand(rootCmd, sandboxCmd)
	sandboxRmCmd := commands.NewSandboxRmCommand(rootCmd, sandboxCmd)
	sandboxReapCmd := commands.NewSandboxReapCommand(rootCmd, sandboxCmd)

	// Manifest subcommands share a parent command.
	manifestCmd := app.Command("manifest", "Manage batch runs.")
	manifestCreateCmd := commands.NewManifestCreateCommand(rootCmd, manifestCmd)
	manifestStatusCmd := commands.NewManifestStatusCommand(rootCmd, manifestCmd)
	manifestCancelCmd := commands.NewManifestCancelCommand(rootCmd, manifestCmd)

	cmds := map[string]commands.Command{
		runCmd.Name():             runCmd,
		completeCmd.Name():        completeCmd,
		projectRegisterCmd.Name(): projectRegisterCmd,
		projectListCmd.Name():     projectListCmd,
		projectRmCmd.Name():       projectRmCmd,
		taskAddCmd.Name():         taskAddCmd,
		taskListCmd.Name():        taskListCmd,
		taskShowCmd.Name():        taskShowCmd,
		taskCommentCmd.Name():     taskCommentCmd,
		taskSessionsCmd.Name():    taskSessionsCmd,
		taskRmCmd.Name():          taskRmCmd,
		sandboxExecCmd.Name():     sandboxExecCmd,
		sandboxRmCmd.Name():       sandboxRmCmd,
		sandboxReapCmd.Name():     sandboxReapCmd,
		manifestCreateCmd.Name():  manifestCreateCmd,
		manifestStatusCmd.Name():  manifestStatusCmd,
		manifestCancelCmd.Name():  manifestCancelCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Auto-suppress logging for commands that produce structured output (table/JSON)
	// to prevent log noise from mixing with printer output in the terminal.
	// Users can still enable logging with --debug.
	printerCommands := map[string]bool{
		"project list":    true,
		"task list":       true,
		"task show":       true,
		"task sessions":   true,
		"manifest status": true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(ctx, *rootCmd)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(ctx context.Context, config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	// If logger not disabled use logrus logger.
	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
