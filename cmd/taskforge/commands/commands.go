package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/printer"
	"github.com/taskforge/taskforge/internal/sandbox"
	sandboxdocker "github.com/taskforge/taskforge/internal/sandbox/docker"
	"github.com/taskforge/taskforge/internal/sandbox/fake"
	"github.com/taskforge/taskforge/internal/storage"
	"github.com/taskforge/taskforge/internal/storage/memory"
	"github.com/taskforge/taskforge/internal/storage/sqlite"
	"github.com/taskforge/taskforge/internal/vault"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

const (
	// SandboxEngineDocker runs sandboxes as Docker containers.
	SandboxEngineDocker = "docker"
	// SandboxEngineFake simulates sandboxes without any remote compute.
	SandboxEngineFake = "fake"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug         bool
	NoLog         bool
	NoColor       bool
	LoggerType    string
	DBPath        string
	Ephemeral     bool
	SandboxEngine string
	EncryptionKey string
	UserID        string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDBPath := filepath.Join(homedir.HomeDir(), ".taskforge", "taskforge.db")
	app.Flag("db-path", "Path to the SQLite database file.").Envar("TASKFORGE_DB_PATH").Default(defaultDBPath).StringVar(&c.DBPath)
	app.Flag("ephemeral", "Use an in-memory store, data is lost on exit.").BoolVar(&c.Ephemeral)
	app.Flag("sandbox-engine", "Selects the sandbox engine.").Envar("TASKFORGE_SANDBOX_ENGINE").Default(SandboxEngineDocker).EnumVar(&c.SandboxEngine, SandboxEngineDocker, SandboxEngineFake)
	app.Flag("encryption-key", "Key material used to seal repository credentials and sandbox passwords.").Envar("TASKFORGE_ENCRYPTION_KEY").StringVar(&c.EncryptionKey)
	app.Flag("user", "Acting user id.").Envar("TASKFORGE_USER").StringVar(&c.UserID)

	return c
}

// currentUser resolves the acting user from the global configuration.
func (c *RootCommand) currentUser(ctx context.Context) (*model.User, error) {
	user, err := auth.NewStaticIdentity(c.UserID).CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("no acting user, set --user or TASKFORGE_USER: %w", err)
	}
	return user, nil
}

// repository is the storage used by the commands, closeable on top of the
// regular repository operations.
type repository interface {
	storage.Repository
	Close() error
}

// newRepository initializes the storage, SQLite by default, in-memory when
// running ephemeral.
func (c *RootCommand) newRepository(ctx context.Context) (repository, error) {
	if c.Ephemeral {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: c.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		return repo, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.DBPath,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

// newSandboxProvider creates a sandbox provider based on the selected engine.
func (c *RootCommand) newSandboxProvider(agentImage string) (sandbox.Provider, error) {
	if c.SandboxEngine == SandboxEngineFake {
		provider, err := fake.NewProvider(fake.ProviderConfig{Logger: c.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create sandbox provider: %w", err)
		}
		return provider, nil
	}

	provider, err := sandboxdocker.NewProvider(sandboxdocker.ProviderConfig{
		AgentImage: agentImage,
		Logger:     c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create sandbox provider: %w", err)
	}
	return provider, nil
}

// newGuard initializes the ownership guard on top of the storage.
func (c *RootCommand) newGuard(repo storage.Repository) (*auth.Guard, error) {
	guard, err := auth.NewGuard(auth.GuardConfig{
		Repository: repo,
		Logger:     c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create guard: %w", err)
	}
	return guard, nil
}

// newVault initializes the credential vault from the global key material.
func (c *RootCommand) newVault() (*vault.Vault, error) {
	v, err := vault.NewVault(vault.VaultConfig{
		Key:    c.EncryptionKey,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create vault, set --encryption-key or TASKFORGE_ENCRYPTION_KEY: %w", err)
	}
	return v, nil
}

// newPrinter selects the output printer for a format flag value.
func (c *RootCommand) newPrinter(format string) printer.Printer {
	switch format {
	case "json":
		return printer.NewJSONPrinter(c.Stdout)
	default: // table
		return printer.NewTablePrinter(c.Stdout)
	}
}
