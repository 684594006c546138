package fake

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/sandbox"
)

// ProviderConfig is the configuration for the fake provider.
type ProviderConfig struct {
	Logger log.Logger
}

func (c *ProviderConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Fake"})
	return nil
}

// Provider is a fake implementation of the sandbox.Provider interface. It
// simulates sandbox lifecycle without any remote compute.
type Provider struct {
	spawned map[string]sandbox.SpawnSpec
	mu      sync.RWMutex
	logger  log.Logger
}

// NewProvider creates a new fake provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Provider{
		spawned: make(map[string]sandbox.SpawnSpec),
		logger:  cfg.Logger,
	}, nil
}

// Spawn simulates provisioning a sandbox.
func (p *Provider) Spawn(ctx context.Context, spec sandbox.SpawnSpec) (*sandbox.Spawned, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
	handle := fmt.Sprintf("tf-%s", id)

	branch := spec.BranchName
	if branch == "" {
		branch = fmt.Sprintf("task/%s", id)
	}

	p.spawned[handle] = spec
	p.logger.Infof("Spawned fake sandbox: %s (branch: %s)", handle, branch)

	return &sandbox.Spawned{
		Handle:        handle,
		URL:           fmt.Sprintf("http://fake.local/%s", handle),
		Password:      uuid.NewString(),
		WebhookSecret: uuid.NewString(),
		BranchName:    branch,
	}, nil
}

// Exec simulates executing a command, it always succeeds.
func (p *Provider) Exec(ctx context.Context, handle string, command []string, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.spawned[handle]; !ok {
		return nil, fmt.Errorf("sandbox %s: %w", handle, model.ErrNotFound)
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}

	return &sandbox.ExecResult{ExitCode: 0}, nil
}

// Destroy simulates destroying a sandbox, unknown handles are a no-op.
func (p *Provider) Destroy(ctx context.Context, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.spawned, handle)
	p.logger.Infof("Destroyed fake sandbox: %s", handle)
	return nil
}

// SpawnedSpecs returns the specs of the currently live fake sandboxes, used
// by tests to assert what reached the provider.
func (p *Provider) SpawnedSpecs() []sandbox.SpawnSpec {
	p.mu.RLock()
	defer p.mu.RUnlock()

	specs := make([]sandbox.SpawnSpec, 0, len(p.spawned))
	for _, spec := range p.spawned {
		specs = append(specs, spec)
	}
	return specs
}
