package docker

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/sandbox"
)

// agentUIPort is the port where the agent container serves its web terminal.
const agentUIPort = 7681

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// ProviderConfig is the configuration for the Docker sandbox provider.
type ProviderConfig struct {
	Client DockerClient
	// AgentImage is the container image that carries the coding agent.
	AgentImage string
	Logger     log.Logger
}

func (c *ProviderConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.AgentImage == "" {
		return fmt.Errorf("agent image is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Docker"})
	return nil
}

// Provider is the Docker implementation of the sandbox.Provider interface.
// Every spawn is one disposable container running the agent image.
type Provider struct {
	client     DockerClient
	agentImage string
	logger     log.Logger
}

// NewProvider creates a new Docker sandbox provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Provider{
		client:     cfg.Client,
		agentImage: cfg.AgentImage,
		logger:     cfg.Logger,
	}, nil
}

// Spawn provisions a container for the task and starts the agent in it.
func (p *Provider) Spawn(ctx context.Context, spec sandbox.SpawnSpec) (*sandbox.Spawned, error) {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	handle := fmt.Sprintf("tf-%s", strings.ToLower(id))

	branch := spec.BranchName
	if branch == "" {
		branch = fmt.Sprintf("task/%s", strings.ToLower(id))
	}
	password := uuid.NewString()
	webhookSecret := uuid.NewString()

	// 1. Pull the agent image.
	p.logger.Infof("[1/3] Pulling image: %s", p.agentImage)
	pullResp, err := p.client.ImagePull(ctx, p.agentImage, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("could not pull image %s: %w", p.agentImage, model.ErrSandboxExecution)
	}
	// Consume the pull response to ensure it completes.
	_, _ = io.Copy(io.Discard, pullResp)
	pullResp.Close()

	// 2. Create the container. The agent entrypoint reads its whole run
	// specification from the environment.
	p.logger.Infof("[2/3] Creating container: %s", handle)
	env := []string{
		fmt.Sprintf("TASKFORGE_TASK_ID=%s", spec.TaskID),
		fmt.Sprintf("TASKFORGE_REPO_URL=%s", spec.RepoURL),
		fmt.Sprintf("TASKFORGE_REPO_TOKEN=%s", spec.RepoToken),
		fmt.Sprintf("TASKFORGE_BRANCH=%s", branch),
		fmt.Sprintf("TASKFORGE_AGENT_MODEL=%s", spec.AgentModel),
		fmt.Sprintf("TASKFORGE_PROMPT=%s", spec.Prompt),
		fmt.Sprintf("TASKFORGE_UI_PASSWORD=%s", password),
		fmt.Sprintf("TASKFORGE_WEBHOOK_SECRET=%s", webhookSecret),
	}
	if spec.AgentInstructions != "" {
		env = append(env, fmt.Sprintf("TASKFORGE_AGENT_INSTRUCTIONS=%s", spec.AgentInstructions))
	}
	if spec.SetupScript != "" {
		env = append(env, fmt.Sprintf("TASKFORGE_SETUP_SCRIPT=%s", spec.SetupScript))
	}

	containerConfig := &container.Config{
		Image: p.agentImage,
		Env:   env,
		Labels: map[string]string{
			"taskforge.task-id": spec.TaskID,
			"taskforge.branch":  branch,
			"taskforge.purpose": string(spec.Purpose),
			"taskforge.caller":  spec.CallerUserID,
		},
	}

	resp, err := p.client.ContainerCreate(ctx, containerConfig, &container.HostConfig{}, nil, nil, handle)
	if err != nil {
		return nil, fmt.Errorf("could not create container: %w", model.ErrSandboxExecution)
	}

	// 3. Start the container.
	p.logger.Infof("[3/3] Starting container: %s", resp.ID)
	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("could not start container: %w", model.ErrSandboxExecution)
	}

	url := ""
	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err == nil && inspect.NetworkSettings != nil {
		for _, netw := range inspect.NetworkSettings.Networks {
			if netw.IPAddress != "" {
				url = fmt.Sprintf("http://%s:%d", netw.IPAddress, agentUIPort)
				break
			}
		}
	}

	p.logger.Infof("Spawned Docker sandbox: %s (branch: %s)", handle, branch)

	return &sandbox.Spawned{
		Handle:        handle,
		URL:           url,
		Password:      password,
		WebhookSecret: webhookSecret,
		BranchName:    branch,
	}, nil
}

// Exec executes a command inside a running sandbox container.
func (p *Provider) Exec(ctx context.Context, handle string, command []string, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}

	// Build docker exec command.
	args := []string{"exec"}
	if opts.WorkingDir != "" {
		args = append(args, "-w", opts.WorkingDir)
	}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, handle)
	args = append(args, command...)

	p.logger.Debugf("Executing command in container %s: docker %v", handle, args)

	cmd := exec.CommandContext(ctx, "docker", args...)
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			p.logger.Debugf("Command exited with code %d", exitCode)
		} else {
			if strings.Contains(err.Error(), "No such container") {
				return nil, fmt.Errorf("container %s: %w", handle, model.ErrNotFound)
			}
			return nil, fmt.Errorf("could not execute command: %w", model.ErrSandboxExecution)
		}
	}

	return &sandbox.ExecResult{ExitCode: exitCode}, nil
}

// Destroy stops and removes the sandbox container.
func (p *Provider) Destroy(ctx context.Context, handle string) error {
	timeout := 10 // Seconds.
	err := p.client.ContainerStop(ctx, handle, container.StopOptions{Timeout: &timeout})
	if err != nil && !isNoSuchContainer(err) {
		return fmt.Errorf("could not stop container %s: %w", handle, model.ErrSandboxExecution)
	}

	err = p.client.ContainerRemove(ctx, handle, container.RemoveOptions{Force: true})
	if err != nil && !isNoSuchContainer(err) {
		return fmt.Errorf("could not remove container %s: %w", handle, model.ErrSandboxExecution)
	}

	p.logger.Infof("Destroyed Docker sandbox: %s", handle)
	return nil
}

func isNoSuchContainer(err error) bool {
	return strings.Contains(err.Error(), "No such container")
}
