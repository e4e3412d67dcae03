package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
)

const (
	labelProject = "com.docker.compose.project"
	labelService = "com.docker.compose.service"

	engineTool = "docker engine"
)

// engineAPI is the subset of the Docker client used here.
type engineAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
}

// EngineOptions configures the Engine adapter.
type EngineOptions struct {
	Project        string        // compose project label to match, empty = any project
	CommandTimeout time.Duration // per-call budget
	StopGrace      time.Duration // grace period before the engine kills a stopping container
}

// Engine drives compose-managed containers through the Docker Engine API.
// Containers are located by their compose labels, so it works on a stack
// that was brought up with the compose CLI.
type Engine struct {
	api     engineAPI
	opts    EngineOptions
	logger  logger.Logger
	metrics *metrics.Collector
}

// NewEngine wraps a Docker client.
func NewEngine(cli *client.Client, opts EngineOptions, log logger.Logger, m *metrics.Collector) *Engine {
	return newEngine(cli, opts, log, m)
}

func newEngine(api engineAPI, opts EngineOptions, log logger.Logger, m *metrics.Collector) *Engine {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{api: api, opts: opts, logger: log, metrics: m}
}

// IsRunning reports whether at least one container of the service runs.
func (e *Engine) IsRunning(ctx context.Context, d domain.ServiceDescriptor) (bool, error) {
	if err := checkDescriptor(d); err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.CommandTimeout)
	defer cancel()

	list, err := e.list(ctx, d.ComposeService, false)
	e.metrics.ObserveControllerCall("ps", callResult(err))
	if err != nil {
		return false, err
	}
	return len(list) > 0, nil
}

// Start starts every stopped container of the service.
func (e *Engine) Start(ctx context.Context, d domain.ServiceDescriptor) error {
	if err := checkDescriptor(d); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.CommandTimeout)
	defer cancel()

	err := e.start(ctx, d)
	e.metrics.ObserveControllerCall("start", callResult(err))
	return err
}

func (e *Engine) start(ctx context.Context, d domain.ServiceDescriptor) error {
	list, err := e.list(ctx, d.ComposeService, true)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return &domain.CommandError{
			Op:      "start",
			Service: d.ComposeService,
			Err:     errors.New("no container exists for service, run the stack up first"),
		}
	}
	for _, c := range list {
		if c.State == "running" {
			continue
		}
		if err := e.api.ContainerStart(ctx, c.ID, container.StartOptions{}); err != nil {
			return e.classify("start", d.ComposeService, err)
		}
		e.logger.Debug("container started",
			logger.String("service", string(d.Name)),
			logger.String("container", shortID(c.ID)))
	}
	return nil
}

// Stop stops every running container of the service.
func (e *Engine) Stop(ctx context.Context, d domain.ServiceDescriptor) error {
	if err := checkDescriptor(d); err != nil {
		return err
	}
	// The engine waits StopGrace before killing, so the budget must cover it.
	ctx, cancel := context.WithTimeout(ctx, e.opts.CommandTimeout+e.opts.StopGrace)
	defer cancel()

	err := e.stop(ctx, d)
	e.metrics.ObserveControllerCall("stop", callResult(err))
	return err
}

func (e *Engine) stop(ctx context.Context, d domain.ServiceDescriptor) error {
	list, err := e.list(ctx, d.ComposeService, false)
	if err != nil {
		return err
	}
	grace := int(e.opts.StopGrace / time.Second)
	for _, c := range list {
		err := e.api.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &grace})
		if err != nil && !errdefs.IsNotModified(err) {
			return e.classify("stop", d.ComposeService, err)
		}
		e.logger.Debug("container stopped",
			logger.String("service", string(d.Name)),
			logger.String("container", shortID(c.ID)))
	}
	return nil
}

func (e *Engine) list(ctx context.Context, service string, all bool) ([]types.Container, error) {
	args := filters.NewArgs(filters.Arg("label", labelService+"="+service))
	if e.opts.Project != "" {
		args.Add("label", labelProject+"="+e.opts.Project)
	}
	list, err := e.api.ContainerList(ctx, container.ListOptions{All: all, Filters: args})
	if err != nil {
		return nil, e.classify("ps", service, err)
	}
	return list, nil
}

func (e *Engine) classify(op, service string, err error) error {
	if client.IsErrConnectionFailed(err) || errdefs.IsUnavailable(err) {
		return &domain.ToolUnavailableError{Tool: engineTool, Err: err}
	}
	return &domain.CommandError{Op: op, Service: service, Err: err}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// NewDockerClient creates a Docker client. If DOCKER_HOST is not set, it
// probes common socket paths so Docker Desktop and colima work without
// extra configuration.
func NewDockerClient() (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}

	if os.Getenv("DOCKER_HOST") == "" {
		if sock := findSocket(); sock != "" {
			opts = append(opts, client.WithHost("unix://"+sock))
		}
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, &domain.ToolUnavailableError{Tool: engineTool, Err: fmt.Errorf("create client: %w", err)}
	}
	return cli, nil
}

// findSocket returns the first existing Docker socket path, or "".
func findSocket() string {
	candidates := []string{"/var/run/docker.sock"}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".docker", "run", "docker.sock"),
			filepath.Join(home, ".colima", "default", "docker.sock"),
		)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
