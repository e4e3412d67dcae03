package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
)

const (
	DefaultBinary         = "docker"
	DefaultCommandTimeout = 30 * time.Second
	DefaultGroupTimeout   = 5 * time.Minute
)

// ComposeOptions locates the compose project.
type ComposeOptions struct {
	Binary         string        // ex: "docker"
	Files          []string      // compose files, empty = tool default lookup
	Project        string        // project name, empty = directory name
	CommandTimeout time.Duration // ps/start/stop budget
	GroupTimeout   time.Duration // up/down budget
}

// Compose drives services through `docker compose`.
type Compose struct {
	opts    ComposeOptions
	runner  Runner
	logger  logger.Logger
	metrics *metrics.Collector
}

// NewCompose creates a compose adapter. A nil runner uses ExecRunner{}.
func NewCompose(opts ComposeOptions, runner Runner, log logger.Logger, m *metrics.Collector) *Compose {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.GroupTimeout <= 0 {
		opts.GroupTimeout = DefaultGroupTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Compose{opts: opts, runner: runner, logger: log, metrics: m}
}

// IsRunning lists running containers of the service; any match means running.
func (c *Compose) IsRunning(ctx context.Context, d domain.ServiceDescriptor) (bool, error) {
	if err := checkDescriptor(d); err != nil {
		return false, err
	}
	out, err := c.run(ctx, "ps", d.ComposeService, c.opts.CommandTimeout,
		"ps", "--status", "running", "--quiet", d.ComposeService)
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// Start starts exactly one service.
func (c *Compose) Start(ctx context.Context, d domain.ServiceDescriptor) error {
	if err := checkDescriptor(d); err != nil {
		return err
	}
	_, err := c.run(ctx, "start", d.ComposeService, c.opts.CommandTimeout, "start", d.ComposeService)
	return c.settle(err, d)
}

// Stop stops exactly one service.
func (c *Compose) Stop(ctx context.Context, d domain.ServiceDescriptor) error {
	if err := checkDescriptor(d); err != nil {
		return err
	}
	_, err := c.run(ctx, "stop", d.ComposeService, c.opts.CommandTimeout, "stop", d.ComposeService)
	return c.settle(err, d)
}

// Up brings the whole project up detached.
func (c *Compose) Up(ctx context.Context) error {
	_, err := c.run(ctx, "up", "", c.opts.GroupTimeout, "up", "-d")
	return err
}

// Down tears the whole project down.
func (c *Compose) Down(ctx context.Context) error {
	_, err := c.run(ctx, "down", "", c.opts.GroupTimeout, "down")
	return err
}

// settle turns "already in the requested state" replies into success.
func (c *Compose) settle(err error, d domain.ServiceDescriptor) error {
	var cmdErr *domain.CommandError
	if errors.As(err, &cmdErr) && alreadyInState(cmdErr.Output) {
		c.logger.Debug("service already in requested state",
			logger.String("service", string(d.Name)),
			logger.String("op", cmdErr.Op))
		return nil
	}
	return err
}

func (c *Compose) baseArgs() []string {
	args := []string{"compose"}
	for _, f := range c.opts.Files {
		args = append(args, "-f", f)
	}
	if c.opts.Project != "" {
		args = append(args, "-p", c.opts.Project)
	}
	return args
}

func (c *Compose) run(ctx context.Context, op, service string, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append(c.baseArgs(), args...)
	start := time.Now()
	out, err := c.runner.Run(ctx, c.opts.Binary, full...)
	if err != nil {
		err = Classify(ctx, c.opts.Binary, op, service, out, err)
	}

	c.metrics.ObserveControllerCall(op, callResult(err))
	fields := []logger.Field{
		logger.String("op", op),
		logger.String("service", service),
		logger.Duration("duration", time.Since(start)),
	}
	if err != nil {
		c.logger.Debug("compose command failed", append(fields, logger.Error(err))...)
		return out, err
	}
	c.logger.Debug("compose command succeeded", fields...)
	return out, nil
}

// daemonPatterns mark output where the tool itself is not usable.
var daemonPatterns = []string{
	"cannot connect to the docker daemon",
	"is the docker daemon running",
	"permission denied while trying to connect",
	"error during connect",
	"'compose' is not a docker command",
	"unknown command \"compose\"",
}

// settledPatterns mark replies where the service is already where we want it.
var settledPatterns = []string{
	"already running",
	"already started",
	"already stopped",
	"is not running",
}

// Classify turns a failed external command into ToolUnavailableError when the
// tool could not be used at all, and into CommandError otherwise.
func Classify(ctx context.Context, tool, op, service string, out []byte, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return &domain.ToolUnavailableError{Tool: tool, Err: err}
	}

	text := strings.ToLower(string(out))
	for _, p := range daemonPatterns {
		if strings.Contains(text, p) {
			return &domain.ToolUnavailableError{Tool: tool, Err: errors.New(firstLine(out))}
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return &domain.CommandError{
		Op:      op,
		Service: service,
		Output:  firstLine(out),
		Err:     err,
	}
}

func alreadyInState(output string) bool {
	text := strings.ToLower(output)
	for _, p := range settledPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
