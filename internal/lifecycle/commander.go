// Package lifecycle exposes the caller-facing operations on the local stack.
//
// Single-service operations validate the name against the registry before
// the container tool is touched. Bulk stop is best effort. Start-all hands
// over to a fresh readiness gate per call, so concurrent callers never share
// state.
package lifecycle

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/devdash/internal/container"
	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
	"github.com/MrSnakeDoc/devdash/internal/readiness"
)

// Deps groups everything the Commander needs.
type Deps struct {
	Registry   *domain.Registry
	Controller container.Controller
	Group      container.Group
	Poller     readiness.Poller
	Health     readiness.HealthChecker
	Gate       readiness.Config
	Clock      readiness.Clock
	Seed       SeedConfig
	Runner     container.Runner
	Logger     logger.Logger
	Metrics    *metrics.Collector
}

// Commander runs lifecycle operations. It is safe for concurrent use.
type Commander struct {
	deps Deps
	log  logger.Logger
}

// New creates a Commander.
func New(deps Deps) *Commander {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = readiness.RealClock()
	}
	if deps.Runner == nil {
		deps.Runner = container.ExecRunner{}
	}
	return &Commander{deps: deps, log: deps.Logger.Named("lifecycle")}
}

// Registry returns the service table the commander validates against.
func (c *Commander) Registry() *domain.Registry { return c.deps.Registry }

// Status polls every registered service once.
func (c *Commander) Status(ctx context.Context) domain.Snapshot {
	return c.deps.Poller.PollAll(ctx)
}

// StopOne stops a single controllable service.
func (c *Commander) StopOne(ctx context.Context, name string) error {
	d, err := c.deps.Registry.Controllable(name)
	if err != nil {
		c.deps.Metrics.ObserveOperation("stop", "rejected")
		return err
	}
	err = c.deps.Controller.Stop(ctx, d)
	c.observe("stop", err)
	if err != nil {
		c.log.Warn("stop failed", logger.String("service", d.Name.String()), logger.Error(err))
		return err
	}
	c.log.Info("service stopped", logger.String("service", d.Name.String()))
	return nil
}

// StartOne starts a single controllable service. No readiness wait.
func (c *Commander) StartOne(ctx context.Context, name string) error {
	d, err := c.deps.Registry.Controllable(name)
	if err != nil {
		c.deps.Metrics.ObserveOperation("start", "rejected")
		return err
	}
	err = c.deps.Controller.Start(ctx, d)
	c.observe("start", err)
	if err != nil {
		c.log.Warn("start failed", logger.String("service", d.Name.String()), logger.Error(err))
		return err
	}
	c.log.Info("service started", logger.String("service", d.Name.String()))
	return nil
}

// StopReport lists what a bulk stop did.
type StopReport struct {
	Attempted []domain.ServiceName          `json:"attempted"`
	Stopped   []domain.ServiceName          `json:"stopped"`
	Failed    map[domain.ServiceName]string `json:"failed,omitempty"`
}

// Complete reports whether every attempted service stopped.
func (r StopReport) Complete() bool { return len(r.Failed) == 0 }

// StopAll stops every controllable service in registry order and never
// aborts early. The error is nil when everything stopped, a
// *domain.ToolUnavailableError when the tool could not be used for any of
// them, and a *domain.PartialFailure otherwise.
func (c *Commander) StopAll(ctx context.Context) (StopReport, error) {
	report := StopReport{Failed: map[domain.ServiceName]string{}}
	errs := map[domain.ServiceName]error{}

	for _, d := range c.deps.Registry.ControllableServices() {
		report.Attempted = append(report.Attempted, d.Name)
		if err := c.StopOne(ctx, d.Name.String()); err != nil {
			errs[d.Name] = err
			report.Failed[d.Name] = err.Error()
			continue
		}
		report.Stopped = append(report.Stopped, d.Name)
	}

	if len(errs) == 0 {
		c.log.Info("all services stopped", logger.Int("count", len(report.Stopped)))
		return report, nil
	}

	if len(report.Stopped) == 0 {
		if tool := allToolUnavailable(errs); tool != nil {
			return report, tool
		}
	}

	pf := &domain.PartialFailure{Op: "stop-all", Attempted: report.Attempted, Errors: errs}
	c.log.Warn("stop-all partially failed",
		logger.Int("failed", len(errs)),
		logger.Int("attempted", len(report.Attempted)),
		logger.Strings("services", names(pf.Failed())))
	return report, pf
}

// DownAll tears the whole group down in one tool invocation.
func (c *Commander) DownAll(ctx context.Context) error {
	err := c.deps.Group.Down(ctx)
	c.observe("down", err)
	if err != nil {
		c.log.Warn("down failed", logger.Error(err))
		return err
	}
	c.log.Info("stack down")
	return nil
}

// StartAll brings the group up and blocks until the readiness gate
// resolves. The error wraps the category: ToolUnavailable or CommandFailed
// for FAILED, ErrTimedOut for TIMED_OUT, ErrCancelled for CANCELLED.
func (c *Commander) StartAll(ctx context.Context) (domain.ReadinessOutcome, error) {
	gate := c.newGate()

	if err := c.deps.Group.Up(ctx); err != nil {
		out := gate.Fail(err)
		c.observe("start-all", err)
		return out, err
	}

	out, err := gate.Run(ctx)
	c.observe("start-all", err)
	if err != nil {
		c.log.Warn("stack not ready",
			logger.String("state", string(out.State)),
			logger.String("stage", string(out.Stage)),
			logger.Int64("elapsed_ms", out.ElapsedMs),
			logger.Error(err))
		return out, err
	}
	c.log.Info("stack ready", logger.Int64("elapsed_ms", out.ElapsedMs))
	return out, nil
}

func (c *Commander) newGate() *readiness.Gate {
	api, ok := c.deps.Registry.Get(domain.ServiceAPI)
	var health readiness.HealthChecker = c.deps.Health
	if !ok {
		// Without an API service the second stage has nothing to wait for.
		health = alwaysHealthy{}
	}
	return readiness.New(c.deps.Gate, c.deps.Poller, health, api,
		readiness.WithClock(c.deps.Clock),
		readiness.WithLogger(c.log.Named("gate")),
		readiness.WithMetrics(c.deps.Metrics))
}

type alwaysHealthy struct{}

func (alwaysHealthy) Probe(context.Context, domain.ServiceDescriptor) bool { return true }

func (c *Commander) observe(op string, err error) {
	c.deps.Metrics.ObserveOperation(op, resultOf(err))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "rejected"
	case errors.Is(err, domain.ErrToolUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrTimedOut):
		return "timeout"
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, domain.ErrPartialFailure):
		return "partial"
	default:
		return "error"
	}
}

// allToolUnavailable returns the first tool error when every failure is one.
func allToolUnavailable(errs map[domain.ServiceName]error) error {
	var first error
	for _, n := range sortedKeys(errs) {
		err := errs[n]
		if !errors.Is(err, domain.ErrToolUnavailable) {
			return nil
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func sortedKeys(errs map[domain.ServiceName]error) []domain.ServiceName {
	pf := domain.PartialFailure{Errors: errs}
	return pf.Failed()
}

func names(in []domain.ServiceName) []string {
	out := make([]string, len(in))
	for i, n := range in {
		out[i] = n.String()
	}
	return out
}
