// Package readiness implements the start-all readiness protocol:
// wait for every container, then wait for the API health endpoint.
//
// Each Gate value is single use. Run owns its whole state machine and
// nothing outlives the call.
package readiness

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
)

const (
	DefaultInterval          = time.Second
	DefaultContainerAttempts = 60
	DefaultAPIAttempts       = 60
	DefaultAPIProbeTimeout   = 2 * time.Second
)

// Poller is the container-wait source. It is satisfied by *status.Aggregator.
type Poller interface {
	PollAll(ctx context.Context) domain.Snapshot
}

// HealthChecker answers one API health attempt. It is satisfied by *probe.Prober.
type HealthChecker interface {
	Probe(ctx context.Context, d domain.ServiceDescriptor) bool
}

// Config bounds both waiting stages.
type Config struct {
	Interval          time.Duration // spacing between attempts
	ContainerAttempts int           // budget of WAITING_FOR_CONTAINERS
	APIAttempts       int           // budget of WAITING_FOR_API
	APIProbeTimeout   time.Duration // per-attempt network budget of the API check
}

// DefaultConfig returns the stock budgets: 60 attempts a second apart per stage.
func DefaultConfig() Config {
	return Config{
		Interval:          DefaultInterval,
		ContainerAttempts: DefaultContainerAttempts,
		APIAttempts:       DefaultAPIAttempts,
		APIProbeTimeout:   DefaultAPIProbeTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.ContainerAttempts <= 0 {
		c.ContainerAttempts = d.ContainerAttempts
	}
	if c.APIAttempts <= 0 {
		c.APIAttempts = d.APIAttempts
	}
	if c.APIProbeTimeout <= 0 {
		c.APIProbeTimeout = d.APIProbeTimeout
	}
	return c
}

// Gate drives one start-all invocation after the bring-up command.
type Gate struct {
	cfg     Config
	poller  Poller
	health  HealthChecker
	api     domain.ServiceDescriptor
	clock   Clock
	logger  logger.Logger
	metrics *metrics.Collector

	state  domain.GateState
	start  time.Time
	onStep func(domain.GateState)
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(g *Gate) { g.clock = c } }

// WithLogger sets the logger used for transitions.
func WithLogger(l logger.Logger) Option { return func(g *Gate) { g.logger = l } }

// WithMetrics records the outcome on c.
func WithMetrics(c *metrics.Collector) Option { return func(g *Gate) { g.metrics = c } }

// OnTransition is called with every state entered, in order.
func OnTransition(fn func(domain.GateState)) Option { return func(g *Gate) { g.onStep = fn } }

// New creates a gate in the INITIATED state. api is the descriptor whose
// health endpoint decides the second stage.
func New(cfg Config, poller Poller, health HealthChecker, api domain.ServiceDescriptor, opts ...Option) *Gate {
	g := &Gate{
		cfg:    cfg.withDefaults(),
		poller: poller,
		health: health,
		api:    api,
		clock:  RealClock(),
		logger: logger.NewNop(),
		state:  domain.StateInitiated,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.start = g.clock.Now()
	return g
}

// State returns the current state.
func (g *Gate) State() domain.GateState { return g.state }

// Fail resolves the gate to FAILED: the bring-up command was not accepted.
func (g *Gate) Fail(err error) domain.ReadinessOutcome {
	g.logger.Warn("bring-up command failed", logger.Error(err))
	g.transition(domain.StateFailed)
	out := g.outcome("", 0, 0, nil)
	g.record(out)
	return out
}

// Run starts in WAITING_FOR_CONTAINERS and blocks until a terminal state.
// It returns a *domain.TimedOutError when a stage budget runs out and
// domain.ErrCancelled (wrapping the context error) when ctx ends first.
func (g *Gate) Run(ctx context.Context) (domain.ReadinessOutcome, error) {
	g.transition(domain.StateWaitingForContainers)

	var last domain.Snapshot
	cAttempts, done, err := g.wait(ctx, g.cfg.ContainerAttempts, func(ctx context.Context) bool {
		last = g.poller.PollAll(ctx)
		return last.AllRunning
	})
	if !done {
		return g.stop(err, cAttempts, 0, last.Down())
	}

	g.transition(domain.StateWaitingForAPI)
	aAttempts, done, err := g.wait(ctx, g.cfg.APIAttempts, func(ctx context.Context) bool {
		probeCtx, cancel := context.WithTimeout(ctx, g.cfg.APIProbeTimeout)
		defer cancel()
		return g.health.Probe(probeCtx, g.api)
	})
	if !done {
		return g.stop(err, cAttempts, aAttempts, nil)
	}

	g.transition(domain.StateReady)
	out := g.outcome(domain.StateWaitingForAPI, cAttempts, aAttempts, nil)
	out.ContainersReady, out.APIReady = true, true
	g.record(out)
	return out, nil
}

// wait runs check up to budget times, sleeping Interval between attempts.
// It reports how many attempts ran and whether check succeeded.
func (g *Gate) wait(ctx context.Context, budget int, check func(context.Context) bool) (int, bool, error) {
	for attempt := 1; attempt <= budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, false, err
		}
		if check(ctx) {
			return attempt, true, nil
		}
		if err := ctx.Err(); err != nil {
			return attempt, false, err
		}
		g.logger.Debug("readiness attempt negative",
			logger.String("state", string(g.state)),
			logger.Int("attempt", attempt),
			logger.Int("budget", budget))
		if attempt == budget {
			break
		}
		select {
		case <-ctx.Done():
			return attempt, false, ctx.Err()
		case <-g.clock.After(g.cfg.Interval):
		}
	}
	return budget, false, nil
}

// stop resolves a waiting stage that did not complete.
func (g *Gate) stop(ctxErr error, cAttempts, aAttempts int, down []domain.ServiceName) (domain.ReadinessOutcome, error) {
	stage := g.state
	if ctxErr != nil {
		g.transition(domain.StateCancelled)
		out := g.outcome(stage, cAttempts, aAttempts, down)
		out.ContainersReady = stage == domain.StateWaitingForAPI
		g.record(out)
		return out, &cancelledError{stage: stage, err: ctxErr}
	}

	g.transition(domain.StateTimedOut)
	out := g.outcome(stage, cAttempts, aAttempts, down)
	out.TimedOut = true
	out.ContainersReady = stage == domain.StateWaitingForAPI
	g.record(out)

	attempts := cAttempts
	if stage == domain.StateWaitingForAPI {
		attempts = aAttempts
	}
	return out, &domain.TimedOutError{Stage: stage, Attempts: attempts, Elapsed: out.Elapsed()}
}

func (g *Gate) transition(to domain.GateState) {
	from := g.state
	g.state = to
	g.logger.Info("readiness transition",
		logger.String("from", string(from)),
		logger.String("to", string(to)),
		logger.Duration("elapsed", g.clock.Now().Sub(g.start)))
	if g.onStep != nil {
		g.onStep(to)
	}
}

func (g *Gate) outcome(stage domain.GateState, cAttempts, aAttempts int, down []domain.ServiceName) domain.ReadinessOutcome {
	return domain.ReadinessOutcome{
		State:             g.state,
		ElapsedMs:         g.clock.Now().Sub(g.start).Milliseconds(),
		Stage:             stage,
		ContainerAttempts: cAttempts,
		APIAttempts:       aAttempts,
		Down:              down,
	}
}

func (g *Gate) record(out domain.ReadinessOutcome) {
	g.metrics.ObserveGate(string(out.State), string(out.Stage), out.Elapsed())
}

type cancelledError struct {
	stage domain.GateState
	err   error
}

func (e *cancelledError) Error() string {
	return "readiness cancelled during " + string(e.stage) + ": " + e.err.Error()
}

func (e *cancelledError) Unwrap() error { return e.err }

func (e *cancelledError) Is(target error) bool { return target == domain.ErrCancelled }
