package app

import (
	"fmt"
	"io"

	"github.com/MrSnakeDoc/devdash/internal/config"
	"github.com/MrSnakeDoc/devdash/internal/container"
	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/lifecycle"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
	"github.com/MrSnakeDoc/devdash/internal/probe"
	"github.com/MrSnakeDoc/devdash/internal/readiness"
	"github.com/MrSnakeDoc/devdash/internal/status"
	"github.com/MrSnakeDoc/devdash/internal/utils"
)

// Stack is the orchestration core shared by the server and the CLI.
type Stack struct {
	Registry   *domain.Registry
	Aggregator *status.Aggregator
	Commander  *lifecycle.Commander
	Metrics    *metrics.Collector

	logger  logger.Logger
	closers []io.Closer
}

// NewStack wires registry, container tool, probe, aggregator and commander from cfg.
func NewStack(cfg *config.Config, log logger.Logger) (*Stack, error) {
	registry, err := domain.NewRegistry(cfg.Services...)
	if err != nil {
		return nil, fmt.Errorf("invalid service registry: %w", err)
	}

	s := &Stack{Registry: registry, Metrics: metrics.New("devdash"), logger: log}

	runner := container.ExecRunner{Dir: cfg.ComposeDir}
	compose := container.NewCompose(container.ComposeOptions{
		Binary:         cfg.ComposeBinary,
		Files:          cfg.ComposeFiles,
		Project:        cfg.ComposeProject,
		CommandTimeout: cfg.CommandTimeout,
		GroupTimeout:   cfg.GroupTimeout,
	}, runner, log.Named("compose"), s.Metrics)

	var controller container.Controller = compose
	if cfg.Controller == config.ControllerEngine {
		cli, err := container.NewDockerClient()
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, cli)
		controller = container.NewEngine(cli, container.EngineOptions{
			Project:        cfg.ComposeProject,
			CommandTimeout: cfg.CommandTimeout,
			StopGrace:      cfg.StopGrace,
		}, log.Named("engine"), s.Metrics)
	}
	log.Info("container controller selected",
		logger.String("controller", cfg.Controller),
		logger.String("binary", cfg.ComposeBinary))

	prober := probe.New(cfg.ProbeTimeout, probe.WithMetrics(s.Metrics), probe.WithLogger(log.Named("probe")))
	s.Aggregator = status.New(registry, controller, prober, log.Named("status"))

	s.Commander = lifecycle.New(lifecycle.Deps{
		Registry:   registry,
		Controller: controller,
		Group:      compose,
		Poller:     s.Aggregator,
		Health:     prober,
		Gate: readiness.Config{
			Interval:          cfg.PollInterval,
			ContainerAttempts: cfg.ContainerAttempts,
			APIAttempts:       cfg.APIAttempts,
			APIProbeTimeout:   cfg.APIProbeTimeout,
		},
		Seed:    lifecycle.SeedConfig{Command: cfg.SeedCommand, Timeout: cfg.SeedTimeout},
		Runner:  runner,
		Logger:  log,
		Metrics: s.Metrics,
	})

	return s, nil
}

// Close releases the container tool clients.
func (s *Stack) Close() {
	for _, c := range s.closers {
		utils.CloseLogged(c, "docker client", s.logger)
	}
}
