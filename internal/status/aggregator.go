// Package status reconciles the container tool and the network probe into
// one running flag per registered service.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/logger"
)

// RunningChecker asks the container tool. It is satisfied by container.Controller.
type RunningChecker interface {
	IsRunning(ctx context.Context, d domain.ServiceDescriptor) (bool, error)
}

// Prober is the network fallback. It is satisfied by *probe.Prober.
type Prober interface {
	Probe(ctx context.Context, d domain.ServiceDescriptor) bool
}

// Aggregator polls every registered service. It holds no state between
// polls and is safe for concurrent use.
type Aggregator struct {
	registry *domain.Registry
	checker  RunningChecker
	prober   Prober
	logger   logger.Logger
	now      func() time.Time
}

// New creates an Aggregator. A nil checker means probe-only detection.
func New(reg *domain.Registry, checker RunningChecker, prober Prober, log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Aggregator{
		registry: reg,
		checker:  checker,
		prober:   prober,
		logger:   log,
		now:      time.Now,
	}
}

// PollAll checks every service concurrently. The result always holds one
// entry per registered service, in registry order.
func (a *Aggregator) PollAll(ctx context.Context) domain.Snapshot {
	descs := a.registry.All()
	statuses := make([]domain.ServiceStatus, len(descs))

	var wg sync.WaitGroup
	for i, d := range descs {
		wg.Add(1)
		go func(i int, d domain.ServiceDescriptor) {
			defer wg.Done()
			statuses[i] = a.check(ctx, d)
		}(i, d)
	}
	wg.Wait()

	return domain.NewSnapshot(statuses, a.now())
}

// check trusts the container tool when it answers and falls back to the
// probe only for this service when it does not.
func (a *Aggregator) check(ctx context.Context, d domain.ServiceDescriptor) domain.ServiceStatus {
	if a.checker != nil && d.ComposeService != "" {
		running, err := a.checker.IsRunning(ctx, d)
		if err == nil {
			return domain.ServiceStatus{Name: d.Name, Running: running, Source: domain.SourceContainer}
		}
		a.logger.Debug("container check failed, probing",
			logger.String("service", d.Name.String()),
			logger.Error(err))
	}

	return domain.ServiceStatus{
		Name:    d.Name,
		Running: a.prober.Probe(ctx, d),
		Source:  domain.SourceProbe,
	}
}
