package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/index"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
)

// DefaultWatchInterval is the period between two background polls
const DefaultWatchInterval = 15 * time.Second

// Poller produces one status snapshot. It is satisfied by *status.Aggregator.
type Poller interface {
	PollAll(ctx context.Context) domain.Snapshot
}

// StatusWatcher polls the stack periodically and keeps the index current
type StatusWatcher struct {
	poller        Poller
	index         *index.MemoryIndex
	metrics       *metrics.Collector
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

// NewStatusWatcher creates a new status watcher
func NewStatusWatcher(
	poller Poller,
	idx *index.MemoryIndex,
	m *metrics.Collector,
	log logger.Logger,
	interval time.Duration,
) *StatusWatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &StatusWatcher{
		poller:        poller,
		index:         idx,
		metrics:       m,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
	}
}

// Start polls once, then keeps polling every interval until Stop or ctx ends.
// A non-positive interval only does the initial poll.
func (sw *StatusWatcher) Start(ctx context.Context) {
	sw.Watch(ctx)
	if sw.interval <= 0 {
		sw.logger.Info("status watcher disabled")
		return
	}

	ticker := time.NewTicker(sw.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sw.Watch(ctx)
			case <-sw.manualTrigger:
				sw.logger.Debug("manual status refresh")
				sw.Watch(ctx)
			case <-sw.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Trigger asks for a refresh without waiting. It returns false when a
// refresh is already pending.
func (sw *StatusWatcher) Trigger() bool {
	select {
	case sw.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop stops the watcher. Safe to call more than once.
func (sw *StatusWatcher) Stop() {
	sw.stopOnce.Do(func() { close(sw.stopCh) })
}

// Watch runs one poll, stores it and logs every up/down transition
func (sw *StatusWatcher) Watch(ctx context.Context) domain.Snapshot {
	snap := sw.poller.PollAll(ctx)

	for _, st := range snap.Details {
		sw.metrics.SetServiceUp(st.Name.String(), st.Running)
	}

	for _, tr := range sw.index.Update(snap) {
		if tr.Running {
			sw.logger.Info("service up", logger.String("service", tr.Service.String()))
		} else {
			sw.logger.Warn("service down", logger.String("service", tr.Service.String()))
		}
	}

	sw.logger.Debug("status polled",
		logger.Bool("all_running", snap.AllRunning),
		logger.Int("services", len(snap.Services)))
	return snap
}
