package readiness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/devdash/internal/domain"
)

// fakeClock advances by the requested duration on every After call and
// fires immediately, so a whole gate run takes no wall-clock time.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps++
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// stuckClock never fires.
type stuckClock struct{}

func (stuckClock) Now() time.Time                         { return time.Time{} }
func (stuckClock) After(d time.Duration) <-chan time.Time { return make(chan time.Time) }

// scriptedPoller reports allRunning=false for the first `failures` polls.
type scriptedPoller struct {
	mu       sync.Mutex
	failures int
	polls    int
}

func (p *scriptedPoller) PollAll(ctx context.Context) domain.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	up := p.polls > p.failures
	return domain.NewSnapshot([]domain.ServiceStatus{
		{Name: domain.ServiceAPI, Running: true},
		{Name: domain.ServiceDatabase, Running: up},
	}, time.Time{})
}

func (p *scriptedPoller) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

type scriptedHealth struct {
	mu       sync.Mutex
	failures int
	probes   int
	onProbe  func(n int)
}

func (h *scriptedHealth) Probe(ctx context.Context, d domain.ServiceDescriptor) bool {
	h.mu.Lock()
	h.probes++
	n := h.probes
	h.mu.Unlock()
	if h.onProbe != nil {
		h.onProbe(n)
	}
	return n > h.failures
}

func apiDescriptor(t *testing.T) domain.ServiceDescriptor {
	t.Helper()
	d, ok := domain.DefaultRegistry().Get(domain.ServiceAPI)
	require.True(t, ok)
	return d
}

func testConfig() Config {
	return Config{Interval: time.Second, ContainerAttempts: 60, APIAttempts: 60, APIProbeTimeout: 2 * time.Second}
}

func TestGateReady(t *testing.T) {
	poller := &scriptedPoller{failures: 0}
	health := &scriptedHealth{failures: 0}
	clock := newFakeClock()

	var states []domain.GateState
	g := New(testConfig(), poller, health, apiDescriptor(t),
		WithClock(clock),
		OnTransition(func(s domain.GateState) { states = append(states, s) }))
	assert.Equal(t, domain.StateInitiated, g.State())

	out, err := g.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.GateState{
		domain.StateWaitingForContainers,
		domain.StateWaitingForAPI,
		domain.StateReady,
	}, states)
	assert.Equal(t, domain.StateReady, out.State)
	assert.True(t, out.ContainersReady)
	assert.True(t, out.APIReady)
	assert.False(t, out.TimedOut)
	assert.Equal(t, 1, out.ContainerAttempts)
	assert.Equal(t, 1, out.APIAttempts)
	assert.Zero(t, clock.sleeps)
}

func TestGateTransitionsOnlyAfterPollNPlusOne(t *testing.T) {
	for _, n := range []int{1, 5, 59} {
		poller := &scriptedPoller{failures: n}
		pollsAtTransition := -1

		g := New(testConfig(), poller, &scriptedHealth{}, apiDescriptor(t),
			WithClock(newFakeClock()),
			OnTransition(func(s domain.GateState) {
				if s == domain.StateWaitingForAPI {
					pollsAtTransition = poller.count()
				}
			}))

		out, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, n+1, pollsAtTransition, "failures=%d", n)
		assert.Equal(t, n+1, out.ContainerAttempts)
		assert.Equal(t, int64(n)*1000, out.ElapsedMs)
	}
}

func TestGateContainerTimeout(t *testing.T) {
	poller := &scriptedPoller{failures: 1 << 30}
	health := &scriptedHealth{}
	clock := newFakeClock()

	g := New(testConfig(), poller, health, apiDescriptor(t), WithClock(clock))
	out, err := g.Run(context.Background())

	require.ErrorIs(t, err, domain.ErrTimedOut)
	var timedOut *domain.TimedOutError
	require.ErrorAs(t, err, &timedOut)
	assert.Equal(t, domain.StateWaitingForContainers, timedOut.Stage)
	assert.Equal(t, 60, timedOut.Attempts)

	assert.Equal(t, 60, poller.count(), "exactly the attempt budget")
	assert.Equal(t, 59, clock.sleeps)
	assert.Zero(t, health.probes, "api stage must not start")
	assert.Equal(t, domain.StateTimedOut, out.State)
	assert.Equal(t, domain.StateWaitingForContainers, out.Stage)
	assert.True(t, out.TimedOut)
	assert.False(t, out.ContainersReady)
	assert.Equal(t, []domain.ServiceName{domain.ServiceDatabase}, out.Down)
	assert.Equal(t, int64(59_000), out.ElapsedMs)
}

func TestGateAPITimeoutIsSeparateStage(t *testing.T) {
	cfg := testConfig()
	cfg.APIAttempts = 10
	poller := &scriptedPoller{failures: 3}
	health := &scriptedHealth{failures: 1 << 30}

	g := New(cfg, poller, health, apiDescriptor(t), WithClock(newFakeClock()))
	out, err := g.Run(context.Background())

	var timedOut *domain.TimedOutError
	require.ErrorAs(t, err, &timedOut)
	assert.Equal(t, domain.StateWaitingForAPI, timedOut.Stage)
	assert.Equal(t, 10, timedOut.Attempts)
	assert.Equal(t, 10, health.probes)
	assert.Equal(t, 4, out.ContainerAttempts)
	assert.True(t, out.ContainersReady)
	assert.False(t, out.APIReady)
	assert.Equal(t, domain.StateWaitingForAPI, out.Stage)
}

func TestGateAPIProbeIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.APIProbeTimeout = 20 * time.Millisecond

	var deadline time.Duration
	health := &scriptedHealth{}
	g := New(cfg, &scriptedPoller{}, probeFunc(func(ctx context.Context) bool {
		dl, ok := ctx.Deadline()
		require.True(t, ok)
		deadline = time.Until(dl)
		return health.Probe(ctx, domain.ServiceDescriptor{})
	}), apiDescriptor(t), WithClock(newFakeClock()))

	_, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, deadline, 20*time.Millisecond)
}

type probeFunc func(ctx context.Context) bool

func (f probeFunc) Probe(ctx context.Context, d domain.ServiceDescriptor) bool { return f(ctx) }

func TestGateCancelledDuringAPIStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := &scriptedHealth{failures: 1 << 30, onProbe: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	g := New(testConfig(), &scriptedPoller{}, health, apiDescriptor(t), WithClock(newFakeClock()))

	out, err := g.Run(ctx)

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrTimedOut)
	assert.Equal(t, domain.StateCancelled, out.State)
	assert.Equal(t, domain.StateWaitingForAPI, out.Stage)
	assert.Equal(t, 3, health.probes)
	assert.Equal(t, 3, out.APIAttempts)
}

func TestGateCancelledDuringFinalAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.APIAttempts = 3
	health := &scriptedHealth{failures: 1 << 30, onProbe: func(n int) {
		if n == cfg.APIAttempts {
			cancel()
		}
	}}
	g := New(cfg, &scriptedPoller{}, health, apiDescriptor(t), WithClock(newFakeClock()))

	out, err := g.Run(ctx)

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.NotErrorIs(t, err, domain.ErrTimedOut)
	assert.Equal(t, domain.StateCancelled, out.State)
	assert.False(t, out.TimedOut)
	assert.Equal(t, cfg.APIAttempts, out.APIAttempts)
}

func TestGateCancelledDuringFinalContainerPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.ContainerAttempts = 2
	poller := &scriptedPoller{failures: 1 << 30}
	cancelling := pollerFunc(func(ctx context.Context) domain.Snapshot {
		snap := poller.PollAll(ctx)
		if poller.count() == cfg.ContainerAttempts {
			cancel()
		}
		return snap
	})
	g := New(cfg, cancelling, &scriptedHealth{}, apiDescriptor(t), WithClock(newFakeClock()))

	out, err := g.Run(ctx)

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, domain.StateCancelled, out.State)
	assert.Equal(t, domain.StateWaitingForContainers, out.Stage)
	assert.Equal(t, cfg.ContainerAttempts, out.ContainerAttempts)
}

type pollerFunc func(ctx context.Context) domain.Snapshot

func (f pollerFunc) PollAll(ctx context.Context) domain.Snapshot { return f(ctx) }

func TestGateCancelStopsWaitingPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	poller := &scriptedPoller{failures: 1 << 30}
	g := New(testConfig(), poller, &scriptedHealth{}, apiDescriptor(t), WithClock(stuckClock{}))

	done := make(chan error, 1)
	go func() {
		_, err := g.Run(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return poller.count() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, domain.ErrCancelled))
	case <-time.After(time.Second):
		t.Fatal("gate kept waiting after cancellation")
	}
	assert.Equal(t, 1, poller.count())
}

func TestGateFail(t *testing.T) {
	var states []domain.GateState
	g := New(testConfig(), &scriptedPoller{}, &scriptedHealth{}, apiDescriptor(t),
		WithClock(newFakeClock()),
		OnTransition(func(s domain.GateState) { states = append(states, s) }))

	out := g.Fail(&domain.ToolUnavailableError{Tool: "docker"})

	assert.Equal(t, []domain.GateState{domain.StateFailed}, states)
	assert.Equal(t, domain.StateFailed, out.State)
	assert.Empty(t, out.Stage)
	assert.False(t, out.ContainersReady)
	assert.False(t, out.TimedOut)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Less(t, cfg.APIProbeTimeout, time.Duration(cfg.APIAttempts)*cfg.Interval)
}
