// Package probe answers "is this service reachable right now?" with one
// bounded network check. It never retries and never returns an error:
// every failure mode collapses to false.
package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
)

// DefaultTimeout is the per-probe budget.
const DefaultTimeout = 2 * time.Second

// maxDrain bounds how much of a response body is read before closing.
const maxDrain = 64 << 10

// Prober checks reachability of registry entries.
type Prober struct {
	timeout time.Duration
	client  *http.Client
	dialer  *net.Dialer
	logger  logger.Logger
	metrics *metrics.Collector
}

// Option configures a Prober.
type Option func(*Prober)

// WithMetrics records every probe on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Prober) { p.metrics = c }
}

// WithLogger logs probe failures at debug level.
func WithLogger(l logger.Logger) Option {
	return func(p *Prober) { p.logger = l }
}

// New builds a Prober with the given per-probe timeout (DefaultTimeout if <= 0).
func New(timeout time.Duration, opts ...Option) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 0,
	}

	p := &Prober{
		timeout: timeout,
		dialer:  dialer,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:           dialer.DialContext,
				ResponseHeaderTimeout: timeout,
				DisableKeepAlives:     true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// A redirect is already a completed response
				return http.ErrUseLastResponse
			},
		},
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Timeout returns the per-probe budget.
func (p *Prober) Timeout() time.Duration { return p.timeout }

// Probe reports whether the service described by d is reachable.
func (p *Prober) Probe(ctx context.Context, d domain.ServiceDescriptor) bool {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var ok bool
	switch d.ProbeKind {
	case domain.ProbeHTTP:
		ok = p.probeHTTP(ctx, d)
	case domain.ProbeTCP:
		ok = p.probeTCP(ctx, d)
	default:
		p.logger.Warn("unknown probe kind",
			logger.String("service", string(d.Name)),
			logger.String("kind", string(d.ProbeKind)))
	}

	p.metrics.ObserveProbe(string(d.Name), string(d.ProbeKind), ok, time.Since(start))
	return ok
}

// probeHTTP treats any completed response as reachable, whatever its status.
func (p *Prober) probeHTTP(ctx context.Context, d domain.ServiceDescriptor) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL(), http.NoBody)
	if err != nil {
		p.logger.Debug("probe request build failed",
			logger.String("service", string(d.Name)),
			logger.Error(err))
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("http probe failed",
			logger.String("service", string(d.Name)),
			logger.String("url", d.URL()),
			logger.Error(err))
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	p.logger.Debug("http probe completed",
		logger.String("service", string(d.Name)),
		logger.Int("status", resp.StatusCode))
	return true
}

func (p *Prober) probeTCP(ctx context.Context, d domain.ServiceDescriptor) bool {
	conn, err := p.dialer.DialContext(ctx, "tcp", d.Addr())
	if err != nil {
		p.logger.Debug("tcp probe failed",
			logger.String("service", string(d.Name)),
			logger.String("addr", d.Addr()),
			logger.Error(err))
		return false
	}
	_ = conn.Close()
	return true
}
