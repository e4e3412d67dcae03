package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/container"
	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/logger"
)

// DefaultSeedTimeout bounds one seed run.
const DefaultSeedTimeout = 10 * time.Minute

// maxSeedOutput is how much of the tail of the seed output is kept.
const maxSeedOutput = 4 << 10

var (
	ErrSeedNotConfigured = errors.New("seed command not configured")
	ErrDatabaseDown      = errors.New("database is not running")
)

// SeedConfig is the opaque batch job that fills the database.
type SeedConfig struct {
	Command []string      // argv, ex: ["npm", "run", "seed"]
	Timeout time.Duration // whole-run budget
}

// SeedResult is what a finished seed run reports.
type SeedResult struct {
	Command    string `json:"command"`
	DurationMs int64  `json:"duration_ms"`
	Output     string `json:"output"`
}

// Seed runs the seed command once. It refuses to start while the database
// reads as not running.
func (c *Commander) Seed(ctx context.Context) (SeedResult, error) {
	cfg := c.deps.Seed
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return SeedResult{}, ErrSeedNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSeedTimeout
	}

	if _, ok := c.deps.Registry.Get(domain.ServiceDatabase); ok {
		snap := c.deps.Poller.PollAll(ctx)
		if !snap.Services[domain.ServiceDatabase] {
			c.deps.Metrics.ObserveOperation("seed", "rejected")
			return SeedResult{}, ErrDatabaseDown
		}
	}

	res := SeedResult{Command: strings.Join(cfg.Command, " ")}
	c.log.Info("seed started", logger.String("command", res.Command))

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := c.deps.Clock.Now()
	out, err := c.deps.Runner.Run(runCtx, cfg.Command[0], cfg.Command[1:]...)
	res.DurationMs = c.deps.Clock.Now().Sub(start).Milliseconds()
	res.Output = tail(out, maxSeedOutput)

	if err != nil {
		err = container.Classify(runCtx, cfg.Command[0], "seed", "", out, err)
		c.observe("seed", err)
		c.log.Warn("seed failed", logger.Int64("duration_ms", res.DurationMs), logger.Error(err))
		return res, err
	}

	c.observe("seed", nil)
	c.log.Info("seed finished", logger.Int64("duration_ms", res.DurationMs))
	return res, nil
}

func tail(out []byte, max int) string {
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return strings.TrimSpace(string(out))
}
