package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/index"
	"github.com/MrSnakeDoc/devdash/internal/lifecycle"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
	redisstore "github.com/MrSnakeDoc/devdash/internal/store/redis"
)

// RunStore records start-all runs. Implemented by *redisstore.RunStore.
type RunStore interface {
	Record(ctx context.Context, run redisstore.Run) error
	Recent(ctx context.Context, n int) ([]redisstore.Run, error)
	Ping(ctx context.Context) error
}

// Refresher asks the background watcher for an early poll.
type Refresher interface {
	Trigger() bool
}

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time     // for testing, defaults to time.Now
	AllowedHosts   []string             // Host headers allowed on mutating routes
	AllowedCIDRS   []string             // IPs allowed on mutating routes
	TrustProxy     bool                 // true if running behind a trusted reverse proxy
	CORSOrigins    []string             // dashboard origins
	RateLimit      int                  // mutating requests per minute per client, 0 disables
	RequestTimeout time.Duration        // upper bound of an ordinary request
	StackUpTimeout time.Duration        // upper bound of a start-all request
	SeedTimeout    time.Duration        // upper bound of a seed request
	Commander      *lifecycle.Commander // lifecycle operations
	MemoryIndex    *index.MemoryIndex   // last snapshot from the watcher
	Watcher        Refresher            // nil when the watcher is disabled
	Runs           RunStore             // nil when redis is not configured
	Metrics        *metrics.Collector
}

// Now returns TimeNow() or time.Now() when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
