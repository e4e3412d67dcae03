// Package cli is the devdash command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/devdash/internal/app"
	"github.com/MrSnakeDoc/devdash/internal/config"
	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/lifecycle"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/version"
)

// operations is what the stack commands need from the orchestrator.
type operations interface {
	Status(ctx context.Context) domain.Snapshot
	StartOne(ctx context.Context, name string) error
	StopOne(ctx context.Context, name string) error
	StopAll(ctx context.Context) (lifecycle.StopReport, error)
	DownAll(ctx context.Context) error
	StartAll(ctx context.Context) (domain.ReadinessOutcome, error)
	Seed(ctx context.Context) (lifecycle.SeedResult, error)
}

// openStack loads the environment and wires the orchestrator. Replaced in tests.
var openStack = func() (operations, func(), error) {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)

	s, err := app.NewStack(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return s.Commander, func() {
		s.Close()
		_ = log.Sync()
	}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "devdash",
		Short: "Start, stop and watch the local development stack",
		Long: `devdash drives the docker compose services of the local development
environment (api, database, cache, object store, admin UIs) and reports
whether each of them is running.

Configuration comes from DEVDASH_* environment variables, optionally from
a .env file and a services override file (DEVDASH_SERVICES_FILE).`,
		Version: version.Version,
		// Errors are reported by us, usage is noise for a failed docker call.
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "devdash version %s\n" .Version}}`)

	root.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newUpCmd(),
		newDownCmd(),
		newStartCmd(),
		newStopCmd(),
		newStopAllCmd(),
		newSeedCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
