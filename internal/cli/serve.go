package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/devdash/internal/app"
	"github.com/MrSnakeDoc/devdash/internal/config"
	"github.com/MrSnakeDoc/devdash/internal/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background status watcher",
		Long: `Starts the devdash HTTP server (DEVDASH_LISTEN_ADDR, loopback by default).
The dashboard UI calls it to read the stack status and to start or stop
services. The server runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.New(cfg.LogLevel, cfg.PrettyLog)
			defer func() { _ = log.Sync() }()

			application, err := app.New(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize devdash: %w", err)
			}
			return application.Run()
		},
	}
}
