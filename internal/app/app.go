package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/devdash/internal/config"
	"github.com/MrSnakeDoc/devdash/internal/httpserver"
	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/devdash/internal/index"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/redis"
	"github.com/MrSnakeDoc/devdash/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/devdash/internal/store/redis"
	"github.com/MrSnakeDoc/devdash/internal/utils"
	"github.com/MrSnakeDoc/devdash/internal/version"
)

// requestMargin is added to the longest tool budget for ordinary lifecycle routes.
const requestMargin = 10 * time.Second

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	stack       *Stack
	server      *httpserver.Server
	redisClient *goredis.Client
	memIndex    *index.MemoryIndex
	watcher     *scheduler.StatusWatcher
}

// New wires the server. Redis is optional: when it is configured but
// unreachable, run history is disabled and the server still starts.
func New(cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	stack, err := NewStack(cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	var (
		redisClient *goredis.Client
		runs        deps.RunStore
	)
	if cfg.RedisAddr != "" {
		redisClient, err = redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient.Named("redis"))
		if err != nil {
			loggerClient.Warn("run history disabled, redis unavailable", logger.Error(err))
		} else {
			runs = redisstore.NewRunStore(redisClient, cfg.RunHistory)
		}
	} else {
		loggerClient.Info("redis not configured, run history disabled")
	}

	memIndex := index.NewMemoryIndex()
	watcher := scheduler.NewStatusWatcher(
		stack.Aggregator,
		memIndex,
		stack.Metrics,
		loggerClient.Named("watcher"),
		cfg.WatchInterval,
	)

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimit:      cfg.RateLimit,
		RequestTimeout: cfg.GroupTimeout + requestMargin,
		StackUpTimeout: cfg.StackUpBudget() + requestMargin,
		SeedTimeout:    cfg.SeedTimeout + requestMargin,
		Commander:      stack.Commander,
		MemoryIndex:    memIndex,
		Runs:           runs,
		Metrics:        stack.Metrics,
	}
	if cfg.WatchInterval > 0 {
		d.Watcher = watcher
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		stack:       stack,
		server:      httpserver.New(cfg.ListenAddr, loggerClient, d),
		redisClient: redisClient,
		memIndex:    memIndex,
		watcher:     watcher,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting devdash %s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Infof("devdash %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.watcher.Start(ctx)
	a.logger.Info("status watcher started",
		logger.Duration("interval", a.cfg.WatchInterval),
		logger.Int("services", a.stack.Registry.Len()))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.watcher.Stop()
		a.stack.Close()
		return err
	}

	a.watcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
	a.stack.Close()

	a.logger.Info("✅ devdash stopped cleanly")
	return nil
}
