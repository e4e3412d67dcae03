package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrSnakeDoc/devdash/internal/domain"
)

const (
	ControllerCompose = "compose"
	ControllerEngine  = "engine"
)

type Config struct {
	ListenAddr      string        // ex: "127.0.0.1:7070"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Services
	ServicesFile string                     // optional yaml overrides for known services
	Services     []domain.ServiceDescriptor // defaults with overrides applied

	// Container tool
	Controller     string        // "compose" | "engine"
	ComposeBinary  string        // ex: "docker"
	ComposeFiles   []string      // ex: "docker-compose.yml, docker-compose.dev.yml"
	ComposeProject string        // compose project name (optional)
	ComposeDir     string        // working directory of compose commands (optional)
	CommandTimeout time.Duration // ps/start/stop budget (default: 30s)
	GroupTimeout   time.Duration // up/down budget (default: 5m)
	StopGrace      time.Duration // engine stop grace period (default: 10s)

	// Readiness
	ProbeTimeout      time.Duration // per-probe network budget (default: 2s)
	PollInterval      time.Duration // spacing between readiness attempts (default: 1s)
	ContainerAttempts int           // container-wait budget (default: 60)
	APIAttempts       int           // api-wait budget (default: 60)
	APIProbeTimeout   time.Duration // per-attempt api budget (default: 2s)

	// Seed job
	SeedCommand []string      // ex: "npm run seed" (optional, empty = seed disabled)
	SeedTimeout time.Duration // whole-run budget (default: 10m)

	// Watcher
	WatchInterval time.Duration // periodic status poll (default: 15s, 0 = disabled)

	// Redis (optional, empty address = run history disabled)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 10s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 1s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
	RunHistory          int           // start-all runs kept (default: 50)

	// Access restrictions
	AllowedCIDRS []string // mutating routes only, default loopback
	AllowedHosts []string // Host headers accepted on mutating routes (empty = any)
	TrustProxy   bool     // true => trust X-Forwarded-For headers
	CORSOrigins  []string // dashboard origins allowed to call the API
	RateLimit    int      // mutating requests per minute per client (0 = unlimited)
}

// Load reads the environment. A .env file (DEVDASH_ENV_FILE, default ".env")
// is loaded first when present; real environment variables win over it.
func Load() *Config {
	loadDotEnv(getenv("DEVDASH_ENV_FILE", ".env"))

	cfg := &Config{
		// Server settings
		ListenAddr:      getenv("DEVDASH_LISTEN_ADDR", "127.0.0.1:7070"),
		ShutdownTimeout: mustDuration("DEVDASH_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("DEVDASH_LOG_LEVEL", "info"),
		PrettyLog: mustBool("DEVDASH_PRETTY_LOG", true),

		// Services
		ServicesFile: getenv("DEVDASH_SERVICES_FILE", ""),

		// Container tool
		Controller:     mustChoice("DEVDASH_CONTROLLER", ControllerCompose, ControllerCompose, ControllerEngine),
		ComposeBinary:  getenv("DEVDASH_COMPOSE_BINARY", "docker"),
		ComposeFiles:   splitAndTrim(getenv("DEVDASH_COMPOSE_FILES", "")),
		ComposeProject: getenv("DEVDASH_COMPOSE_PROJECT", ""),
		ComposeDir:     getenv("DEVDASH_COMPOSE_DIR", ""),
		CommandTimeout: mustDuration("DEVDASH_COMMAND_TIMEOUT", 30*time.Second),
		GroupTimeout:   mustDuration("DEVDASH_GROUP_TIMEOUT", 5*time.Minute),
		StopGrace:      mustDuration("DEVDASH_STOP_GRACE", 10*time.Second),

		// Readiness
		ProbeTimeout:      mustDuration("DEVDASH_PROBE_TIMEOUT", 2*time.Second),
		PollInterval:      mustDuration("DEVDASH_POLL_INTERVAL", time.Second),
		ContainerAttempts: getenvInt("DEVDASH_CONTAINER_ATTEMPTS", 60),
		APIAttempts:       getenvInt("DEVDASH_API_ATTEMPTS", 60),
		APIProbeTimeout:   mustDuration("DEVDASH_API_PROBE_TIMEOUT", 2*time.Second),

		// Seed job
		SeedCommand: strings.Fields(getenv("DEVDASH_SEED_COMMAND", "")),
		SeedTimeout: mustDuration("DEVDASH_SEED_TIMEOUT", 10*time.Minute),

		// Watcher
		WatchInterval: mustDuration("DEVDASH_WATCH_INTERVAL", 15*time.Second),

		// Redis settings
		RedisAddr:           getenv("DEVDASH_REDIS_ADDR", ""),
		RedisUser:           getenv("DEVDASH_REDIS_USERNAME", ""),
		RedisPassword:       getenv("DEVDASH_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("DEVDASH_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 5),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 10*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
		RunHistory:          getenvInt("DEVDASH_RUN_HISTORY", 50),

		// Access restrictions
		AllowedCIDRS: splitAndTrim(getenv("DEVDASH_ALLOWED_CIDRS", "127.0.0.1/32, ::1/128")),
		AllowedHosts: splitAndTrim(getenv("DEVDASH_ALLOWED_HOSTS", "")),
		TrustProxy:   mustBool("DEVDASH_TRUST_PROXY", false),
		CORSOrigins:  splitAndTrim(getenv("DEVDASH_CORS_ORIGINS", "http://localhost:3000")),
		RateLimit:    getenvInt("DEVDASH_RATE_LIMIT", 30),
	}

	services, err := LoadServices(cfg.ServicesFile)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}
	cfg.Services = services

	if cfg.ContainerAttempts <= 0 || cfg.APIAttempts <= 0 {
		panic("❌ FATAL: DEVDASH_CONTAINER_ATTEMPTS and DEVDASH_API_ATTEMPTS must be positive")
	}
	if cfg.APIProbeTimeout <= 0 {
		panic("❌ FATAL: DEVDASH_API_PROBE_TIMEOUT must be positive")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfgCopy.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// StackUpBudget is the longest a start-all call can legitimately take.
func (c *Config) StackUpBudget() time.Duration {
	containers := time.Duration(c.ContainerAttempts) * (c.PollInterval + c.CommandTimeout)
	api := time.Duration(c.APIAttempts) * (c.PollInterval + c.APIProbeTimeout)
	return c.GroupTimeout + containers + api
}

func loadDotEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Sprintf("❌ FATAL: cannot read env file %s: %v", path, err))
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func mustChoice(key, def string, allowed ...string) string {
	v := strings.ToLower(getenv(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	panic(fmt.Sprintf("❌ FATAL: Invalid value for %s: %q (allowed: %s)", key, v, strings.Join(allowed, ", ")))
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
