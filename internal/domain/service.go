package domain

import (
	"fmt"
	"net"
	"strconv"
)

// ProbeKind selects how reachability is checked for a service.
type ProbeKind string

const (
	ProbeHTTP ProbeKind = "http"
	ProbeTCP  ProbeKind = "tcp"
)

// Valid reports whether k is a supported probe strategy.
func (k ProbeKind) Valid() bool {
	return k == ProbeHTTP || k == ProbeTCP
}

// ServiceName is the logical identifier of a managed service.
//
// The set is closed: only the constants below exist. Any name coming from
// outside (HTTP path, CLI argument, yaml file) must go through
// ParseServiceName before it reaches a container command.
type ServiceName string

const (
	ServiceAPI          ServiceName = "api"
	ServiceDatabase     ServiceName = "database"
	ServiceCache        ServiceName = "cache"
	ServiceObjectStore  ServiceName = "object-store"
	ServiceDBAdminUI    ServiceName = "db-admin-ui"
	ServiceSchemaStudio ServiceName = "schema-studio"
)

var knownServices = [...]ServiceName{
	ServiceAPI,
	ServiceDatabase,
	ServiceCache,
	ServiceObjectStore,
	ServiceDBAdminUI,
	ServiceSchemaStudio,
}

// KnownServices returns every name of the closed service set, in display order.
func KnownServices() []ServiceName {
	out := make([]ServiceName, len(knownServices))
	copy(out, knownServices[:])
	return out
}

// Valid reports whether n belongs to the closed service set.
func (n ServiceName) Valid() bool {
	for _, k := range knownServices {
		if n == k {
			return true
		}
	}
	return false
}

func (n ServiceName) String() string { return string(n) }

// ParseServiceName maps raw input onto the closed set.
func ParseServiceName(raw string) (ServiceName, error) {
	n := ServiceName(raw)
	if !n.Valid() {
		return "", &ValidationError{Name: raw, Reason: "unknown service"}
	}
	return n, nil
}

// ServiceDescriptor is the static description of one managed service.
// Descriptors are built once at startup and never mutated afterwards.
type ServiceDescriptor struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// Name is the logical identifier used by callers.
	Name ServiceName `json:"name"`

	// ComposeService is the service name inside the compose project.
	// Example: database -> postgres
	// Empty for host processes; those are only ever probed.
	ComposeService string `json:"compose_service"`

	// ─────────────────────────────
	// Reachability
	// ─────────────────────────────

	ProbeKind ProbeKind `json:"probe"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`

	// HealthPath is only used by HTTP probes. Empty means "/".
	HealthPath string `json:"health_path,omitempty"`

	// ─────────────────────────────
	// Control
	// ─────────────────────────────

	// Controllable allows individual start/stop through the commander.
	Controllable bool `json:"controllable"`
}

// Addr returns host:port.
func (d ServiceDescriptor) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Path returns the HTTP health path, defaulting to "/".
func (d ServiceDescriptor) Path() string {
	if d.HealthPath == "" {
		return "/"
	}
	if d.HealthPath[0] != '/' {
		return "/" + d.HealthPath
	}
	return d.HealthPath
}

// URL returns the HTTP URL probed for this service.
func (d ServiceDescriptor) URL() string {
	return "http://" + d.Addr() + d.Path()
}

// Validate checks the invariants of a single descriptor.
func (d ServiceDescriptor) Validate() error {
	if !d.Name.Valid() {
		return &ValidationError{Name: string(d.Name), Reason: "unknown service"}
	}
	if !d.ProbeKind.Valid() {
		return fmt.Errorf("service %s: unsupported probe kind %q", d.Name, d.ProbeKind)
	}
	if d.Host == "" {
		return fmt.Errorf("service %s: empty host", d.Name)
	}
	if d.Port <= 0 || d.Port > 65535 {
		return fmt.Errorf("service %s: port %d out of range", d.Name, d.Port)
	}
	if d.Controllable && !composeNamePattern.MatchString(d.ComposeService) {
		return fmt.Errorf("service %s: invalid compose service name %q", d.Name, d.ComposeService)
	}
	return nil
}

// DefaultDescriptors is the stock local stack of the platform.
func DefaultDescriptors() []ServiceDescriptor {
	return []ServiceDescriptor{
		{
			Name:           ServiceAPI,
			ComposeService: "api",
			ProbeKind:      ProbeHTTP,
			Host:           "localhost",
			Port:           3000,
			HealthPath:     "/health",
			Controllable:   true,
		},
		{
			Name:           ServiceDatabase,
			ComposeService: "postgres",
			ProbeKind:      ProbeTCP,
			Host:           "localhost",
			Port:           5432,
			Controllable:   true,
		},
		{
			Name:           ServiceCache,
			ComposeService: "redis",
			ProbeKind:      ProbeTCP,
			Host:           "localhost",
			Port:           6379,
			Controllable:   true,
		},
		{
			Name:           ServiceObjectStore,
			ComposeService: "minio",
			ProbeKind:      ProbeHTTP,
			Host:           "localhost",
			Port:           9000,
			HealthPath:     "/minio/health/live",
			Controllable:   true,
		},
		{
			Name:           ServiceDBAdminUI,
			ComposeService: "adminer",
			ProbeKind:      ProbeHTTP,
			Host:           "localhost",
			Port:           8080,
			Controllable:   true,
		},
		{
			// Prisma Studio runs as a host process; no compose service backs it.
			Name:           ServiceSchemaStudio,
			ComposeService: "",
			ProbeKind:      ProbeHTTP,
			Host:           "localhost",
			Port:           5555,
			Controllable:   false,
		},
	}
}
