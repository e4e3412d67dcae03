package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
)

func descriptorFor(t *testing.T, name domain.ServiceName, kind domain.ProbeKind, addr string) domain.ServiceDescriptor {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return domain.ServiceDescriptor{Name: name, ProbeKind: kind, Host: host, Port: port}
}

// closedAddr returns a loopback address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestProbeTCPOpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	p := New(time.Second)
	d := descriptorFor(t, domain.ServiceDatabase, domain.ProbeTCP, ln.Addr().String())
	assert.True(t, p.Probe(context.Background(), d))
}

func TestProbeTCPRefused(t *testing.T) {
	p := New(time.Second)
	d := descriptorFor(t, domain.ServiceDatabase, domain.ProbeTCP, closedAddr(t))
	assert.False(t, p.Probe(context.Background(), d))
}

func TestProbeHTTPAnyStatusIsReachable(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "ok", status: http.StatusOK},
		{name: "not found", status: http.StatusNotFound},
		{name: "service unavailable", status: http.StatusServiceUnavailable},
		{name: "internal error", status: http.StatusInternalServerError},
		{name: "redirect", status: http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusFound {
					http.Redirect(w, r, "/elsewhere", tt.status)
					return
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body that must be drained"))
			}))
			defer ts.Close()

			d := descriptorFor(t, domain.ServiceAPI, domain.ProbeHTTP, ts.Listener.Addr().String())
			assert.True(t, New(time.Second).Probe(context.Background(), d))
		})
	}
}

func TestProbeHTTPUsesHealthPath(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	d := descriptorFor(t, domain.ServiceAPI, domain.ProbeHTTP, ts.Listener.Addr().String())
	d.HealthPath = "/health"
	require.True(t, New(time.Second).Probe(context.Background(), d))
	assert.Equal(t, "/health", gotPath)
}

func TestProbeHTTPRefused(t *testing.T) {
	d := descriptorFor(t, domain.ServiceAPI, domain.ProbeHTTP, closedAddr(t))
	assert.False(t, New(time.Second).Probe(context.Background(), d))
}

func TestProbeHTTPTimeoutIsBounded(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	timeout := 100 * time.Millisecond
	d := descriptorFor(t, domain.ServiceAPI, domain.ProbeHTTP, ts.Listener.Addr().String())

	start := time.Now()
	ok := New(timeout).Probe(context.Background(), d)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Less(t, elapsed, timeout+time.Second, "probe must resolve within its timeout plus epsilon")
}

func TestProbeDNSFailure(t *testing.T) {
	d := domain.ServiceDescriptor{
		Name:      domain.ServiceAPI,
		ProbeKind: domain.ProbeHTTP,
		Host:      "invalid-hostname-that-does-not-exist-12345678.invalid",
		Port:      80,
	}
	assert.False(t, New(500*time.Millisecond).Probe(context.Background(), d))
}

func TestProbeUnknownKind(t *testing.T) {
	d := domain.ServiceDescriptor{Name: domain.ServiceAPI, ProbeKind: "udp", Host: "127.0.0.1", Port: 1}
	assert.False(t, New(time.Second).Probe(context.Background(), d))
}

func TestProbeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := descriptorFor(t, domain.ServiceDatabase, domain.ProbeTCP, "127.0.0.1:1")
	assert.False(t, New(time.Second).Probe(ctx, d))
}

func TestProbeRecordsMetrics(t *testing.T) {
	m := metrics.New("probe_test")
	p := New(time.Second, WithMetrics(m))

	d := descriptorFor(t, domain.ServiceDatabase, domain.ProbeTCP, closedAddr(t))
	p.Probe(context.Background(), d)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() == "probe_test_probe_results_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, New(0).Timeout())
}
