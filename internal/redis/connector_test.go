package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/devdash/internal/logger"
)

func validOptions() ConnectOptions {
	return ConnectOptions{
		Addr:           "localhost:6379",
		ConnectTimeout: time.Second,
		RetryInterval:  5 * time.Millisecond,
		MaxWait:        20 * time.Millisecond,
		PingTimeout:    50 * time.Millisecond,
		WarnThreshold:  1,
	}
}

func TestValidate(t *testing.T) {
	if err := validOptions().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := validOptions()
	bad.Addr = ""
	bad.MaxWait = 0
	bad.WarnThreshold = -1
	err := bad.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"Addr", "MaxWait", "WarnThreshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}

func TestNextWait(t *testing.T) {
	tests := []struct {
		wait, max, want time.Duration
	}{
		{time.Second, 10 * time.Second, 2 * time.Second},
		{4 * time.Second, 5 * time.Second, 5 * time.Second},
		{10 * time.Second, 10 * time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := nextWait(tt.wait, tt.max); got != tt.want {
			t.Errorf("nextWait(%v, %v) = %v, want %v", tt.wait, tt.max, got, tt.want)
		}
	}
}

type scriptedPinger struct {
	failures int
	calls    int
}

func (p *scriptedPinger) Ping(ctx context.Context) *redis.StatusCmd {
	p.calls++
	cmd := redis.NewStatusCmd(ctx)
	if p.calls <= p.failures {
		cmd.SetErr(errors.New("connection refused"))
	}
	return cmd
}

func TestConnectWithRetryRecovers(t *testing.T) {
	p := &scriptedPinger{failures: 2}
	if err := connectWithRetry(context.Background(), p, validOptions(), logger.NewNop()); err != nil {
		t.Fatalf("connectWithRetry() error = %v", err)
	}
	if p.calls != 3 {
		t.Errorf("ping calls = %d, want 3", p.calls)
	}
}

func TestConnectWithRetryGivesUp(t *testing.T) {
	opts := validOptions()
	opts.ConnectTimeout = 30 * time.Millisecond

	p := &scriptedPinger{failures: 1 << 20}
	err := connectWithRetry(context.Background(), p, opts, logger.NewNop())
	if err == nil {
		t.Fatal("connectWithRetry() expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("connectWithRetry() error = %v, want wrapped ping error", err)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(context.Background(), ConnectOptions{}, nil); err == nil {
		t.Fatal("New() expected error for empty options")
	}
}
