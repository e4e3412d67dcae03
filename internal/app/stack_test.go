package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/config"
	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:        "127.0.0.1:0",
		Services:          domain.DefaultDescriptors(),
		Controller:        config.ControllerCompose,
		ComposeBinary:     "devdash-test-no-such-binary",
		CommandTimeout:    time.Second,
		GroupTimeout:      time.Second,
		ProbeTimeout:      100 * time.Millisecond,
		PollInterval:      time.Millisecond,
		ContainerAttempts: 1,
		APIAttempts:       1,
		APIProbeTimeout:   100 * time.Millisecond,
	}
}

func TestNewStack(t *testing.T) {
	s, err := NewStack(testConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("NewStack() error = %v", err)
	}
	defer s.Close()

	if s.Registry.Len() != len(domain.DefaultDescriptors()) {
		t.Errorf("Registry.Len() = %d", s.Registry.Len())
	}
	if s.Commander == nil || s.Aggregator == nil || s.Metrics == nil {
		t.Fatal("NewStack() left a component unset")
	}
}

func TestNewStackMissingToolIsToolUnavailable(t *testing.T) {
	s, err := NewStack(testConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("NewStack() error = %v", err)
	}
	defer s.Close()

	err = s.Commander.StopOne(context.Background(), "cache")
	if !errors.Is(err, domain.ErrToolUnavailable) {
		t.Errorf("StopOne() error = %v, want tool unavailable", err)
	}

	err = s.Commander.StopOne(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("StopOne(nonexistent) error = %v, want validation", err)
	}
}

func TestNewStackRejectsDuplicateServices(t *testing.T) {
	cfg := testConfig()
	cfg.Services = append(cfg.Services, cfg.Services[0])

	if _, err := NewStack(cfg, logger.NewNop()); err == nil {
		t.Fatal("NewStack() expected error for duplicate descriptors")
	}
}
