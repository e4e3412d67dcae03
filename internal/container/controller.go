// Package container is the port to the external container tool.
//
// Two adapters implement Controller: Compose shells out to the docker
// compose CLI, Engine talks to the Docker Engine API over its socket.
// Both return typed errors from the domain package and never panic when
// the tool is missing.
package container

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/devdash/internal/domain"
)

// Controller drives one named service.
type Controller interface {
	// IsRunning asks the tool directly. An error means "could not tell",
	// not "stopped".
	IsRunning(ctx context.Context, d domain.ServiceDescriptor) (bool, error)
	// Start is a success when the service was already running.
	Start(ctx context.Context, d domain.ServiceDescriptor) error
	// Stop is a success when the service was already stopped.
	Stop(ctx context.Context, d domain.ServiceDescriptor) error
}

// Group brings the whole managed stack up or down in one invocation.
type Group interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
}

// checkDescriptor re-validates the name right before it is used in a command.
func checkDescriptor(d domain.ServiceDescriptor) error {
	if !d.Name.Valid() {
		return &domain.ValidationError{Name: string(d.Name), Reason: "unknown service"}
	}
	if !domain.ValidComposeName(d.ComposeService) {
		return &domain.ValidationError{Name: string(d.Name), Reason: "invalid compose service name"}
	}
	return nil
}

// callResult maps an error to the metrics label of a controller call.
func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrToolUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
