package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Error categories. Match them with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrToolUnavailable = errors.New("container tool unavailable")
	ErrCommandFailed   = errors.New("container command failed")
	ErrPartialFailure  = errors.New("partial failure")
	ErrTimedOut        = errors.New("timed out")
	ErrCancelled       = errors.New("cancelled")
)

// ValidationError rejects a service name before any external call is made.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid service %q: %s", e.Name, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ToolUnavailableError means the container tool could not be asked at all:
// binary missing, daemon down, permission denied.
type ToolUnavailableError struct {
	Tool string
	Err  error
}

func (e *ToolUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s unavailable", e.Tool)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Tool, e.Err)
}

func (e *ToolUnavailableError) Unwrap() error { return e.Err }

func (e *ToolUnavailableError) Is(target error) bool { return target == ErrToolUnavailable }

// CommandError means the tool ran but the command itself failed.
type CommandError struct {
	Op      string
	Service string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Service != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Service)
	}
	sb.WriteString(" failed")
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		sb.WriteString(" (")
		sb.WriteString(out)
		sb.WriteString(")")
	}
	return sb.String()
}

func (e *CommandError) Unwrap() error { return e.Err }

func (e *CommandError) Is(target error) bool { return target == ErrCommandFailed }

// PartialFailure is returned by bulk operations that failed for some services.
type PartialFailure struct {
	Op        string
	Attempted []ServiceName
	Errors    map[ServiceName]error
}

// Failed returns the failed service names, sorted.
func (e *PartialFailure) Failed() []ServiceName {
	out := make([]ServiceName, 0, len(e.Errors))
	for n := range e.Errors {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (e *PartialFailure) Error() string {
	failed := e.Failed()
	names := make([]string, len(failed))
	for i, n := range failed {
		names[i] = string(n)
	}
	return fmt.Sprintf("%s: %d of %d services failed: %s",
		e.Op, len(failed), len(e.Attempted), strings.Join(names, ", "))
}

func (e *PartialFailure) Is(target error) bool { return target == ErrPartialFailure }

// TimedOutError means a readiness stage used its whole attempt budget.
type TimedOutError struct {
	Stage    GateState
	Attempts int
	Elapsed  time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("%s: no transition after %d attempts (%s)", e.Stage, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimedOutError) Is(target error) bool { return target == ErrTimedOut }
