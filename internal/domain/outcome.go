package domain

import "time"

// GateState is a state of the start-all readiness protocol.
type GateState string

const (
	StateInitiated            GateState = "INITIATED"
	StateWaitingForContainers GateState = "WAITING_FOR_CONTAINERS"
	StateWaitingForAPI        GateState = "WAITING_FOR_API"
	StateReady                GateState = "READY"
	StateTimedOut             GateState = "TIMED_OUT"
	StateFailed               GateState = "FAILED"
	StateCancelled            GateState = "CANCELLED"
)

// Terminal reports whether no transition can leave s.
func (s GateState) Terminal() bool {
	switch s {
	case StateReady, StateTimedOut, StateFailed, StateCancelled:
		return true
	}
	return false
}

// ReadinessOutcome is produced once per start-all invocation.
type ReadinessOutcome struct {
	State           GateState `json:"state"`
	ContainersReady bool      `json:"containers_ready"`
	APIReady        bool      `json:"api_ready"`
	TimedOut        bool      `json:"timed_out"`
	ElapsedMs       int64     `json:"elapsed_ms"`

	// Stage is the waiting state the gate was in when it stopped.
	// Empty when the bring-up command failed.
	Stage             GateState     `json:"stage,omitempty"`
	ContainerAttempts int           `json:"container_attempts"`
	APIAttempts       int           `json:"api_attempts"`
	Down              []ServiceName `json:"down,omitempty"`
}

// Elapsed returns ElapsedMs as a duration.
func (o ReadinessOutcome) Elapsed() time.Duration {
	return time.Duration(o.ElapsedMs) * time.Millisecond
}
