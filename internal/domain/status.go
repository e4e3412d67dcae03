package domain

import "time"

// StatusSource tells which detection mechanism produced a status.
type StatusSource string

const (
	SourceContainer StatusSource = "container"
	SourceProbe     StatusSource = "probe"
)

// ServiceStatus is the result of one detection for one service.
type ServiceStatus struct {
	Name    ServiceName  `json:"name"`
	Running bool         `json:"running"`
	Source  StatusSource `json:"source"`
}

// Snapshot is the outcome of one aggregation pass.
type Snapshot struct {
	Services   map[ServiceName]bool `json:"services"`
	Details    []ServiceStatus      `json:"details"`
	AllRunning bool                 `json:"all_running"`
	CheckedAt  time.Time            `json:"checked_at"`
}

// NewSnapshot builds a snapshot. AllRunning is the AND over every status,
// so an empty slice yields true.
func NewSnapshot(statuses []ServiceStatus, at time.Time) Snapshot {
	s := Snapshot{
		Services:   make(map[ServiceName]bool, len(statuses)),
		Details:    statuses,
		AllRunning: true,
		CheckedAt:  at,
	}
	for _, st := range statuses {
		s.Services[st.Name] = st.Running
		if !st.Running {
			s.AllRunning = false
		}
	}
	return s
}

// Down returns the names that are not running, in detail order.
func (s Snapshot) Down() []ServiceName {
	var out []ServiceName
	for _, st := range s.Details {
		if !st.Running {
			out = append(out, st.Name)
		}
	}
	return out
}
