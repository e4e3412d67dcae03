package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/domain"
)

// Transition is one observed change of a service between two snapshots.
type Transition struct {
	Service domain.ServiceName `json:"service"`
	Running bool               `json:"running"`
	At      time.Time          `json:"at"`
}

// MemoryIndex keeps the last status snapshot in memory.
// It is fed by the watcher and read by the HTTP layer.
type MemoryIndex struct {
	mu         sync.RWMutex
	snapshot   domain.Snapshot
	hasData    bool
	lastUpdate time.Time
	changes    []Transition // most recent last
	maxChanges int
}

// DefaultMaxChanges bounds the transition history.
const DefaultMaxChanges = 100

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{maxChanges: DefaultMaxChanges}
}

// Update stores snap and returns the services whose running flag changed
// since the previous snapshot. The first update reports no transitions.
func (idx *MemoryIndex) Update(snap domain.Snapshot) []Transition {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var changed []Transition
	if idx.hasData {
		for _, st := range snap.Details {
			prev, known := idx.snapshot.Services[st.Name]
			if known && prev == st.Running {
				continue
			}
			changed = append(changed, Transition{Service: st.Name, Running: st.Running, At: snap.CheckedAt})
		}
	}

	idx.snapshot = snap
	idx.hasData = true
	idx.lastUpdate = time.Now()

	idx.changes = append(idx.changes, changed...)
	if over := len(idx.changes) - idx.maxChanges; over > 0 {
		idx.changes = append([]Transition(nil), idx.changes[over:]...)
	}
	return changed
}

// Snapshot returns the last stored snapshot and false if none was stored yet
func (idx *MemoryIndex) Snapshot() (domain.Snapshot, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.snapshot, idx.hasData
}

// IsRunning returns the last known state of one service
func (idx *MemoryIndex) IsRunning(name domain.ServiceName) (running, known bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	running, known = idx.snapshot.Services[name]
	return running, known
}

// Transitions returns a copy of the recent transitions, oldest first
func (idx *MemoryIndex) Transitions() []Transition {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Transition, len(idx.changes))
	copy(out, idx.changes)
	return out
}

// GetLastUpdate returns the timestamp of the last update
func (idx *MemoryIndex) GetLastUpdate() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastUpdate
}
