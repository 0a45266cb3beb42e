package poll

import (
	"sync/atomic"
	"time"
)

type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateScanning   State = "scanning"
	StatePersisting State = "persisting"
)

// Status is the coordinator snapshot served by the HTTP API.
type Status struct {
	State        State  `json:"state"`
	Running      bool   `json:"running"`
	CycleID      string `json:"cycleId,omitempty"`
	LastRunAt    string `json:"lastRunAt,omitempty"`
	LastOkAt     string `json:"lastOkAt,omitempty"`
	LastError    string `json:"lastError,omitempty"`
	LastScanned  int    `json:"lastScanned"`
	LastNotified int    `json:"lastNotified"`
	LastRecorded int    `json:"lastRecorded"`
	SeenEntries  int    `json:"seenEntries"`
	Cycles       int    `json:"cycles"`
	// PendingPersist is set while an unsaved seen set is carried into the
	// next cycle.
	PendingPersist bool `json:"pendingPersist,omitempty"`
}

type statusBox struct {
	v atomic.Value
}

func (b *statusBox) load() Status {
	if st, ok := b.v.Load().(Status); ok {
		return st
	}
	return Status{State: StateIdle}
}

func (b *statusBox) update(fn func(*Status)) {
	st := b.load()
	fn(&st)
	b.v.Store(st)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
