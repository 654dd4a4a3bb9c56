package pitch_compliance

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Latest holds the most recent value published by a producer. A Latest that has never been
// stored to reads as unset, which is distinct from a stored zero value.
type Latest[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
}

// Store replaces the current value.
func (l *Latest[T]) Store(v T) {
	l.mu.Lock()
	l.value = v
	l.set = true
	l.mu.Unlock()
}

// Load returns the current value and whether one has been stored.
func (l *Latest[T]) Load() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.set
}

// VoltageReading is one DAQ acquisition.
type VoltageReading struct {
	Samples []float64 `json:"samples"`
	At      time.Time `json:"at"`
}

// Value returns the most recent sample of the acquisition.
func (r VoltageReading) Value() float64 {
	if len(r.Samples) == 0 {
		return math.NaN()
	}
	return r.Samples[len(r.Samples)-1]
}

// JointPositions is a snapshot of all joint positions, indexed by DeviceID-1.
type JointPositions [NumJoints]float64

// JointTable is the shared joint position table. Each slot is a single atomic word, so a
// reader never observes a partially written position. Slots are independent: a Snapshot
// may combine values from different telemetry rounds.
type JointTable struct {
	slots [NumJoints]atomic.Uint64
	seen  [NumJoints]atomic.Bool
}

// Set stores a position for the joint at index.
func (t *JointTable) Set(index int, position float64) {
	t.slots[index].Store(math.Float64bits(position))
	t.seen[index].Store(true)
}

// Get returns the position at index and whether telemetry has arrived for it.
func (t *JointTable) Get(index int) (float64, bool) {
	return math.Float64frombits(t.slots[index].Load()), t.seen[index].Load()
}

// Snapshot copies every slot. Joints with no telemetry yet read as zero.
func (t *JointTable) Snapshot() JointPositions {
	var out JointPositions
	for i := range t.slots {
		out[i] = math.Float64frombits(t.slots[i].Load())
	}
	return out
}

// Complete reports whether every joint has reported at least once.
func (t *JointTable) Complete() bool {
	for i := range t.seen {
		if !t.seen[i].Load() {
			return false
		}
	}
	return true
}
