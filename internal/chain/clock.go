package chain

import (
	"math"
	"sync"
	"time"
)

// SystemClock reads wall-clock time.
type SystemClock struct{}

// Now returns the current unix time in seconds.
func (SystemClock) Now() uint32 { return uint32(time.Now().Unix()) }

// ManualClock is a settable clock for tests and the simulator.
type ManualClock struct {
	mu  sync.Mutex
	now uint32
}

// NewManualClock returns a clock stopped at ts.
func NewManualClock(ts uint32) *ManualClock {
	return &ManualClock{now: ts}
}

func (m *ManualClock) Now() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to ts. Time never goes backwards: an earlier ts is
// ignored and false is returned.
func (m *ManualClock) Set(ts uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts < m.now {
		return false
	}
	m.now = ts
	return true
}

// Advance moves the clock forward by d seconds and returns the new time.
// A step past the end of the uint32 range would wrap the clock backwards,
// so it is refused and false is returned with the time unchanged.
func (m *ManualClock) Advance(d uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > math.MaxUint32-m.now {
		return m.now, false
	}
	m.now += d
	return m.now, true
}
