package ledger

import (
	"sync"
	"time"
)

// Clock is the ledger time seen by a transaction.
type Clock struct {
	Slot          uint64
	UnixTimestamp int64
}

// ClockSource tells the ledger what time it is.
type ClockSource interface {
	Now() Clock
}

// ManualClock only moves when told to.
type ManualClock struct {
	sync.Mutex
	clock Clock
}

// NewManualClock starts at slot.
func NewManualClock(slot uint64) *ManualClock {
	return &ManualClock{clock: Clock{Slot: slot, UnixTimestamp: time.Now().Unix()}}
}

// Now implements ClockSource.
func (c *ManualClock) Now() Clock {
	c.Lock()
	defer c.Unlock()
	return c.clock
}

// Set jumps to slot.
func (c *ManualClock) Set(slot uint64) {
	c.Lock()
	defer c.Unlock()
	c.clock = Clock{Slot: slot, UnixTimestamp: time.Now().Unix()}
}

// Advance moves the clock n slots ahead and returns the new slot.
func (c *ManualClock) Advance(n uint64) uint64 {
	c.Lock()
	defer c.Unlock()
	c.clock.Slot += n
	c.clock.UnixTimestamp = time.Now().Unix()
	return c.clock.Slot
}
