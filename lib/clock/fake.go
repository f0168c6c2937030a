// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at start.
func Fake(start time.Time) *FakeClock {
	fake := &FakeClock{now: start, pending: make(map[uint64]*alarm)}
	fake.changed = sync.NewCond(&fake.mu)
	return fake
}

// FakeClock is a Clock for tests. Time moves only through Advance.
// AfterFunc callbacks run synchronously inside Advance, in deadline
// order; a callback must not call Advance itself.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	changed *sync.Cond
	now     time.Time
	nextID  uint64
	pending map[uint64]*alarm
}

// alarm is one registered deadline. Exactly one of deliver and call is
// set. A non-zero every makes the alarm periodic.
type alarm struct {
	id      uint64
	when    time.Time
	every   time.Duration
	deliver chan time.Time
	call    func()
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a one-shot channel alarm.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	deliver := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		deliver <- c.now
		return deliver
	}
	c.addLocked(&alarm{when: c.now.Add(d), deliver: deliver})
	return deliver
}

// AfterFunc registers f to run when the clock passes now+d. With
// d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stop:  func() bool { return false },
			reset: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	entry := &alarm{when: c.now.Add(d), call: f}
	c.addLocked(entry)
	c.mu.Unlock()

	return &Timer{
		stop: func() bool { return c.remove(entry.id) },
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			_, wasPending := c.pending[entry.id]
			entry.when = c.now.Add(d)
			if !wasPending {
				c.addLocked(entry)
			}
			return wasPending
		},
	}
}

// NewTicker registers a periodic alarm.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: NewTicker called with non-positive interval")
	}
	deliver := make(chan time.Time, 1)
	c.mu.Lock()
	entry := &alarm{when: c.now.Add(d), every: d, deliver: deliver}
	c.addLocked(entry)
	c.mu.Unlock()

	return &Ticker{
		C:    deliver,
		stop: func() { c.remove(entry.id) },
		reset: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			entry.every = d
			entry.when = c.now.Add(d)
			if _, ok := c.pending[entry.id]; !ok {
				c.addLocked(entry)
			}
		},
	}
}

// Sleep blocks until the clock is advanced past now+d.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires every alarm whose
// deadline is reached, earliest first. Periodic alarms fire once per
// elapsed interval; ticks that find the channel full are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		entry, ok := c.popDue(target)
		if !ok {
			return
		}
		if entry.call != nil {
			entry.call()
			continue
		}
		select {
		case entry.deliver <- target:
		default:
		}
	}
}

// WaitForTimers blocks until at least n alarms are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of registered alarms.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *FakeClock) addLocked(entry *alarm) {
	c.nextID++
	entry.id = c.nextID
	c.pending[entry.id] = entry
	c.changed.Broadcast()
}

func (c *FakeClock) remove(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

// popDue removes and returns the earliest alarm due at or before
// target. Periodic alarms are rescheduled instead of removed. Ties are
// broken by registration order.
func (c *FakeClock) popDue(target time.Time) (*alarm, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []*alarm
	for _, entry := range c.pending {
		if !entry.when.After(target) {
			due = append(due, entry)
		}
	}
	if len(due) == 0 {
		return nil, false
	}
	earliest := slices.MinFunc(due, func(a, b *alarm) int {
		if cmp := a.when.Compare(b.when); cmp != 0 {
			return cmp
		}
		if a.id < b.id {
			return -1
		}
		return 1
	})

	if earliest.every > 0 {
		earliest.when = earliest.when.Add(earliest.every)
	} else {
		delete(c.pending, earliest.id)
	}
	return earliest, true
}
