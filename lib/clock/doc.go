// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is herald's injectable time source.
//
// Every component that waits on time (prompt session deadlines, timer
// triggers, sync backoff) takes a [Clock] instead of calling the time
// package. Production wiring passes [Real]; tests pass a [FakeClock]
// whose time moves only when the test calls Advance.
//
// A prompt test typically looks like:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	broker := prompt.NewBroker(prompt.Config{Clock: fake})
//	go func() { result <- broker.Confirm(ctx, "@alice:example.org", time.Minute) }()
//	fake.WaitForTimers(1)      // the session registered its deadline
//	fake.Advance(time.Minute)  // the deadline fires deterministically
//
// WaitForTimers closes the race between a goroutine registering its
// deadline and the test moving time forward.
package clock
