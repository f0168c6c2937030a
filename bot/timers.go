// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"sync/atomic"

	"github.com/bureau-foundation/herald/lib/clock"
	"github.com/bureau-foundation/herald/trigger"
)

// runTimer fires one timer trigger on its schedule until ctx is done.
// A tick that arrives while the previous run is still going is
// skipped; the schedule itself keeps its cadence.
func (r *Runtime) runTimer(ctx context.Context, entry trigger.TimerEntry) {
	logger := r.logger.With("module", entry.Module, "timer", entry.Timer.Name)
	module, ok := r.state.Module(entry.Module)
	if !ok {
		logger.Error("timer registered for an unloaded module")
		return
	}
	handler := module.(TimerHandler)

	next, err := entry.Schedule.Next(r.clock.Now())
	if err != nil {
		logger.Error("timer has no next run", "error", err)
		return
	}

	var running atomic.Bool
	for {
		if err := clock.SleepContext(ctx, r.clock, next.Sub(r.clock.Now())); err != nil || ctx.Err() != nil {
			return
		}

		if !running.CompareAndSwap(false, true) {
			logger.Debug("timer tick skipped, previous run still going", "scheduled", next)
		} else {
			name := entry.Timer.Name
			r.invoke(ctx, task{
				module: entry.Module,
				call:   r.newCall(entry.Module, Event{Kind: trigger.KindTimer, Timer: name}),
				action: func(ctx context.Context, f Facade) error {
					return handler.HandleTimer(ctx, f, name)
				},
				after: func() { running.Store(false) },
			})
		}

		now := r.clock.Now()
		for !next.After(now) {
			next, err = entry.Schedule.Next(next)
			if err != nil {
				logger.Error("timer has no next run", "error", err)
				return
			}
		}
	}
}
