// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/bureau-foundation/herald/permission"
	"github.com/bureau-foundation/herald/settings"
)

// task is one handler invocation.
type task struct {
	module string
	tier   permission.Tier
	call   *call
	action func(ctx context.Context, f Facade) error

	// save forces a snapshot after the task regardless of the
	// module's auto-save flag.
	save bool
	// after runs once the task is over, denied or not.
	after func()
}

// invoke checks permission, then runs the task on its own tracked
// goroutine. Nothing the task does propagates back to the caller.
func (r *Runtime) invoke(ctx context.Context, t task) {
	denied := r.state.Gate.Check(t.call.identity, t.tier, t.call.guild)
	r.tasks.Go(func() {
		if t.after != nil {
			defer t.after()
		}
		if denied != nil {
			r.report(ctx, t.call, denied)
			return
		}
		err := runAction(ctx, t.call, t.action)
		r.report(ctx, t.call, err)
		if t.save || r.state.autoSaves(t.module) {
			if err := r.state.Snapshots.SaveAll(context.WithoutCancel(ctx)); err != nil {
				t.call.logger.Error("saving after task failed", "error", err)
			}
		}
	})
}

func runAction(ctx context.Context, c *call, action func(context.Context, Facade) error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &panicError{value: recovered, stack: debug.Stack()}
		}
	}()
	return action(ctx, c)
}

// report maps a handler error to a log line and, when the event has a
// channel, a reply.
func (r *Runtime) report(ctx context.Context, c *call, err error) {
	if err == nil {
		return
	}
	var (
		reply  string
		denied *permission.PermissionDenied
	)
	if syntax, ok := AsSyntaxError(err); ok {
		c.logger.Debug("invocation syntax error", "error", err)
		reply = "Usage: " + r.prefix + syntax.Usage
	} else if errors.As(err, &denied) {
		if c.guild != "" && !r.runtimeBool(c.guild, SettingAnnounceDenials, true) {
			return
		}
		reply = fmt.Sprintf("You need %s rights for that.", denied.Required)
	} else if moduleErr, ok := AsModuleError(err); ok {
		c.logger.Info("module refused request", "error", err)
		reply = moduleErr.Message
	} else if validation, ok := settings.AsValidationError(err); ok {
		c.logger.Info("setting rejected", "error", err)
		reply = validation.Error()
	} else if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		c.logger.Debug("task cancelled by shutdown")
		return
	} else {
		c.logger.Error("handler failed", "error", err)
		if !r.runtimeBool(c.settingScope(), SettingErrorReplies, true) {
			return
		}
		reply = "Sorry, something went wrong."
	}

	if !c.hasChannel {
		return
	}
	if _, sendErr := r.client.Send(ctx, c.channel, reply); sendErr != nil {
		c.logger.Warn("sending error reply failed", "error", sendErr)
	}
}
