// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot is herald's module runtime.
//
// A [Runtime] owns the shared [State] (permission gate, trigger
// registry, settings store, session broker, history cache, snapshot
// manager and the loaded modules) and runs three kinds of goroutine:
// the router, which consumes platform events one at a time; one loop
// per timer trigger; and one task per handler invocation.
//
// The router appends every message to history, offers it to pending
// prompt sessions, and only then classifies it. A message starting
// with the command prefix is split shell-style into a command and
// arguments. Runtime commands (help, quit, settings, op, deop, ops)
// are answered first; otherwise every module that registered the
// command runs. Unknown commands and ordinary messages are matched
// against pattern triggers, and messages that mention someone reach
// mention triggers. Reactions go to reaction triggers, honoring
// exclusive claims.
//
// Every handler call goes through the execution wrapper: a
// permission check, then a tracked goroutine with panic recovery.
// The handler's error is mapped to a reply by type ([*SyntaxError],
// [*ModuleError], [*permission.PermissionDenied],
// [*settings.ValidationError], anything else). Modules that opt into
// auto-persistence are saved after each of their tasks.
//
// Handlers see the runtime only through a [Facade] built for the
// call.
package bot
