// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by herald's tests.
//
// [RequireReceive], [RequireSend], [RequireClosed] and
// [RequireNoReceive] wrap a channel operation in a wall-clock safety
// valve. They are the only place tests touch real time; everything
// else runs on lib/clock's fake.
//
// [Platform] is an in-memory platform.Client that records what the
// bot sends and reacts, for asserting on handler output.
//
// [UniqueID] produces distinct identifiers without reading the clock.
package testutil
