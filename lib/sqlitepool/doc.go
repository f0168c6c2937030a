// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens herald's SQLite databases with one fixed set
// of pragmas on top of zombiezen.com/go/sqlite.
//
// Each connection gets WAL journaling, synchronous=NORMAL, a five
// second busy timeout, and in-memory temp storage before the caller's
// OnConnect hook runs (typically schema creation). Callers either
// borrow connections directly with [Pool.Take] and [Pool.Put], or use
// [Pool.Read] and [Pool.Write], which borrow a connection for the
// duration of a callback. Write wraps the callback in an IMMEDIATE
// transaction that commits when it returns nil and rolls back
// otherwise.
//
// Connections are not safe for concurrent use; the pool is.
package sqlitepool
