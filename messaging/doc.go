// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is the subset of the Matrix client-server API herald
// talks to.
//
// [Client] holds the homeserver URL and HTTP transport and performs the
// unauthenticated calls (password login). [Session] adds an access
// token and covers what a chat bot needs: long-poll /sync, sending
// messages and reactions, reading room state and membership, joining
// rooms and creating direct-message rooms. [RunSyncLoop] drives /sync
// with exponential backoff until its context ends.
//
// Every non-2xx response with a Matrix error body comes back as a
// [*MatrixError] carrying the errcode and HTTP status; [IsMatrixError]
// tests for a code through wrapping. Request URLs are assembled by
// concatenating escaped path segments onto the base URL.
package messaging
