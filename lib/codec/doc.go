// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds herald's single CBOR configuration.
//
// Everything herald persists (the runtime snapshot, each module's
// opaque state blobs) is CBOR encoded with Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys and shortest-form integers, so the
// same logical state always produces the same bytes. The snapshot file
// store relies on that property to skip rewriting unchanged snapshots.
//
// Modules serialize their own state through [Marshal] and hand the
// resulting [RawMessage] to the runtime; they never import
// fxamacker/cbor directly.
//
// Struct tags: types that are only persisted use `cbor` tags. Types
// that also appear in Matrix JSON use `json` tags, which fxamacker/cbor
// reads as a fallback. Never put both on one field.
package codec
