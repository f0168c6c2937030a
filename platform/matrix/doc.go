// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package matrix adapts a Matrix session to herald's platform contract.
//
// The [Adapter] is both a [platform.Client] and a [platform.Source].
// Run performs an initial sync that only learns room state (so history
// from before startup is never dispatched), then long-polls /sync and
// translates timeline events:
//
//   - m.room.message becomes a message event; mentions come from the
//     m.mentions block.
//   - m.reaction becomes a reaction event with Added set. The reaction
//     is remembered by event id.
//   - m.room.redaction of a remembered reaction becomes a reaction
//     event with Added cleared.
//
// A room's guild is the space named by its m.space.parent state, or
// the room itself for rooms outside any space. A room with no parent
// and at most two joined members is a direct message and reports an
// empty guild. Invites are accepted automatically.
//
// Outbound sends and reactions share one token-bucket limiter.
package matrix
