// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package platform defines what herald's runtime knows about the chat
// platform: the inbound [Event] values it routes and the outbound
// [Client] it replies through.
//
// Identifiers are opaque strings. A conversation is either a guild
// channel (GuildID set) or a direct message (GuildID empty). The
// Matrix implementation lives in platform/matrix; tests use the fake
// in lib/testutil.
package platform
