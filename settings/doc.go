// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings is herald's typed key/value configuration store.
//
// Every module (and the runtime itself, under the "runtime" namespace)
// declares its keys up front, in three disjoint groups: keys that have
// a global value and per-guild values, keys that only exist globally,
// and keys that only exist per guild. A key carries a [Type] that
// parses and validates raw strings typed by users; nothing is stored
// unless it parses.
//
// Values are materialized lazily. Registering a key writes its default
// into every scope already known; reading an unset (guild, key) pair
// writes the default into that guild first. Only explicitly set
// values are exported for persistence, as their canonical string form,
// and re-parsed on import. Values belonging to keys that are not
// registered in this process are carried through untouched so a
// disabled module does not lose its configuration.
//
// A key may ask to be told about changes. The store calls the
// configured [Notifier] after the value is committed and before Set
// returns, outside the store's lock.
package settings
