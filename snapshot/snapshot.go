// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot persists herald's state across restarts.
//
// A [Snapshot] holds one runtime entry (the operator roster and every
// explicitly set setting) and one [ModuleState] per persistent module.
// Module state is opaque CBOR: the module chooses its own shape for the
// global part and for each guild's part. Everything is encoded with
// lib/codec, so equal state always produces equal bytes.
//
// [Manager] coordinates saves: it collects state from the runtime and
// every tracked module, serializes concurrent SaveAll calls, and keeps
// entries for modules that are not loaded in this process so they
// survive until the module comes back.
package snapshot

import (
	"context"
	"fmt"
	"maps"

	"github.com/bureau-foundation/herald/lib/codec"
	"github.com/bureau-foundation/herald/permission"
	"github.com/bureau-foundation/herald/settings"
)

// RuntimeKey names the runtime entry. No module may use it.
const RuntimeKey = "runtime"

// Snapshot is the complete persisted state.
type Snapshot struct {
	Runtime RuntimeState           `cbor:"runtime"`
	Modules map[string]ModuleState `cbor:"modules,omitempty"`
}

// RuntimeState is the runtime's own entry.
type RuntimeState struct {
	Roster   permission.Roster `cbor:"roster"`
	Settings settings.Values   `cbor:"settings"`
}

// ModuleState is one module's serialized state: a global part and a
// part per guild id. Either may be empty.
type ModuleState struct {
	Global codec.RawMessage            `cbor:"global,omitempty"`
	Guilds map[string]codec.RawMessage `cbor:"guilds,omitempty"`
}

// Empty reports whether the state carries nothing.
func (s ModuleState) Empty() bool {
	return len(s.Global) == 0 && len(s.Guilds) == 0
}

// Persistent is implemented by modules whose state is saved.
type Persistent interface {
	SaveState() (ModuleState, error)
	RestoreState(ModuleState) error
}

// Store reads and writes whole snapshots. Load returns an empty
// snapshot, not an error, when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// EncodeGuilds encodes one value per guild.
func EncodeGuilds[T any](values map[string]T) (map[string]codec.RawMessage, error) {
	if len(values) == 0 {
		return nil, nil
	}
	encoded := make(map[string]codec.RawMessage, len(values))
	for guild, value := range values {
		raw, err := codec.Encode(value)
		if err != nil {
			return nil, fmt.Errorf("encoding state for guild %s: %w", guild, err)
		}
		encoded[guild] = raw
	}
	return encoded, nil
}

// DecodeGuilds is the inverse of EncodeGuilds.
func DecodeGuilds[T any](encoded map[string]codec.RawMessage) (map[string]T, error) {
	values := make(map[string]T, len(encoded))
	for guild, raw := range encoded {
		var value T
		if err := codec.Decode(raw, &value); err != nil {
			return nil, fmt.Errorf("decoding state for guild %s: %w", guild, err)
		}
		values[guild] = value
	}
	return values, nil
}

func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return &Snapshot{}
	}
	clone := *s
	clone.Modules = maps.Clone(s.Modules)
	return &clone
}
