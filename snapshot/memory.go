// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"sync"

	"github.com/bureau-foundation/herald/lib/codec"
)

// MemoryStore keeps the encoded snapshot in memory. State still goes
// through the codec, so a round trip behaves like the durable stores.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := &Snapshot{}
	if s.data == nil {
		return snapshot, nil
	}
	if err := codec.Unmarshal(s.data, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *MemoryStore) Save(_ context.Context, snapshot *Snapshot) error {
	data, err := codec.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
