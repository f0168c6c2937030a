// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package history keeps the most recent messages of each conversation
// so handlers can look at context without asking the platform.
//
// Each conversation (a guild channel, or a DM channel, which maps one
// to one onto the DM peer) owns a fixed-capacity ring. When a ring is
// full the oldest entry is evicted. The number of conversations
// tracked at once is itself bounded by an LRU: the least recently
// active conversation is forgotten first.
package history

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bureau-foundation/herald/platform"
)

// Key identifies a conversation.
type Key struct {
	GuildID   string
	ChannelID string
}

// KeyFor returns the conversation key of a channel.
func KeyFor(channel platform.ChannelRef) Key {
	return Key{GuildID: channel.GuildID, ChannelID: channel.ChannelID}
}

// Entry is one remembered message.
type Entry struct {
	MessageID string
	Author    string
	Body      string
	Time      time.Time
}

// Config sizes a Cache.
type Config struct {
	// Limit is the per-conversation capacity. Default 50.
	Limit int

	// MaxConversations bounds how many conversations are tracked.
	// Default 4096.
	MaxConversations int
}

// Cache is safe for concurrent use. Only the router appends; handlers
// read from their own goroutines.
type Cache struct {
	mu            sync.Mutex
	limit         int
	conversations *lru.Cache[Key, *ring]
}

// New creates a Cache.
func New(config Config) (*Cache, error) {
	limit := config.Limit
	if limit <= 0 {
		limit = 50
	}
	maxConversations := config.MaxConversations
	if maxConversations <= 0 {
		maxConversations = 4096
	}
	conversations, err := lru.New[Key, *ring](maxConversations)
	if err != nil {
		return nil, err
	}
	return &Cache{limit: limit, conversations: conversations}, nil
}

// Append records a message in its conversation.
func (c *Cache) Append(message *platform.Message) {
	key := KeyFor(message.Ref.Channel)
	entry := Entry{
		MessageID: message.Ref.MessageID,
		Author:    message.Author,
		Body:      message.Body,
		Time:      message.Time,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	buffer, ok := c.conversations.Get(key)
	if !ok {
		buffer = newRing(c.limit)
		c.conversations.Add(key, buffer)
	}
	buffer.push(entry)
}

// Recent returns up to n entries of the conversation, oldest first.
// n <= 0 returns everything retained.
func (c *Cache) Recent(key Key, n int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	buffer, ok := c.conversations.Peek(key)
	if !ok {
		return nil
	}
	return buffer.last(n)
}

// Len returns the number of retained entries for a conversation.
func (c *Cache) Len(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	buffer, ok := c.conversations.Peek(key)
	if !ok {
		return 0
	}
	return buffer.size
}

// Conversations returns how many conversations are tracked.
func (c *Cache) Conversations() int {
	return c.conversations.Len()
}

// ring is a fixed-capacity circular buffer.
type ring struct {
	entries []Entry
	start   int
	size    int
}

func newRing(capacity int) *ring {
	return &ring{entries: make([]Entry, capacity)}
}

func (r *ring) push(entry Entry) {
	capacity := len(r.entries)
	if r.size < capacity {
		r.entries[(r.start+r.size)%capacity] = entry
		r.size++
		return
	}
	r.entries[r.start] = entry
	r.start = (r.start + 1) % capacity
}

func (r *ring) last(n int) []Entry {
	if n <= 0 || n > r.size {
		n = r.size
	}
	result := make([]Entry, 0, n)
	capacity := len(r.entries)
	for offset := r.size - n; offset < r.size; offset++ {
		result = append(result, r.entries[(r.start+offset)%capacity])
	}
	return result
}
