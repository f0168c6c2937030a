// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompt lets a handler wait for a follow-up event from a
// specific user while the router keeps processing everything else.
//
// A wait registers a session in the [Broker]: a predicate over inbound
// events, a deadline, and a one-slot result. The router offers every
// message and reaction to [Broker.Offer] before normal dispatch; the
// oldest pending session whose predicate accepts the event consumes
// it, and the event is not dispatched further. A session resolves
// exactly once, either with the matching event or with the empty
// result when its deadline passes or the waiting context is cancelled,
// and is removed from the table as it resolves.
//
// Typed replies are prefixed with the command prefix twice ("!!yes"
// with prefix "!"), which keeps them from reading as commands in
// ordinary conversation.
package prompt

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/herald/lib/clock"
	"github.com/bureau-foundation/herald/platform"
)

// DefaultTimeout applies when a wait passes a non-positive timeout and
// Config.DefaultTimeout is unset.
const DefaultTimeout = 60 * time.Second

// DefaultApprovalEmoji selects a message in SelectMessage.
const DefaultApprovalEmoji = "✅"

// Config configures a Broker.
type Config struct {
	// Prefix is the command prefix. Typed replies start with it twice.
	Prefix string

	DefaultTimeout time.Duration
	ApprovalEmoji  string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Broker is the session table. Safe for concurrent use.
type Broker struct {
	replyPrefix    string
	defaultTimeout time.Duration
	approvalEmoji  string
	clock          clock.Clock
	logger         *slog.Logger

	mu sync.Mutex
	// sessions is ordered oldest first.
	sessions []*session
}

// Matcher inspects an offered event. It returns the session's result
// and true to consume the event.
type Matcher func(event platform.Event) (any, bool)

type outcome struct {
	value any
	ok    bool
}

type session struct {
	id       string
	identity string
	match    Matcher
	result   chan outcome
	timer    *clock.Timer
}

// New returns an empty Broker.
func New(config Config) *Broker {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultTimeout
	}
	if config.ApprovalEmoji == "" {
		config.ApprovalEmoji = DefaultApprovalEmoji
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Broker{
		replyPrefix:    config.Prefix + config.Prefix,
		defaultTimeout: config.DefaultTimeout,
		approvalEmoji:  config.ApprovalEmoji,
		clock:          config.Clock,
		logger:         config.Logger,
	}
}

// ReplyPrefix is the marker typed replies must start with.
func (b *Broker) ReplyPrefix() string { return b.replyPrefix }

// ApprovalEmoji is the reaction SelectMessage waits for.
func (b *Broker) ApprovalEmoji() string { return b.approvalEmoji }

// Pending returns the number of unresolved sessions.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Offer hands event to the oldest pending session that accepts it.
// It reports whether the event was consumed.
func (b *Broker) Offer(event platform.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for index, pending := range b.sessions {
		value, ok := pending.match(event)
		if !ok {
			continue
		}
		b.removeLocked(index)
		pending.timer.Stop()
		pending.result <- outcome{value: value, ok: true}
		b.logger.Debug("session resolved", "session_id", pending.id, "identity", pending.identity)
		return true
	}
	return false
}

// Await registers a session for identity and blocks until match
// accepts an offered event, the timeout passes, or ctx is done. A
// non-positive timeout uses the broker default.
func (b *Broker) Await(ctx context.Context, identity string, timeout time.Duration, match Matcher) (any, bool) {
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}
	pending := &session{
		id:       uuid.NewString(),
		identity: identity,
		match:    match,
		result:   make(chan outcome, 1),
	}

	b.mu.Lock()
	b.sessions = append(b.sessions, pending)
	pending.timer = b.clock.AfterFunc(timeout, func() { b.resolveEmpty(pending, "timeout") })
	b.mu.Unlock()
	b.logger.Debug("session opened", "session_id", pending.id, "identity", identity, "timeout", timeout)

	select {
	case result := <-pending.result:
		return result.value, result.ok
	case <-ctx.Done():
		b.resolveEmpty(pending, "cancelled")
		result := <-pending.result
		return result.value, result.ok
	}
}

// resolveEmpty ends pending with no result if it is still in the
// table. If it already resolved, the earlier result stands.
func (b *Broker) resolveEmpty(pending *session, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for index, candidate := range b.sessions {
		if candidate != pending {
			continue
		}
		b.removeLocked(index)
		pending.timer.Stop()
		pending.result <- outcome{}
		b.logger.Debug("session ended without result",
			"session_id", pending.id,
			"identity", pending.identity,
			"reason", reason,
		)
		return
	}
}

func (b *Broker) removeLocked(index int) {
	b.sessions = append(b.sessions[:index], b.sessions[index+1:]...)
}

// replyBody returns the text after the reply prefix if event is a
// message from identity carrying one.
func (b *Broker) replyBody(event platform.Event, identity string) (string, bool) {
	if event.Kind != platform.KindMessage || event.Message == nil || event.Message.Author != identity {
		return "", false
	}
	tail, ok := strings.CutPrefix(event.Message.Body, b.replyPrefix)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(tail), true
}

func addedReaction(event platform.Event, identity string) (*platform.Reaction, bool) {
	if event.Kind != platform.KindReaction || event.Reaction == nil {
		return nil, false
	}
	reaction := event.Reaction
	if !reaction.Added || reaction.User != identity {
		return nil, false
	}
	return reaction, true
}
