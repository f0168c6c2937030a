// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/herald/lib/clock"
	"github.com/bureau-foundation/herald/messaging"
	"github.com/bureau-foundation/herald/platform"
)

// Session is the part of *messaging.Session the adapter uses.
type Session interface {
	UserID() string
	Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error)
	SendMessage(ctx context.Context, roomID string, content messaging.MessageContent) (string, error)
	SendReaction(ctx context.Context, roomID, eventID, key string) (string, error)
	JoinRoom(ctx context.Context, roomIDOrAlias string) (string, error)
	CreateDirectRoom(ctx context.Context, userID string) (string, error)
}

// Config configures an Adapter.
type Config struct {
	Session Session

	// SyncTimeout is the /sync long-poll timeout. Default 30s.
	SyncTimeout time.Duration

	// SendRate is outbound events per second; zero means unlimited.
	// SendBurst defaults to 1 when SendRate is set.
	SendRate  float64
	SendBurst int

	// TrackedReactions bounds how many reaction events are remembered
	// for redaction lookup. Default 8192.
	TrackedReactions int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Adapter connects herald to a Matrix homeserver.
type Adapter struct {
	session     Session
	syncTimeout time.Duration
	limiter     *rate.Limiter
	clock       clock.Clock
	logger      *slog.Logger

	mu      sync.Mutex
	rooms   map[string]*room
	directs map[string]string // peer user id -> room id

	// reactions maps reaction event ids to what they annotated.
	reactions *lru.Cache[string, platform.Reaction]
}

// room is what the adapter knows about one joined room.
type room struct {
	parent  string
	members map[string]bool
	// joinedCount comes from the sync summary; -1 until reported.
	joinedCount int
}

func (r *room) joined() int {
	if r.joinedCount >= 0 {
		return r.joinedCount
	}
	return len(r.members)
}

func (r *room) direct() bool {
	return r.parent == "" && r.joined() <= 2
}

// New creates an Adapter.
func New(config Config) (*Adapter, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("matrix: Session is required")
	}
	syncTimeout := config.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.SendRate > 0 {
		burst := max(config.SendBurst, 1)
		limiter = rate.NewLimiter(rate.Limit(config.SendRate), burst)
	}
	tracked := config.TrackedReactions
	if tracked <= 0 {
		tracked = 8192
	}
	reactions, err := lru.New[string, platform.Reaction](tracked)
	if err != nil {
		return nil, fmt.Errorf("matrix: reaction cache: %w", err)
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		session:     config.Session,
		syncTimeout: syncTimeout,
		limiter:     limiter,
		clock:       clk,
		logger:      logger,
		rooms:       make(map[string]*room),
		directs:     make(map[string]string),
		reactions:   reactions,
	}, nil
}

// SelfID returns the bot's Matrix user id.
func (a *Adapter) SelfID() string { return a.session.UserID() }

// Send posts a plain-text message.
func (a *Adapter) Send(ctx context.Context, channel platform.ChannelRef, text string) (platform.MessageRef, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return platform.MessageRef{}, fmt.Errorf("matrix: send rate limit: %w", err)
	}
	eventID, err := a.session.SendMessage(ctx, channel.ChannelID, messaging.NewTextMessage(text))
	if err != nil {
		return platform.MessageRef{}, err
	}
	return platform.MessageRef{Channel: channel, MessageID: eventID}, nil
}

// React annotates a message with emoji.
func (a *Adapter) React(ctx context.Context, message platform.MessageRef, emoji string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("matrix: send rate limit: %w", err)
	}
	_, err := a.session.SendReaction(ctx, message.Channel.ChannelID, message.MessageID, emoji)
	return err
}

// DirectChannel returns the DM room shared with userID, creating one if
// none is known.
func (a *Adapter) DirectChannel(ctx context.Context, userID string) (platform.ChannelRef, error) {
	a.mu.Lock()
	roomID, ok := a.directs[userID]
	a.mu.Unlock()
	if ok {
		return platform.ChannelRef{ChannelID: roomID}, nil
	}

	roomID, err := a.session.CreateDirectRoom(ctx, userID)
	if err != nil {
		return platform.ChannelRef{}, fmt.Errorf("matrix: direct room with %s: %w", userID, err)
	}
	a.mu.Lock()
	a.rooms[roomID] = &room{
		members:     map[string]bool{a.session.UserID(): true, userID: true},
		joinedCount: -1,
	}
	a.directs[userID] = roomID
	a.mu.Unlock()
	return platform.ChannelRef{ChannelID: roomID}, nil
}

// Run syncs until ctx is done, pushing translated events. It returns
// nil on cancellation and an error when syncing cannot continue.
func (a *Adapter) Run(ctx context.Context, events chan<- platform.Event) error {
	initial, err := messaging.InitialSync(ctx, a.session, "")
	if err != nil {
		return fmt.Errorf("matrix: %w", err)
	}
	for roomID, joined := range initial.Rooms.Join {
		a.learnRoom(roomID, joined)
	}
	a.acceptInvites(ctx, initial.Rooms.Invite)
	a.logger.Info("matrix initial sync complete",
		"rooms", len(initial.Rooms.Join),
		"next_batch", initial.NextBatch,
	)

	return messaging.RunSyncLoop(ctx, a.session, messaging.SyncConfig{Timeout: a.syncTimeout}, initial.NextBatch,
		func(ctx context.Context, response *messaging.SyncResponse) {
			a.acceptInvites(ctx, response.Rooms.Invite)
			for roomID := range response.Rooms.Leave {
				a.forgetRoom(roomID)
			}
			for roomID, joined := range response.Rooms.Join {
				a.learnRoom(roomID, joined)
				for _, event := range joined.Timeline.Events {
					translated, ok := a.translate(roomID, event)
					if !ok {
						continue
					}
					select {
					case events <- translated:
					case <-ctx.Done():
						return
					}
				}
			}
		}, a.clock, a.logger)
}

func (a *Adapter) acceptInvites(ctx context.Context, invites map[string]messaging.InvitedRoom) {
	if len(invites) == 0 {
		return
	}
	messaging.AcceptInvites(ctx, a.session, invites, a.logger)
}

// learnRoom applies the state events and summary of one sync entry.
// Membership changes in the timeline count too.
func (a *Adapter) learnRoom(roomID string, joined messaging.JoinedRoom) {
	a.mu.Lock()
	defer a.mu.Unlock()

	known, ok := a.rooms[roomID]
	if !ok {
		known = &room{members: make(map[string]bool), joinedCount: -1}
		a.rooms[roomID] = known
	}
	if joined.Summary.JoinedMemberCount != nil {
		known.joinedCount = *joined.Summary.JoinedMemberCount
	}
	apply := func(event messaging.Event) {
		if event.StateKey == nil {
			return
		}
		switch event.Type {
		case messaging.EventTypeSpaceParent:
			if _, hasVia := event.Content["via"]; hasVia {
				known.parent = *event.StateKey
			} else if known.parent == *event.StateKey {
				known.parent = ""
			}
		case messaging.EventTypeMember:
			if event.ContentString("membership") == "join" {
				known.members[*event.StateKey] = true
			} else {
				delete(known.members, *event.StateKey)
			}
		}
	}
	for _, event := range joined.State.Events {
		apply(event)
	}
	for _, event := range joined.Timeline.Events {
		apply(event)
	}

	self := a.session.UserID()
	for peer, roomForPeer := range a.directs {
		if roomForPeer == roomID && !known.direct() {
			delete(a.directs, peer)
		}
	}
	if known.direct() {
		for member := range known.members {
			if member != self {
				a.directs[member] = roomID
			}
		}
	}
}

func (a *Adapter) forgetRoom(roomID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.rooms, roomID)
	for peer, roomForPeer := range a.directs {
		if roomForPeer == roomID {
			delete(a.directs, peer)
		}
	}
}

// channel returns the platform channel of a known room.
func (a *Adapter) channel(roomID string) platform.ChannelRef {
	a.mu.Lock()
	defer a.mu.Unlock()
	known, ok := a.rooms[roomID]
	if !ok || known.direct() {
		return platform.ChannelRef{ChannelID: roomID}
	}
	guild := known.parent
	if guild == "" {
		guild = roomID
	}
	return platform.ChannelRef{GuildID: guild, ChannelID: roomID}
}
