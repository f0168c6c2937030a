// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

// Event types herald reads or writes.
const (
	EventTypeMessage     = "m.room.message"
	EventTypeReaction    = "m.reaction"
	EventTypeRedaction   = "m.room.redaction"
	EventTypeMember      = "m.room.member"
	EventTypeSpaceParent = "m.space.parent"
)

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
}

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType  string    `json:"msgtype"`
	Body     string    `json:"body"`
	Mentions *Mentions `json:"m.mentions,omitempty"`
}

// Mentions is the m.mentions block of a message.
type Mentions struct {
	UserIDs []string `json:"user_ids,omitempty"`
	Room    bool     `json:"room,omitempty"`
}

// NewTextMessage creates a plain m.text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{MsgType: "m.text", Body: body}
}

// ReactionContent is the content of an m.reaction event.
type ReactionContent struct {
	RelatesTo Annotation `json:"m.relates_to"`
}

// Annotation relates a reaction key to the event it annotates.
type Annotation struct {
	RelType string `json:"rel_type"`
	EventID string `json:"event_id"`
	Key     string `json:"key"`
}

// NewReaction creates an annotation of eventID with key.
func NewReaction(eventID, key string) ReactionContent {
	return ReactionContent{RelatesTo: Annotation{RelType: "m.annotation", EventID: eventID, Key: key}}
}

// Event is a Matrix event as delivered by /sync and the state API.
type Event struct {
	EventID        string         `json:"event_id"`
	Type           string         `json:"type"`
	Sender         string         `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         string         `json:"room_id,omitempty"`
	StateKey       *string        `json:"state_key,omitempty"`

	// Redacts is set on m.room.redaction events in room versions
	// before 11; later versions carry it in Content.
	Redacts string `json:"redacts,omitempty"`
}

// ContentString returns Content[key] if it is a string.
func (e Event) ContentString(key string) string {
	value, _ := e.Content[key].(string)
	return value
}

// RedactedEventID returns the event an m.room.redaction removes.
func (e Event) RedactedEventID() string {
	if e.Redacts != "" {
		return e.Redacts
	}
	return e.ContentString("redacts")
}

// SyncOptions controls one /sync call.
type SyncOptions struct {
	Since      string // next_batch of the previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds
	SetTimeout bool   // send Timeout even when zero
	Filter     string // filter id or inline JSON filter
}

// SyncResponse is the top level of a /sync response.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection groups per-room sync data by membership.
type RoomsSection struct {
	Join   map[string]JoinedRoom  `json:"join,omitempty"`
	Invite map[string]InvitedRoom `json:"invite,omitempty"`
	Leave  map[string]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom is sync data for a joined room.
type JoinedRoom struct {
	Summary  RoomSummary     `json:"summary"`
	State    StateSection    `json:"state"`
	Timeline TimelineSection `json:"timeline"`
}

// RoomSummary carries member counts. Fields are omitted by the server
// when unchanged since the previous sync.
type RoomSummary struct {
	JoinedMemberCount  *int `json:"m.joined_member_count,omitempty"`
	InvitedMemberCount *int `json:"m.invited_member_count,omitempty"`
}

// InvitedRoom is sync data for a pending invite.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoom is sync data for a room the user left.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// TimelineSection holds timeline events.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection holds state events.
type StateSection struct {
	Events []Event `json:"events"`
}

// SendEventResponse is returned by the send endpoints.
type SendEventResponse struct {
	EventID string `json:"event_id"`
}

// JoinedMembersResponse is returned by /joined_members.
type JoinedMembersResponse struct {
	Joined map[string]JoinedMember `json:"joined"`
}

// JoinedMember is one entry of JoinedMembersResponse.
type JoinedMember struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// CreateRoomRequest holds the createRoom parameters herald uses.
type CreateRoomRequest struct {
	Name     string   `json:"name,omitempty"`
	Preset   string   `json:"preset,omitempty"`
	Invite   []string `json:"invite,omitempty"`
	IsDirect bool     `json:"is_direct,omitempty"`
}

// CreateRoomResponse is returned by CreateRoom.
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}
