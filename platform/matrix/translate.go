// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"time"

	"github.com/bureau-foundation/herald/messaging"
	"github.com/bureau-foundation/herald/platform"
)

// translate converts one timeline event. Events herald does not route
// report false.
func (a *Adapter) translate(roomID string, event messaging.Event) (platform.Event, bool) {
	switch event.Type {
	case messaging.EventTypeMessage:
		return a.translateMessage(roomID, event)
	case messaging.EventTypeReaction:
		return a.translateReaction(roomID, event)
	case messaging.EventTypeRedaction:
		return a.translateRedaction(event)
	}
	return platform.Event{}, false
}

func (a *Adapter) translateMessage(roomID string, event messaging.Event) (platform.Event, bool) {
	body := event.ContentString("body")
	if body == "" {
		return platform.Event{}, false
	}
	// Edits arrive as new messages relating to the original.
	if relatesTo, ok := event.Content["m.relates_to"].(map[string]any); ok {
		if relType, _ := relatesTo["rel_type"].(string); relType == "m.replace" {
			return platform.Event{}, false
		}
	}
	message := &platform.Message{
		Ref:    platform.MessageRef{Channel: a.channel(roomID), MessageID: event.EventID},
		Author: event.Sender,
		Body:   body,
		Time:   eventTime(event),
	}
	if mentions, ok := event.Content["m.mentions"].(map[string]any); ok {
		if userIDs, ok := mentions["user_ids"].([]any); ok {
			for _, userID := range userIDs {
				if id, ok := userID.(string); ok && id != "" {
					message.Mentions = append(message.Mentions, id)
				}
			}
		}
		message.MentionsEveryone, _ = mentions["room"].(bool)
	}
	return platform.Event{Kind: platform.KindMessage, Message: message}, true
}

func (a *Adapter) translateReaction(roomID string, event messaging.Event) (platform.Event, bool) {
	relatesTo, ok := event.Content["m.relates_to"].(map[string]any)
	if !ok {
		return platform.Event{}, false
	}
	relType, _ := relatesTo["rel_type"].(string)
	target, _ := relatesTo["event_id"].(string)
	key, _ := relatesTo["key"].(string)
	if relType != "m.annotation" || target == "" || key == "" {
		return platform.Event{}, false
	}
	reaction := platform.Reaction{
		Target: platform.MessageRef{Channel: a.channel(roomID), MessageID: target},
		User:   event.Sender,
		Emoji:  key,
		Added:  true,
		Time:   eventTime(event),
	}
	a.reactions.Add(event.EventID, reaction)
	return platform.Event{Kind: platform.KindReaction, Reaction: &reaction}, true
}

func (a *Adapter) translateRedaction(event messaging.Event) (platform.Event, bool) {
	redacted := event.RedactedEventID()
	reaction, ok := a.reactions.Get(redacted)
	if !ok {
		return platform.Event{}, false
	}
	a.reactions.Remove(redacted)
	reaction.Added = false
	reaction.Time = eventTime(event)
	return platform.Event{Kind: platform.KindReaction, Reaction: &reaction}, true
}

func eventTime(event messaging.Event) time.Time {
	return time.UnixMilli(event.OriginServerTS).UTC()
}
