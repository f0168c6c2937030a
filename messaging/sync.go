// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/herald/lib/clock"
)

// SyncConfig configures RunSyncLoop.
type SyncConfig struct {
	// Filter is an inline JSON filter or filter id.
	Filter string

	// Timeout is the long-poll timeout. Default 30s.
	Timeout time.Duration

	// MaxBackoff caps the exponential retry delay, which starts at one
	// second. Default 30s.
	MaxBackoff time.Duration
}

// SyncHandler processes one /sync response. The next poll starts when
// it returns.
type SyncHandler func(ctx context.Context, response *SyncResponse)

// Syncer is the part of Session the loop needs.
type Syncer interface {
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)
}

// InitialSync performs a sync with no since token and returns the
// response, whose NextBatch starts the incremental loop.
func InitialSync(ctx context.Context, session Syncer, filter string) (*SyncResponse, error) {
	response, err := session.Sync(ctx, SyncOptions{Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("initial sync: %w", err)
	}
	return response, nil
}

// RunSyncLoop long-polls /sync from sinceToken, calling handler with
// each response, until ctx is done. Errors are retried with
// exponential backoff; a rate-limit response waits at least as long as
// the server asked. An invalid access token ends the loop with an
// error, since retrying cannot fix it.
func RunSyncLoop(ctx context.Context, session Syncer, config SyncConfig, sinceToken string, handler SyncHandler, clk clock.Clock, logger *slog.Logger) error {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}
		response, err := session.Sync(ctx, SyncOptions{
			Since:      sinceToken,
			Timeout:    int(timeout / time.Millisecond),
			SetTimeout: true,
			Filter:     config.Filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if IsMatrixError(err, ErrCodeUnknownToken) {
				return fmt.Errorf("sync: access token rejected: %w", err)
			}
			delay := backoff
			if retryAfter, ok := RetryAfter(err); ok && retryAfter > delay {
				delay = retryAfter
			}
			logger.Error("sync failed, retrying", "error", err, "backoff", delay)
			if err := clock.SleepContext(ctx, clk, delay); err != nil {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = time.Second
		sinceToken = response.NextBatch
		handler(ctx, response)
	}
}

// RoomJoiner is the part of Session AcceptInvites needs.
type RoomJoiner interface {
	JoinRoom(ctx context.Context, roomIDOrAlias string) (string, error)
}

// AcceptInvites joins every invited room and returns the room ids that
// were joined. Failures are logged and skipped.
func AcceptInvites(ctx context.Context, session RoomJoiner, invites map[string]InvitedRoom, logger *slog.Logger) []string {
	var accepted []string
	for roomID := range invites {
		logger.Info("accepting room invite", "room_id", roomID)
		if _, err := session.JoinRoom(ctx, roomID); err != nil {
			logger.Error("failed to accept room invite",
				"room_id", roomID,
				"error", err,
			)
			continue
		}
		accepted = append(accepted, roomID)
	}
	return accepted
}
