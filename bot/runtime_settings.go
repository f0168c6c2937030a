// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"time"

	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/snapshot"
)

// RuntimeNamespace holds the runtime's own settings. It is also the
// reserved module name.
const RuntimeNamespace = snapshot.RuntimeKey

// Runtime setting keys.
const (
	SettingErrorReplies    = "error_replies"
	SettingPromptTimeout   = "prompt_timeout"
	SettingAnnounceDenials = "announce_denials"
)

func runtimeSettings(defaultPromptTimeout time.Duration) settings.Declarations {
	seconds := int64(defaultPromptTimeout / time.Second)
	return settings.Declarations{
		PerGuild: []settings.Key{{
			Name:        SettingErrorReplies,
			Type:        settings.Bool{},
			Default:     true,
			Description: "apologize in the channel when a handler fails unexpectedly",
		}},
		GlobalOnly: []settings.Key{{
			Name:        SettingPromptTimeout,
			Type:        settings.IntRange{Min: 5, Max: 600},
			Default:     min(max(seconds, 5), 600),
			Description: "seconds to wait for an answer to a prompt",
		}},
		GuildOnly: []settings.Key{{
			Name:        SettingAnnounceDenials,
			Type:        settings.Bool{},
			Default:     true,
			Description: "tell users when they lack permission for a command",
		}},
	}
}

// runtimeBool reads a runtime boolean for scope, falling back to
// fallback if the read fails.
func (r *Runtime) runtimeBool(scope, key string, fallback bool) bool {
	value, err := r.state.Settings.Get(scope, RuntimeNamespace, key)
	if err != nil {
		return fallback
	}
	return settings.AsBool(value)
}

// promptTimeout is the configured prompt wait.
func (r *Runtime) promptTimeout() time.Duration {
	value, err := r.state.Settings.GetGlobal(RuntimeNamespace, SettingPromptTimeout)
	if err != nil {
		return r.defaultPromptTimeout
	}
	return time.Duration(settings.AsInt(value)) * time.Second
}
