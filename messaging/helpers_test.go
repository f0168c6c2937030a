// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "log/slog"

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }
