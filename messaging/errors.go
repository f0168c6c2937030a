// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
	"time"
)

// MatrixError is a structured error response from the homeserver.
// Extract it with errors.As:
//
//	var matrixErr *MatrixError
//	if errors.As(err, &matrixErr) && matrixErr.Code == ErrCodeForbidden { ... }
type MatrixError struct {
	Code    string `json:"errcode"`
	Message string `json:"error"`

	// RetryAfterMillis accompanies M_LIMIT_EXCEEDED.
	RetryAfterMillis int64 `json:"retry_after_ms,omitempty"`

	StatusCode int `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Matrix error codes herald reacts to.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown       = "M_UNKNOWN"
)

// IsMatrixError reports whether err wraps a *MatrixError with code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

// RetryAfter returns the server-requested delay if err is a rate-limit
// response.
func RetryAfter(err error) (time.Duration, bool) {
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) || matrixErr.Code != ErrCodeLimitExceeded {
		return 0, false
	}
	return time.Duration(matrixErr.RetryAfterMillis) * time.Millisecond, true
}
