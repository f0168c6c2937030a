// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"errors"
	"fmt"
)

// SyntaxError reports a malformed invocation. The user is shown Usage
// with the command prefix.
type SyntaxError struct {
	Usage string
}

func (e *SyntaxError) Error() string {
	return "usage: " + e.Usage
}

// ModuleError carries a message the module wants shown to the user
// verbatim.
type ModuleError struct {
	Message string
	// Err is an optional cause, logged but not shown.
	Err error
}

func (e *ModuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ModuleError) Unwrap() error { return e.Err }

// Usage returns a *SyntaxError for usage.
func Usage(usage string) error {
	return &SyntaxError{Usage: usage}
}

// Errorf returns a *ModuleError with a formatted message.
func Errorf(format string, args ...any) error {
	return &ModuleError{Message: fmt.Sprintf(format, args...)}
}

// AsSyntaxError extracts a *SyntaxError from err's chain.
func AsSyntaxError(err error) (*SyntaxError, bool) {
	var syntax *SyntaxError
	ok := errors.As(err, &syntax)
	return syntax, ok
}

// AsModuleError extracts a *ModuleError from err's chain.
func AsModuleError(err error) (*ModuleError, bool) {
	var moduleErr *ModuleError
	ok := errors.As(err, &moduleErr)
	return moduleErr, ok
}

// panicError is a recovered handler panic.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", e.value, e.stack)
}
