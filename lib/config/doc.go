// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads herald's YAML configuration.
//
// The file is named by the HERALD_CONFIG environment variable ([Load])
// or passed explicitly ([LoadFile], used for the --config flag). There
// is no search path and no per-field environment override; the file is
// the whole truth.
//
// A file may carry development, staging and production sections whose
// non-zero fields replace base values when [Config].Environment
// matches. Path fields then have ${HOME}, ${HERALD_ROOT} and
// ${VAR:-default} patterns expanded.
//
// [Config.Validate] reports every problem at once, joined with
// errors.Join.
package config
