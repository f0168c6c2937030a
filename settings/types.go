// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type parses user input for a key. Parse returns one of int64,
// float64, string or bool; Format renders such a value so that Parse
// gives it back unchanged.
type Type interface {
	Name() string
	Parse(raw string) (any, error)
	Format(value any) string
}

// Integer accepts any signed 64-bit integer.
type Integer struct{}

func (Integer) Name() string { return "integer" }

func (Integer) Parse(raw string) (any, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, errors.New("not an integer")
	}
	return value, nil
}

func (Integer) Format(value any) string { return formatInt(value) }

// IntRange accepts integers in [Min, Max].
type IntRange struct {
	Min, Max int64
}

func (r IntRange) Name() string { return fmt.Sprintf("integer %d..%d", r.Min, r.Max) }

func (r IntRange) Parse(raw string) (any, error) {
	parsed, err := Integer{}.Parse(raw)
	if err != nil {
		return nil, err
	}
	value := parsed.(int64)
	if value < r.Min || value > r.Max {
		return nil, fmt.Errorf("must be between %d and %d", r.Min, r.Max)
	}
	return value, nil
}

func (IntRange) Format(value any) string { return formatInt(value) }

// Percent accepts a fraction in [0, 1]. A trailing "%" divides by 100,
// so "50%" and "0.5" are the same value.
type Percent struct{}

func (Percent) Name() string { return "percent" }

func (Percent) Parse(raw string) (any, error) {
	text := strings.TrimSpace(raw)
	scale := 1.0
	if trimmed, ok := strings.CutSuffix(text, "%"); ok {
		text = strings.TrimSpace(trimmed)
		scale = 100
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, errors.New("not a percentage")
	}
	value /= scale
	if value < 0 || value > 1 {
		return nil, errors.New("must be between 0% and 100%")
	}
	return value, nil
}

func (Percent) Format(value any) string { return formatFloat(value) }

// FloatRange accepts finite numbers in [Min, Max].
type FloatRange struct {
	Min, Max float64
}

func (r FloatRange) Name() string { return fmt.Sprintf("number %g..%g", r.Min, r.Max) }

func (r FloatRange) Parse(raw string) (any, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, errors.New("not a number")
	}
	if value < r.Min || value > r.Max {
		return nil, fmt.Errorf("must be between %g and %g", r.Min, r.Max)
	}
	return value, nil
}

func (FloatRange) Format(value any) string { return formatFloat(value) }

// String accepts any text, stored verbatim.
type String struct{}

func (String) Name() string { return "string" }

func (String) Parse(raw string) (any, error) { return raw, nil }

func (String) Format(value any) string {
	text, _ := value.(string)
	return text
}

// Bool accepts true/false, yes/no, on/off and 1/0.
type Bool struct{}

func (Bool) Name() string { return "boolean" }

func (Bool) Parse(raw string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return nil, errors.New("not a boolean (use yes or no)")
}

func (Bool) Format(value any) string {
	if enabled, _ := value.(bool); enabled {
		return "true"
	}
	return "false"
}

func formatInt(value any) string {
	switch typed := value.(type) {
	case int64:
		return strconv.FormatInt(typed, 10)
	case int:
		return strconv.Itoa(typed)
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case uint64:
		return strconv.FormatUint(typed, 10)
	}
	return fmt.Sprint(value)
}

func formatFloat(value any) string {
	switch typed := value.(type) {
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'g', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	}
	return fmt.Sprint(value)
}

// AsInt returns value as an int64, or 0.
func AsInt(value any) int64 {
	typed, _ := value.(int64)
	return typed
}

// AsFloat returns value as a float64, or 0.
func AsFloat(value any) float64 {
	typed, _ := value.(float64)
	return typed
}

// AsString returns value as a string, or "".
func AsString(value any) string {
	typed, _ := value.(string)
	return typed
}

// AsBool returns value as a bool, or false.
func AsBool(value any) bool {
	typed, _ := value.(bool)
	return typed
}
