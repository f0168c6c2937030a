// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule yields successive firing times.
type Schedule interface {
	// Next returns the first firing time strictly after t.
	Next(t time.Time) (time.Time, error)
}

// Period is a fixed-interval Schedule.
type Period time.Duration

// Every returns a Schedule firing every d. Non-positive periods are
// rejected when Next is called.
func Every(d time.Duration) Period { return Period(d) }

// Next returns t + period.
func (p Period) Next(t time.Time) (time.Time, error) {
	if p <= 0 {
		return time.Time{}, fmt.Errorf("cron: period must be positive, got %s", time.Duration(p))
	}
	return t.Add(time.Duration(p)), nil
}

func (p Period) String() string { return "every " + time.Duration(p).String() }

// Expression is a parsed 5-field cron expression.
type Expression struct {
	source      string
	minute      fieldSet
	hour        fieldSet
	dayOfMonth  fieldSet
	month       fieldSet
	dayOfWeek   fieldSet
	anyMonthDay bool
	anyWeekDay  bool
}

// fieldSet is a set of small integers (0-63).
type fieldSet uint64

func (s fieldSet) contains(value int) bool { return s&(1<<uint(value)) != 0 }

var shortcuts = map[string]string{
	"@hourly":  "0 * * * *",
	"@daily":   "0 0 * * *",
	"@weekly":  "0 0 * * 0",
	"@monthly": "0 0 1 * *",
}

type fieldSpec struct {
	name     string
	low      int
	high     int
	wildcard *bool
}

// Parse parses a cron expression or one of the @-shortcuts.
func Parse(expression string) (*Expression, error) {
	source := strings.TrimSpace(expression)
	if expanded, ok := shortcuts[source]; ok {
		source = expanded
	}

	fields := strings.Fields(source)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: %q: expected 5 fields, got %d", expression, len(fields))
	}

	parsed := &Expression{source: expression}
	targets := []*fieldSet{&parsed.minute, &parsed.hour, &parsed.dayOfMonth, &parsed.month, &parsed.dayOfWeek}
	specs := []fieldSpec{
		{name: "minute", low: 0, high: 59},
		{name: "hour", low: 0, high: 23},
		{name: "day-of-month", low: 1, high: 31, wildcard: &parsed.anyMonthDay},
		{name: "month", low: 1, high: 12},
		{name: "day-of-week", low: 0, high: 6, wildcard: &parsed.anyWeekDay},
	}
	for index, spec := range specs {
		set, err := parseField(fields[index], spec.low, spec.high)
		if err != nil {
			return nil, fmt.Errorf("cron: %q: %s field: %w", expression, spec.name, err)
		}
		*targets[index] = set
		if spec.wildcard != nil {
			*spec.wildcard = fields[index] == "*"
		}
	}
	return parsed, nil
}

func (e *Expression) String() string { return e.source }

// searchHorizon bounds Next for impossible expressions such as
// "0 0 31 2 *".
const searchHorizon = 5 * 366 * 24 * time.Hour

// Next returns the first matching minute strictly after t, in UTC.
func (e *Expression) Next(t time.Time) (time.Time, error) {
	candidate := t.UTC().Truncate(time.Minute).Add(time.Minute)
	limit := candidate.Add(searchHorizon)

	for candidate.Before(limit) {
		switch {
		case !e.month.contains(int(candidate.Month())):
			candidate = time.Date(candidate.Year(), candidate.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		case !e.dayMatches(candidate):
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, 0, 0, 0, 0, time.UTC)
		case !e.hour.contains(candidate.Hour()):
			candidate = candidate.Truncate(time.Hour).Add(time.Hour)
		case !e.minute.contains(candidate.Minute()):
			candidate = candidate.Add(time.Minute)
		default:
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("cron: %q never fires after %s", e.source, t.UTC().Format(time.RFC3339))
}

func (e *Expression) dayMatches(t time.Time) bool {
	monthDay := e.dayOfMonth.contains(t.Day())
	weekDay := e.dayOfWeek.contains(int(t.Weekday()))
	if e.anyMonthDay || e.anyWeekDay {
		return monthDay && weekDay
	}
	return monthDay || weekDay
}

func parseField(field string, low, high int) (fieldSet, error) {
	var set fieldSet
	for _, term := range strings.Split(field, ",") {
		termSet, err := parseTerm(term, low, high)
		if err != nil {
			return 0, err
		}
		set |= termSet
	}
	return set, nil
}

// parseTerm handles *, */N, V, A-B and A-B/N.
func parseTerm(term string, low, high int) (fieldSet, error) {
	body, stepText, hasStep := strings.Cut(term, "/")
	step := 1
	if hasStep {
		parsed, err := strconv.Atoi(stepText)
		if err != nil {
			return 0, fmt.Errorf("invalid step %q", stepText)
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("step must be positive, got %d", parsed)
		}
		step = parsed
	}

	start, end := low, high
	switch {
	case body == "*":
	case strings.Contains(body, "-"):
		startText, endText, _ := strings.Cut(body, "-")
		var err error
		if start, err = strconv.Atoi(startText); err != nil {
			return 0, fmt.Errorf("invalid range start %q", startText)
		}
		if end, err = strconv.Atoi(endText); err != nil {
			return 0, fmt.Errorf("invalid range end %q", endText)
		}
		if start > end {
			return 0, fmt.Errorf("range start %d > end %d", start, end)
		}
	default:
		value, err := strconv.Atoi(body)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", body)
		}
		start, end = value, value
	}

	if start < low || end > high {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d-%d", low, high, start, end)
	}

	var set fieldSet
	for value := start; value <= end; value += step {
		set |= 1 << uint(value)
	}
	return set, nil
}
