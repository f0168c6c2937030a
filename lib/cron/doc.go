// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron computes firing times for timer triggers.
//
// A [Schedule] answers one question: given a time, when is the next
// firing strictly after it? Two implementations exist:
//
//   - [Every] fires on a fixed period measured from the previous
//     firing.
//   - [Parse] reads a standard 5-field cron expression (minute, hour,
//     day of month, month, day of week) evaluated in UTC. Fields
//     accept values, ranges (1-5), lists (1,3,5), steps (*/15,
//     0-30/5) and the wildcard. The shortcuts @hourly, @daily,
//     @weekly and @monthly are accepted.
//
// When both day fields are restricted, a day matches if either one
// does, as in classic cron.
package cron
