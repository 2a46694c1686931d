// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package scheduler runs periodic cache refreshes on cron schedules.
package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Expression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
type Expression struct {
	minutes     []int // 0-59
	hours       []int // 0-23
	daysOfMonth []int // 1-31
	months      []int // 1-12
	daysOfWeek  []int // 0-6, Sunday is 0
}

// Parse parses a standard 5-field cron expression.
//
// Supported syntax: * (any), n (value), n-m (range), n,m (list),
// */s and n-m/s (steps).
//
// Examples:
//   - "0 3 * * *" runs daily at 03:00
//   - "59 23 28-31 * *" runs at 23:59 on the last days of a month
//   - "*/15 * * * *" runs every 15 minutes
func Parse(expr string) (*Expression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression needs 5 fields, got %d", len(fields))
	}

	minutes, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("minute field: %w", err)
	}
	hours, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("hour field: %w", err)
	}
	daysOfMonth, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("day-of-month field: %w", err)
	}
	months, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("month field: %w", err)
	}
	daysOfWeek, err := parseField(fields[4], 0, 7)
	if err != nil {
		return nil, fmt.Errorf("day-of-week field: %w", err)
	}

	// Both 0 and 7 mean Sunday.
	for i, d := range daysOfWeek {
		if d == 7 {
			daysOfWeek[i] = 0
		}
	}
	daysOfWeek = uniqueSorted(daysOfWeek)

	return &Expression{
		minutes:     minutes,
		hours:       hours,
		daysOfMonth: daysOfMonth,
		months:      months,
		daysOfWeek:  daysOfWeek,
	}, nil
}

// Matches reports whether the expression fires at t, truncated to the
// minute.
func (e *Expression) Matches(t time.Time) bool {
	if !containsInt(e.minutes, t.Minute()) ||
		!containsInt(e.hours, t.Hour()) ||
		!containsInt(e.months, int(t.Month())) {
		return false
	}

	// Standard cron: when both day fields are restricted, either one
	// matching is enough.
	domWildcard := len(e.daysOfMonth) == 31
	dowWildcard := len(e.daysOfWeek) == 7
	domMatch := containsInt(e.daysOfMonth, t.Day())
	dowMatch := containsInt(e.daysOfWeek, int(t.Weekday()))

	switch {
	case domWildcard && dowWildcard:
		return true
	case domWildcard:
		return dowMatch
	case dowWildcard:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

// NextRun returns the first firing time strictly after t. A nil
// location means UTC.
func (e *Expression) NextRun(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := after.In(loc).Add(time.Minute)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)

	// Bounded scan; four years covers every valid expression.
	limit := 4 * 366 * 24 * 60
	for i := 0; i < limit; i++ {
		if e.Matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func parseField(field string, minVal, maxVal int) ([]int, error) {
	if field == "*" {
		return rangeInts(minVal, maxVal), nil
	}

	var result []int
	for _, part := range strings.Split(field, ",") {
		values, err := parsePart(part, minVal, maxVal)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}
	return uniqueSorted(result), nil
}

func parsePart(part string, minVal, maxVal int) ([]int, error) {
	if base, stepStr, found := strings.Cut(part, "/"); found {
		step, err := strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step %q", stepStr)
		}

		start, end := minVal, maxVal
		switch {
		case base == "*":
		case strings.Contains(base, "-"):
			start, end, err = parseRange(base, minVal, maxVal)
			if err != nil {
				return nil, err
			}
		default:
			start, err = strconv.Atoi(base)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q", base)
			}
		}

		var result []int
		for i := start; i <= end; i += step {
			if i >= minVal && i <= maxVal {
				result = append(result, i)
			}
		}
		return result, nil
	}

	if strings.Contains(part, "-") {
		start, end, err := parseRange(part, minVal, maxVal)
		if err != nil {
			return nil, err
		}
		return rangeInts(start, end), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", part)
	}
	if val < minVal || val > maxVal {
		return nil, fmt.Errorf("value %d out of range %d-%d", val, minVal, maxVal)
	}
	return []int{val}, nil
}

func parseRange(s string, minVal, maxVal int) (int, int, error) {
	startStr, endStr, _ := strings.Cut(s, "-")
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start %q", startStr)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end %q", endStr)
	}
	if start > end || start < minVal || end > maxVal {
		return 0, 0, fmt.Errorf("invalid range %d-%d for %d-%d", start, end, minVal, maxVal)
	}
	return start, end, nil
}

func rangeInts(start, end int) []int {
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func uniqueSorted(values []int) []int {
	seen := make(map[int]bool, len(values))
	result := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	sort.Ints(result)
	return result
}
