package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expression is a parsed 5-field cron expression (minute, hour,
// day-of-month, month, day-of-week).
type Expression struct {
	minutes     []int
	hours       []int
	daysOfMonth []int
	months      []int
	daysOfWeek  []int
}

// Parse parses a standard 5-field cron expression. Supported per field:
// *, */n, n, n-m, n-m/s, and comma-separated combinations.
func Parse(expr string) (*Expression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	bounds := []struct {
		name     string
		min, max int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day-of-month", 1, 31},
		{"month", 1, 12},
		{"day-of-week", 0, 6},
	}

	parsed := make([][]int, 5)
	for i, b := range bounds {
		vals, err := parseField(fields[i], b.min, b.max)
		if err != nil {
			return nil, fmt.Errorf("%s field: %w", b.name, err)
		}
		parsed[i] = vals
	}

	return &Expression{
		minutes:     parsed[0],
		hours:       parsed[1],
		daysOfMonth: parsed[2],
		months:      parsed[3],
		daysOfWeek:  parsed[4],
	}, nil
}

// Matches reports whether t satisfies the expression.
func (e *Expression) Matches(t time.Time) bool {
	return contains(e.minutes, t.Minute()) &&
		contains(e.hours, t.Hour()) &&
		contains(e.daysOfMonth, t.Day()) &&
		contains(e.months, int(t.Month())) &&
		contains(e.daysOfWeek, int(t.Weekday()))
}

func contains(vals []int, v int) bool {
	for _, val := range vals {
		if val == v {
			return true
		}
	}
	return false
}

func parseField(field string, min, max int) ([]int, error) {
	var result []int
	for _, part := range strings.Split(field, ",") {
		vals, err := parsePart(part, min, max)
		if err != nil {
			return nil, err
		}
		result = append(result, vals...)
	}
	return result, nil
}

func parsePart(part string, min, max int) ([]int, error) {
	if part == "*" {
		return stepped(min, max, 1), nil
	}
	if strings.HasPrefix(part, "*/") {
		step, err := strconv.Atoi(part[2:])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step: %s", part)
		}
		return stepped(min, max, step), nil
	}

	if strings.Contains(part, "-") {
		rangeAndStep := strings.SplitN(part, "/", 2)
		lohi := strings.SplitN(rangeAndStep[0], "-", 2)
		if len(lohi) != 2 {
			return nil, fmt.Errorf("invalid range: %s", part)
		}
		lo, err := strconv.Atoi(lohi[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %s", lohi[0])
		}
		hi, err := strconv.Atoi(lohi[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", lohi[1])
		}
		step := 1
		if len(rangeAndStep) == 2 {
			step, err = strconv.Atoi(rangeAndStep[1])
			if err != nil || step <= 0 {
				return nil, fmt.Errorf("invalid step: %s", rangeAndStep[1])
			}
		}
		if lo < min || hi > max || lo > hi {
			return nil, fmt.Errorf("range %s out of bounds %d-%d", part, min, max)
		}
		return stepped(lo, hi, step), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", part)
	}
	if val < min || val > max {
		return nil, fmt.Errorf("value %d out of range %d-%d", val, min, max)
	}
	return []int{val}, nil
}

func stepped(lo, hi, step int) []int {
	var vals []int
	for i := lo; i <= hi; i += step {
		vals = append(vals, i)
	}
	return vals
}
