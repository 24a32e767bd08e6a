package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyInput is returned when there is nothing to aggregate.
var ErrEmptyInput = errors.New("empty input: no records to aggregate")

// InvalidDateError reports a record whose date is missing or unparsable.
type InvalidDateError struct {
	Index int
	Value string
}

func (e *InvalidDateError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid date: record %d has no date", e.Index)
	}
	return fmt.Sprintf("invalid date: record %d has unparsable date %q", e.Index, e.Value)
}

// InvalidValueError reports a record whose numeric field is unparsable,
// non-finite or negative. Index is the 0-based data record position, the
// same convention as InvalidDateError.
type InvalidValueError struct {
	Index  int
	Field  string
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value: record %d has %s=%q: %s", e.Index, e.Field, e.Value, e.Reason)
}

// InvalidParameterError reports an out-of-range scenario or pipeline parameter.
type InvalidParameterError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Field, e.Value, e.Reason)
}

// UnmatchedRegionError counts records per region code that matched no known
// region. It describes a partial result and is never fatal.
type UnmatchedRegionError struct {
	Doses    map[string]int `json:"doses,omitempty"`
	Coverage map[string]int `json:"coverage,omitempty"`
}

func (e *UnmatchedRegionError) Error() string {
	return fmt.Sprintf("unmatched regions: %d dose records (%s), %d coverage records (%s)",
		sumCounts(e.Doses), strings.Join(sortedKeys(e.Doses), ","),
		sumCounts(e.Coverage), strings.Join(sortedKeys(e.Coverage), ","))
}

// Total is the number of records excluded across both datasets.
func (e *UnmatchedRegionError) Total() int {
	if e == nil {
		return 0
	}
	return sumCounts(e.Doses) + sumCounts(e.Coverage)
}

func sumCounts(m map[string]int) int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
