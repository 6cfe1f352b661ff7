// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// IntInRange parses an optional integer parameter. An empty (or blank) s
// yields def. The second result is false when s is not an integer or falls
// outside [lo, hi].
//
// Example:
//
//	k, ok := utils.IntInRange(c.Query("k"), 5, 1, 20)
func IntInRange(s string, def, lo, hi int) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return def, false
	}
	return n, true
}
