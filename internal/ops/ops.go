package ops

import (
	"strings"
	"time"
)

// History limits
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
	DefaultSearchLimit  = 100
	MaxSearchLimit      = 1000
)

// timeNow is swapped by tests that need a fixed clock.
var timeNow = time.Now

// clampLimit applies the default when limit <= 0 and caps it at max.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// cleanOptionalString trims s and returns nil when it is empty.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
