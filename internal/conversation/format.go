// ABOUTME: Display formatting for message timestamps

package conversation

import (
	"strings"
	"time"
)

// Placeholders shown instead of a timestamp.
const (
	UnknownDate = "Unknown Date"
	InvalidDate = "Invalid Date"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp parses a server timestamp in any of the formats the
// backend has been seen to emit.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatMessageTime renders a server timestamp in the local zone.
func FormatMessageTime(raw string) string {
	return formatMessageTime(raw, time.Local)
}

func formatMessageTime(raw string, loc *time.Location) string {
	if strings.TrimSpace(raw) == "" {
		return UnknownDate
	}
	t, ok := ParseTimestamp(raw)
	if !ok {
		return InvalidDate
	}
	return t.In(loc).Format("1/2/2006, 3:04:05 PM")
}
