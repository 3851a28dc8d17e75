// ABOUTME: Tests for message timestamp formatting

package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessageTime(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "Unknown Date"},
		{raw: "   ", want: "Unknown Date"},
		{raw: "yesterday", want: "Invalid Date"},
		{raw: "2024-03-05T14:07:09.123Z", want: "3/5/2024, 2:07:09 PM"},
		{raw: "2024-03-05T14:07:09Z", want: "3/5/2024, 2:07:09 PM"},
		{raw: "2024-03-05T16:07:09+02:00", want: "3/5/2024, 2:07:09 PM"},
		{raw: "2024-03-05", want: "3/5/2024, 12:00:00 AM"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMessageTime(tt.raw, time.UTC))
		})
	}
}

func TestFormatMessageTime_UsesLocalZone(t *testing.T) {
	// Only the placeholders are zone-independent
	assert.Equal(t, UnknownDate, FormatMessageTime(""))
	assert.Equal(t, InvalidDate, FormatMessageTime("nope"))
	assert.NotEqual(t, InvalidDate, FormatMessageTime("2024-03-05T14:07:09Z"))
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("2024-03-05T14:07:09.123Z")
	assert.True(t, ok)
	assert.Equal(t, 123*time.Millisecond, time.Duration(ts.Nanosecond()))

	_, ok = ParseTimestamp("03/05/2024")
	assert.False(t, ok)
}
