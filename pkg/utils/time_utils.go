package utils

import (
	"time"
)

// DisplayTimeLayout is the human readable layout used for createdAt and sentAt
const DisplayTimeLayout = "January 2, 2006 at 3:04:05 PM MST"

// TimeToMillis converts time.Time to milliseconds since epoch
func TimeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FormatTime formats time in ISO 8601 format
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatDisplayTime formats t for display. The result is not sortable.
func FormatDisplayTime(t time.Time) string {
	return t.UTC().Format(DisplayTimeLayout)
}
