package common

import (
	"fmt"
	"time"
)

// Standard date format constants
const (
	// MetadataDate is the layout of the "date" field in latest.json (always UTC)
	MetadataDate = "2006-01-02 15:04:05"

	// FilenameDate is the layout used in timestamped output filenames
	FilenameDate = "20060102_150405"

	// DisplayDate is the human-readable format used in log output
	DisplayDate = "Jan 02, 2006 15:04 MST"
)

// ParseMetadataDate parses a latest.json date string as a UTC timestamp
func ParseMetadataDate(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date string is empty")
	}
	return time.ParseInLocation(MetadataDate, dateStr, time.UTC)
}

// TileDateParts splits a timestamp into the path segments used by tile URLs
func TileDateParts(t time.Time) (year, month, day, clock string) {
	t = t.UTC()
	return t.Format("2006"), t.Format("01"), t.Format("02"), t.Format("150405")
}

// FormatFilenameDate formats a timestamp for use in output filenames (YYYYMMDD_HHMMSS)
func FormatFilenameDate(t time.Time) string {
	return t.UTC().Format(FilenameDate)
}

// FormatDisplay formats a timestamp for logs
func FormatDisplay(t time.Time) string {
	return t.UTC().Format(DisplayDate)
}
