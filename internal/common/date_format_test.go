package common

import (
	"testing"
	"time"
)

func TestParseMetadataDate(t *testing.T) {
	ts, err := ParseMetadataDate("2024-03-01 04:20:00")
	if err != nil {
		t.Fatalf("ParseMetadataDate() error = %v", err)
	}
	want := time.Date(2024, 3, 1, 4, 20, 0, 0, time.UTC)
	if !ts.Equal(want) || ts.Location() != time.UTC {
		t.Errorf("ParseMetadataDate() = %v, want %v", ts, want)
	}

	year, month, day, clock := TileDateParts(ts)
	if year != "2024" || month != "03" || day != "01" || clock != "042000" {
		t.Errorf("TileDateParts() = %s/%s/%s/%s", year, month, day, clock)
	}
	if got := FormatFilenameDate(ts); got != "20240301_042000" {
		t.Errorf("FormatFilenameDate() = %q", got)
	}
}

func TestParseMetadataDateInvalid(t *testing.T) {
	for _, s := range []string{"", "2024-03-01", "2024-03-01T04:20:00Z", "yesterday"} {
		if _, err := ParseMetadataDate(s); err == nil {
			t.Errorf("ParseMetadataDate(%q) should fail", s)
		}
	}
}
