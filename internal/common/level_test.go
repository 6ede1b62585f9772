package common

import "testing"

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"4", "8", "16", " 20 "} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q) error = %v", s, err)
		}
	}
	for _, s := range []string{"", "0", "5", "32", "eight", "-4"} {
		if l, err := ParseLevel(s); err == nil {
			t.Errorf("ParseLevel(%q) = %v, want error", s, l)
		}
	}
}

func TestLevelGridWidth(t *testing.T) {
	tests := []struct {
		level Level
		want  int
	}{
		{Level4, 2200},
		{Level8, 4400},
		{Level16, 8800},
		{Level20, 11000},
	}
	for _, tt := range tests {
		if got := tt.level.GridWidth(); got != tt.want {
			t.Errorf("Level(%d).GridWidth() = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestTileCoordInGrid(t *testing.T) {
	if !(TileCoord{X: 3, Y: 3}).InGrid(Level4) {
		t.Error("3,3 should be inside a level 4 grid")
	}
	if (TileCoord{X: 4, Y: 0}).InGrid(Level4) {
		t.Error("4,0 should be outside a level 4 grid")
	}
	if (TileCoord{X: -1, Y: 0}).InGrid(Level4) {
		t.Error("-1,0 should be outside a level 4 grid")
	}
}
