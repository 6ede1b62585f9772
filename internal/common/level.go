package common

import (
	"strconv"
	"strings"

	"himawari-desktop/internal/apperr"
)

// Level is the grid resolution: the number of tiles along each axis
type Level int

// Supported grid resolutions
const (
	Level4  Level = 4
	Level8  Level = 8
	Level16 Level = 16
	Level20 Level = 20

	DefaultLevel = Level8
)

// ValidLevels lists every level the tile service serves
var ValidLevels = []Level{Level4, Level8, Level16, Level20}

// ParseLevel parses "4", "8", "16" or "20"
func ParseLevel(s string) (Level, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperr.New(apperr.KindConfig, "Invalid level, use 4, 8, 16 or 20")
	}
	return NewLevel(n)
}

// NewLevel validates n as a level
func NewLevel(n int) (Level, error) {
	l := Level(n)
	if !l.Valid() {
		return 0, apperr.New(apperr.KindConfig, "Invalid level, use 4, 8, 16 or 20")
	}
	return l, nil
}

// Valid reports whether l is one of the supported levels
func (l Level) Valid() bool {
	for _, v := range ValidLevels {
		if l == v {
			return true
		}
	}
	return false
}

// Int returns the level as a tile count
func (l Level) Int() int {
	return int(l)
}

// GridWidth returns the pixel width of the tile grid without margins
func (l Level) GridWidth() int {
	return int(l) * TileWidth
}

func (l Level) String() string {
	return strconv.Itoa(int(l))
}
