package common

import "fmt"

// TileWidth is the pixel width (and height) of every full-disk tile
const TileWidth = 550

// TileCoord identifies one tile in a level x level grid
type TileCoord struct {
	X int
	Y int
}

func (c TileCoord) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// InGrid reports whether the coordinate lies inside a grid of the given level
func (c TileCoord) InGrid(level Level) bool {
	n := level.Int()
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}
