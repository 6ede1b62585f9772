package himawari

import (
	"fmt"
	"image"
	"strings"
	"time"

	"himawari-desktop/internal/common"
)

// Plan returns every tile coordinate of a level x level grid in row-major order.
// Placement is by coordinate, so callers must not rely on the order.
func Plan(level common.Level) []common.TileCoord {
	n := level.Int()
	tiles := make([]common.TileCoord, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			tiles = append(tiles, common.TileCoord{X: x, Y: y})
		}
	}
	return tiles
}

// TileURL builds the URL of one tile:
// {base}/{level}d/{tileWidth}/{YYYY}/{MM}/{DD}/{HHMMSS}_{x}_{y}.png
func TileURL(base string, level common.Level, tileWidth int, ts time.Time, x, y int) string {
	year, month, day, clock := common.TileDateParts(ts)
	return fmt.Sprintf("%s/%dd/%d/%s/%s/%s/%s_%d_%d.png",
		strings.TrimRight(base, "/"), level.Int(), tileWidth, year, month, day, clock, x, y)
}

// Offset returns the canvas position of a tile's top-left pixel
func Offset(c common.TileCoord, m common.Margins) image.Point {
	return image.Pt(m.Left+c.X*common.TileWidth, m.Top+c.Y*common.TileWidth)
}

// TileRect returns the canvas region covered by a tile. Distinct coordinates
// yield disjoint rectangles.
func TileRect(c common.TileCoord, m common.Margins) image.Rectangle {
	p := Offset(c, m)
	return image.Rect(p.X, p.Y, p.X+common.TileWidth, p.Y+common.TileWidth)
}
