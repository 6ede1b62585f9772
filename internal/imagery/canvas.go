package imagery

import (
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/samber/lo"

	"himawari-desktop/internal/common"
	"himawari-desktop/internal/himawari"
)

// CanvasSize returns the output dimensions for a level and margins
func CanvasSize(level common.Level, m common.Margins) (width, height int) {
	side := level.GridWidth()
	return side + m.Horizontal(), side + m.Vertical()
}

// NewCanvas allocates a zeroed (black, fully transparent) canvas for a full disk
func NewCanvas(level common.Level, m common.Margins) *image.RGBA {
	w, h := CanvasSize(level, m)
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// Place copies block onto canvas with its top-left pixel at offset.
// Pixels already on the canvas in that region are overwritten.
// The block must fit inside the canvas.
func Place(canvas draw.Image, block image.Image, offset image.Point) {
	src := block.Bounds()
	dst := image.Rectangle{Min: offset, Max: offset.Add(src.Size())}
	if !dst.In(canvas.Bounds()) {
		panic(fmt.Sprintf("imagery: block %v at %v does not fit canvas %v", src.Size(), offset, canvas.Bounds()))
	}
	xdraw.Copy(canvas, offset, block, src, draw.Src, nil)
}

// Compose places every successful tile result at its grid position and
// returns how many tiles were placed. Failed results leave their region untouched.
// A tile only ever writes inside its own TileRect, and a tile that does not
// cover that rect completely counts as a hole.
func Compose(canvas draw.Image, results []common.TileDownloadResult, m common.Margins) int {
	placed := lo.Filter(results, func(r common.TileDownloadResult, _ int) bool {
		return r.Success() && fitsTile(r.Image)
	})
	for _, r := range placed {
		src := r.Image.Bounds()
		block := image.Rectangle{Min: src.Min, Max: src.Min.Add(image.Pt(common.TileWidth, common.TileWidth))}
		Place(canvas, clip(r.Image, block), himawari.Offset(r.Tile, m))
	}
	return len(placed)
}

func fitsTile(img image.Image) bool {
	size := img.Bounds().Size()
	return size.X >= common.TileWidth && size.Y >= common.TileWidth
}

// clip restricts img to r; images without SubImage are drawn through a wrapper
func clip(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r)
	}
	return clippedImage{img, r}
}

type clippedImage struct {
	image.Image
	rect image.Rectangle
}

func (c clippedImage) Bounds() image.Rectangle { return c.rect }
