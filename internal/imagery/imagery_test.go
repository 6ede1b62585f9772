package imagery

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"golang.org/x/image/tiff"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/common"
	"himawari-desktop/internal/himawari"
)

func solidTile(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, common.TileWidth, common.TileWidth))
	for y := 0; y < common.TileWidth; y++ {
		for x := 0; x < common.TileWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func tileColor(t common.TileCoord) color.RGBA {
	return color.RGBA{R: uint8(40 + t.X*50), G: uint8(40 + t.Y*50), B: 200, A: 255}
}

func TestCanvasSize(t *testing.T) {
	tests := []struct {
		level      common.Level
		margins    common.Margins
		wantWidth  int
		wantHeight int
	}{
		{common.Level4, common.Margins{}, 2200, 2200},
		{common.Level8, common.Margins{}, 4400, 4400},
		{common.Level4, common.Margins{Top: 5, Right: 10, Bottom: 15, Left: 5}, 2215, 2220},
		{common.Level20, common.Margins{Left: 1}, 11001, 11000},
	}

	for _, tt := range tests {
		t.Run(tt.level.String()+"/"+tt.margins.String(), func(t *testing.T) {
			w, h := CanvasSize(tt.level, tt.margins)
			if w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("CanvasSize() = %dx%d, want %dx%d", w, h, tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestPlaceOutOfBoundsPanics(t *testing.T) {
	canvas := NewCanvas(common.Level4, common.Margins{})
	defer func() {
		if recover() == nil {
			t.Error("Place() outside the canvas should panic")
		}
	}()
	Place(canvas, solidTile(color.RGBA{A: 255}), image.Pt(2000, 0))
}

func TestComposeOrderIndependent(t *testing.T) {
	m := common.Margins{Top: 3, Right: 1, Bottom: 2, Left: 4}
	tiles := himawari.Plan(common.Level4)

	results := make([]common.TileDownloadResult, len(tiles))
	for i, tile := range tiles {
		results[i] = common.TileDownloadResult{Tile: tile, Image: solidTile(tileColor(tile))}
	}

	first := NewCanvas(common.Level4, m)
	if placed := Compose(first, results, m); placed != len(tiles) {
		t.Fatalf("Compose() placed %d tiles, want %d", placed, len(tiles))
	}

	shuffled := append([]common.TileDownloadResult(nil), results...)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	second := NewCanvas(common.Level4, m)
	Compose(second, shuffled, m)

	for i := range first.Pix {
		if first.Pix[i] != second.Pix[i] {
			t.Fatalf("canvases differ at byte %d", i)
		}
	}

	for _, tile := range tiles {
		p := himawari.Offset(tile, m)
		if got := first.RGBAAt(p.X, p.Y); got != tileColor(tile) {
			t.Errorf("tile %s top-left = %v, want %v", tile, got, tileColor(tile))
		}
	}
	// Margin pixels stay zero
	if got := first.RGBAAt(0, 0); got != (color.RGBA{}) {
		t.Errorf("margin pixel = %v, want zero", got)
	}
}

func TestComposeLeavesHoles(t *testing.T) {
	m := common.Margins{}
	tiles := himawari.Plan(common.Level4)
	hole := common.TileCoord{X: 2, Y: 1}

	results := make([]common.TileDownloadResult, 0, len(tiles))
	for _, tile := range tiles {
		if tile == hole {
			results = append(results, common.TileDownloadResult{
				Tile:  tile,
				Error: apperr.TileFetch(apperr.FailureStatus, "tile request failed", errors.New("status: 404")),
			})
			continue
		}
		results = append(results, common.TileDownloadResult{Tile: tile, Image: solidTile(tileColor(tile))})
	}

	canvas := NewCanvas(common.Level4, m)
	if placed := Compose(canvas, results, m); placed != len(tiles)-1 {
		t.Fatalf("Compose() placed %d tiles, want %d", placed, len(tiles)-1)
	}

	r := himawari.TileRect(hole, m)
	for _, p := range []image.Point{r.Min, r.Max.Sub(image.Pt(1, 1)), r.Min.Add(image.Pt(275, 275))} {
		if got := canvas.RGBAAt(p.X, p.Y); got != (color.RGBA{}) {
			t.Errorf("hole pixel %v = %v, want zero", p, got)
		}
	}
}

func sizedTile(size int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestComposeWrongSizeTiles(t *testing.T) {
	m := common.Margins{}
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	tests := []struct {
		name    string
		results []common.TileDownloadResult
		placed  int
	}{
		{
			name: "oversized before neighbour",
			results: []common.TileDownloadResult{
				{Tile: common.TileCoord{X: 0, Y: 0}, Image: sizedTile(560, red)},
				{Tile: common.TileCoord{X: 1, Y: 0}, Image: solidTile(blue)},
			},
			placed: 2,
		},
		{
			name: "oversized after neighbour",
			results: []common.TileDownloadResult{
				{Tile: common.TileCoord{X: 1, Y: 0}, Image: solidTile(blue)},
				{Tile: common.TileCoord{X: 0, Y: 0}, Image: sizedTile(560, red)},
			},
			placed: 2,
		},
		{
			name: "oversized in last column",
			results: []common.TileDownloadResult{
				{Tile: common.TileCoord{X: 3, Y: 0}, Image: sizedTile(600, red)},
				{Tile: common.TileCoord{X: 1, Y: 0}, Image: solidTile(blue)},
			},
			placed: 2,
		},
		{
			name: "undersized is a hole",
			results: []common.TileDownloadResult{
				{Tile: common.TileCoord{X: 0, Y: 0}, Image: sizedTile(500, red)},
				{Tile: common.TileCoord{X: 1, Y: 0}, Image: solidTile(blue)},
			},
			placed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canvas := NewCanvas(common.Level4, m)
			if placed := Compose(canvas, tt.results, m); placed != tt.placed {
				t.Errorf("Compose() placed %d tiles, want %d", placed, tt.placed)
			}
			if got := canvas.RGBAAt(555, 10); got != blue {
				t.Errorf("neighbour pixel = %v, want %v", got, blue)
			}
			if got := canvas.RGBAAt(10, 555); got != (color.RGBA{}) {
				t.Errorf("pixel below tile (0,0) = %v, want zero", got)
			}
		})
	}
}

func TestDownloadAll(t *testing.T) {
	tiles := himawari.Plan(common.Level8)
	failing := common.TileCoord{X: 7, Y: 0}

	var inFlight, maxInFlight int64
	fetch := func(ctx context.Context, tile common.TileCoord) common.TileDownloadResult {
		n := atomic.AddInt64(&inFlight, 1)
		defer atomic.AddInt64(&inFlight, -1)
		for {
			m := atomic.LoadInt64(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt64(&maxInFlight, m, n) {
				break
			}
		}
		if tile == failing {
			return common.TileDownloadResult{Error: apperr.TileFetch(apperr.FailureTransport, "boom", errors.New("reset"))}
		}
		return common.TileDownloadResult{Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}
	}

	var progressCalls int64
	d := NewTileDownloader(3, nil)
	results := d.DownloadAll(context.Background(), tiles, fetch, func(current, total int) {
		if total != len(tiles) {
			t.Errorf("progress total = %d", total)
		}
		if current < 1 || current > total {
			t.Errorf("progress current = %d", current)
		}
		atomic.AddInt64(&progressCalls, 1)
	})

	if len(results) != len(tiles) {
		t.Fatalf("got %d results, want %d", len(results), len(tiles))
	}
	seen := make(map[common.TileCoord]bool)
	failures := 0
	for _, r := range results {
		if seen[r.Tile] {
			t.Errorf("duplicate result for %s", r.Tile)
		}
		seen[r.Tile] = true
		if !r.Success() {
			failures++
			if r.Tile != failing {
				t.Errorf("unexpected failure for %s", r.Tile)
			}
		}
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
	if maxInFlight > 3 {
		t.Errorf("max concurrent fetches = %d, want <= 3", maxInFlight)
	}
	if progressCalls != int64(len(tiles)) {
		t.Errorf("progress reported %d times, want %d", progressCalls, len(tiles))
	}
}

func TestDownloadAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tiles := himawari.Plan(common.Level4)
	results := NewTileDownloader(2, nil).DownloadAll(ctx, tiles, func(context.Context, common.TileCoord) common.TileDownloadResult {
		t.Error("fetch should not run after cancellation")
		return common.TileDownloadResult{}
	}, nil)

	if len(results) != len(tiles) {
		t.Fatalf("got %d results, want %d", len(results), len(tiles))
	}
	for _, r := range results {
		if apperr.FailureOf(r.Error) != apperr.FailureTransport {
			t.Errorf("tile %s error = %v, want transport failure", r.Tile, r.Error)
		}
	}
}

func TestSave(t *testing.T) {
	img := solidTile(color.RGBA{R: 10, G: 20, B: 30, A: 255})

	tests := []struct {
		format common.OutputFormat
		decode func(f *os.File) (image.Image, error)
	}{
		{common.FormatJPEG, func(f *os.File) (image.Image, error) { return jpeg.Decode(f) }},
		{common.FormatPNG, func(f *os.File) (image.Image, error) { return png.Decode(f) }},
		{common.FormatTIFF, func(f *os.File) (image.Image, error) { return tiff.Decode(f) }},
		{common.FormatWebP, nil},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "out."+tt.format.Extension())

			if err := Save(img, path, tt.format, 90); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 || entries[0].Name() != filepath.Base(path) {
				t.Errorf("directory contents = %v, want only %s", entries, filepath.Base(path))
			}

			if tt.decode == nil {
				return
			}
			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			got, err := tt.decode(f)
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if got.Bounds() != img.Bounds() {
				t.Errorf("bounds = %v, want %v", got.Bounds(), img.Bounds())
			}
		})
	}
}

func TestSaveUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	err := Save(solidTile(color.RGBA{}), filepath.Join(dir, "out.bmp"), common.OutputFormat("bmp"), 0)
	if !apperr.IsKind(err, apperr.KindConfig) {
		t.Errorf("Save() error = %v, want config error", err)
	}
}

func TestSaveMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.png")
	err := Save(solidTile(color.RGBA{}), path, common.FormatPNG, 0)
	if !apperr.IsKind(err, apperr.KindPersist) {
		t.Errorf("Save() error = %v, want persist error", err)
	}
}
