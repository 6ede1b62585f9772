package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/icza/mjpeg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/utils/naming"
)

// Format is a timelapse container
type Format string

const (
	FormatAVI Format = "avi" // Motion JPEG, plays everywhere
	FormatGIF Format = "gif"
)

// ParseFormat parses "avi" or "gif" (case-insensitive)
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "avi", "mjpeg":
		return FormatAVI, nil
	case "gif":
		return FormatGIF, nil
	default:
		return "", apperr.New(apperr.KindConfig, fmt.Sprintf("unsupported timelapse format %q, use avi or gif", s))
	}
}

// Options contains all options for timelapse export
type Options struct {
	Format  Format
	Size    int // Frames are Size x Size; the disk is letterboxed on black
	FPS     int
	Quality int // JPEG quality of AVI frames

	// Date overlay
	ShowDate   bool
	DateFormat string
	FontSize   float64
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		Format:     FormatAVI,
		Size:       1080,
		FPS:        10,
		Quality:    90,
		ShowDate:   true,
		DateFormat: "2006-01-02 15:04 UTC",
		FontSize:   32,
	}
}

func (o Options) validate() error {
	if _, err := ParseFormat(string(o.Format)); err != nil {
		return err
	}
	if o.Size < 16 || o.Size > 8192 {
		return apperr.New(apperr.KindConfig, fmt.Sprintf("timelapse size %d out of range [16, 8192]", o.Size))
	}
	if o.FPS < 1 || o.FPS > 60 {
		return apperr.New(apperr.KindConfig, fmt.Sprintf("timelapse fps %d out of range [1, 60]", o.FPS))
	}
	if o.Quality < 1 || o.Quality > 100 {
		return apperr.New(apperr.KindConfig, fmt.Sprintf("jpeg quality %d out of range [1, 100]", o.Quality))
	}
	return nil
}

// Exporter turns saved full-disk images into a timelapse
type Exporter struct {
	options    Options
	font       font.Face
	logger     *slog.Logger
	onProgress func(current, total int)
}

// NewExporter creates a new timelapse exporter
func NewExporter(opts Options, logger *slog.Logger) (*Exporter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Exporter{options: opts, logger: logger}
	if opts.ShowDate {
		if err := e.loadFont(); err != nil {
			// Don't fail - continue without date overlay
			logger.Warn("failed to load font, timelapse will have no dates", "error", err)
		}
	}
	return e, nil
}

// SetProgressCallback sets the per-frame progress callback
func (e *Exporter) SetProgressCallback(callback func(current, total int)) {
	e.onProgress = callback
}

// loadFont loads the embedded Go font for the date overlay
func (e *Exporter) loadFont() error {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("failed to parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    e.options.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to create font face: %w", err)
	}

	e.font = face
	return nil
}

// ProcessFrame scales the source onto a square black frame and stamps the date
func (e *Exporter) ProcessFrame(src image.Image, date time.Time) *image.RGBA {
	size := e.options.Size
	output := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(output, output.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	draw.ApproxBiLinear.Scale(output, fitRect(src.Bounds(), size), src, src.Bounds(), draw.Over, nil)

	if e.font != nil {
		e.drawDateOverlay(output, date)
	}
	return output
}

// fitRect centres a rectangle with the source aspect ratio inside a size x size square
func fitRect(src image.Rectangle, size int) image.Rectangle {
	w, h := src.Dx(), src.Dy()
	if w == 0 || h == 0 {
		return image.Rectangle{}
	}

	dw, dh := size, size
	if w > h {
		dh = size * h / w
	} else {
		dw = size * w / h
	}
	x := (size - dw) / 2
	y := (size - dh) / 2
	return image.Rect(x, y, x+dw, y+dh)
}

// drawDateOverlay draws the date in the bottom-right corner with a drop shadow
func (e *Exporter) drawDateOverlay(dst *image.RGBA, date time.Time) {
	dateStr := date.UTC().Format(e.options.DateFormat)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: e.font,
	}
	textWidth := drawer.MeasureString(dateStr).Ceil()

	padding := e.options.Size / 40
	x := e.options.Size - textWidth - padding
	y := e.options.Size - padding

	shadow := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{0, 0, 0, 180}),
		Face: e.font,
		Dot:  fixed.P(x+2, y+2),
	}
	shadow.DrawString(dateStr)

	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(dateStr)
}

// Export writes frames to outputPath. The file only appears once it is complete.
func (e *Exporter) Export(ctx context.Context, frames []Frame, outputPath string) (err error) {
	if len(frames) == 0 {
		return apperr.New(apperr.KindConfig, "no images to build a timelapse from")
	}

	tempPath := filepath.Join(filepath.Dir(outputPath), naming.GenerateTempFilename(filepath.Base(outputPath)))
	defer func() {
		if err != nil {
			os.Remove(tempPath)
		}
	}()

	switch e.options.Format {
	case FormatGIF:
		err = e.exportGIF(ctx, frames, tempPath)
	default:
		err = e.exportMotionJPEG(ctx, frames, tempPath)
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tempPath, outputPath); err != nil {
		return apperr.Wrap(apperr.KindPersist, "failed to move timelapse into place", err)
	}
	e.logger.Info("timelapse exported", "path", outputPath, "frames", len(frames))
	return nil
}

// renderFrame loads and processes one frame, reporting progress
func (e *Exporter) renderFrame(ctx context.Context, frames []Frame, i int) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := loadImage(frames[i].Path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersist, fmt.Sprintf("failed to load frame %d", i), err)
	}
	out := e.ProcessFrame(src, frames[i].Time)

	if e.onProgress != nil {
		e.onProgress(i+1, len(frames))
	}
	return out, nil
}

// exportMotionJPEG creates an AVI file with Motion JPEG codec
func (e *Exporter) exportMotionJPEG(ctx context.Context, frames []Frame, path string) error {
	size := int32(e.options.Size)
	writer, err := mjpeg.New(path, size, size, int32(e.options.FPS))
	if err != nil {
		return apperr.Wrap(apperr.KindPersist, "failed to create video writer", err)
	}

	var buf bytes.Buffer
	for i := range frames {
		frame, err := e.renderFrame(ctx, frames, i)
		if err != nil {
			writer.Close()
			return err
		}

		buf.Reset()
		if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: e.options.Quality}); err != nil {
			writer.Close()
			return apperr.Wrap(apperr.KindPersist, fmt.Sprintf("failed to encode frame %d as JPEG", i), err)
		}
		if err := writer.AddFrame(buf.Bytes()); err != nil {
			writer.Close()
			return apperr.Wrap(apperr.KindPersist, fmt.Sprintf("failed to add frame %d", i), err)
		}
	}

	if err := writer.Close(); err != nil {
		return apperr.Wrap(apperr.KindPersist, "failed to finalize video", err)
	}
	return nil
}

// exportGIF creates an animated GIF
func (e *Exporter) exportGIF(ctx context.Context, frames []Frame, path string) error {
	anim := &gif.GIF{
		Config: image.Config{Width: e.options.Size, Height: e.options.Size},
	}

	// Delay is in 100ths of a second
	delay := max(100/e.options.FPS, 1)

	for i := range frames {
		frame, err := e.renderFrame(ctx, frames, i)
		if err != nil {
			return err
		}

		bounds := frame.Bounds()
		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, bounds, frame, image.Point{})

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	f, err := os.Create(path)
	if err != nil {
		return apperr.Wrap(apperr.KindPersist, "failed to create output file", err)
	}
	w := bufio.NewWriter(f)
	if err := gif.EncodeAll(w, anim); err != nil {
		f.Close()
		return apperr.Wrap(apperr.KindPersist, "failed to encode GIF", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return apperr.Wrap(apperr.KindPersist, "failed to write GIF", err)
	}
	return f.Close()
}

// Close releases resources
func (e *Exporter) Close() error {
	if e.font != nil {
		return e.font.Close()
	}
	return nil
}
