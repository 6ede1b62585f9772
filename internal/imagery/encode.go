package imagery

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/tiff"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/common"
	"himawari-desktop/internal/utils/naming"
)

// DefaultJPEGQuality is used when no quality is configured
const DefaultJPEGQuality = 90

// Encode writes img to w in the given format
func Encode(w io.Writer, img image.Image, format common.OutputFormat, quality int) error {
	switch format {
	case common.FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case common.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode(w, img)
	case common.FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case common.FormatWebP:
		return nativewebp.Encode(w, img, nil)
	default:
		return apperr.New(apperr.KindConfig, fmt.Sprintf("unsupported output format %q", format))
	}
}

// Save encodes img into path. The image is written to a partial file in the
// same directory and renamed into place, so path never holds a truncated image.
func Save(img image.Image, path string, format common.OutputFormat, quality int) (err error) {
	if _, err := common.ParseOutputFormat(string(format)); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tempPath := filepath.Join(dir, naming.GenerateTempFilename(filepath.Base(path)))

	f, err := os.Create(tempPath)
	if err != nil {
		return apperr.Wrap(apperr.KindPersist, "failed to create file", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(f)
	if err = Encode(w, img, format, quality); err != nil {
		return apperr.Wrap(apperr.KindPersist, fmt.Sprintf("failed to encode %s", format), err)
	}
	if err = w.Flush(); err != nil {
		return apperr.Wrap(apperr.KindPersist, "failed to write image", err)
	}
	if err = f.Sync(); err != nil {
		return apperr.Wrap(apperr.KindPersist, "failed to sync image", err)
	}
	if err = f.Close(); err != nil {
		return apperr.Wrap(apperr.KindPersist, "failed to close image", err)
	}
	if err = os.Rename(tempPath, path); err != nil {
		return apperr.Wrap(apperr.KindPersist, "failed to move image into place", err)
	}
	return nil
}
