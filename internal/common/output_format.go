package common

import (
	"strings"

	"himawari-desktop/internal/apperr"
)

// OutputFormat is the encoding of the saved full-disk image
type OutputFormat string

const (
	FormatJPEG OutputFormat = "jpeg"
	FormatPNG  OutputFormat = "png"
	FormatTIFF OutputFormat = "tiff"
	FormatWebP OutputFormat = "webp"

	DefaultOutputFormat = FormatJPEG
)

// ParseOutputFormat converts a format string to an OutputFormat.
// Accepted values (case-insensitive): "jpeg", "jpg", "png", "tiff", "tif", "webp"
func ParseOutputFormat(format string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", apperr.New(apperr.KindConfig, "Invalid image format, use JPEG, PNG, TIFF or WEBP")
	}
}

// Extension returns the file extension without the leading dot
func (f OutputFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatTIFF:
		return "tiff"
	default:
		return string(f)
	}
}

func (f OutputFormat) String() string {
	return string(f)
}
