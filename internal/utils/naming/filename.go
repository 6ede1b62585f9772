package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"himawari-desktop/internal/common"
)

// LatestStem is the fixed filename stem used when only the latest image is kept
const LatestStem = common.ProviderHimawari + "_latest"

// GenerateOutputFilename creates the output image filename.
// Format: himawari8_{YYYYMMDD}_{HHMMSS}.{ext}, or himawari8_latest.{ext} when storeLatestOnly is set
func GenerateOutputFilename(ts time.Time, format common.OutputFormat, storeLatestOnly bool) string {
	if storeLatestOnly {
		return fmt.Sprintf("%s.%s", LatestStem, format.Extension())
	}
	return fmt.Sprintf("%s_%s.%s", common.ProviderHimawari, common.FormatFilenameDate(ts), format.Extension())
}

// GenerateTempFilename creates the name of the partial file written before an atomic rename
func GenerateTempFilename(final string) string {
	return fmt.Sprintf(".%s.partial", final)
}

// ParseOutputFilename extracts the image time and format from a timestamped
// output filename. Latest-only and foreign files report ok=false.
func ParseOutputFilename(name string) (ts time.Time, format common.OutputFormat, ok bool) {
	ext := filepath.Ext(name)
	stem, found := strings.CutPrefix(strings.TrimSuffix(name, ext), common.ProviderHimawari+"_")
	if !found || ext == "" {
		return time.Time{}, "", false
	}

	format, err := common.ParseOutputFormat(ext[1:])
	if err != nil {
		return time.Time{}, "", false
	}
	ts, err = time.Parse(common.FilenameDate, stem)
	if err != nil {
		return time.Time{}, "", false
	}
	return ts, format, true
}
