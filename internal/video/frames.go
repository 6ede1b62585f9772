package video

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"himawari-desktop/internal/utils/naming"
)

// Frame is one saved full-disk image on disk
type Frame struct {
	Path string
	Time time.Time
}

// FindFrames lists the timestamped images in dir taken at or after since,
// oldest first. Latest-only and unrelated files are ignored.
func FindFrames(dir string, since time.Time) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %w", err)
	}

	var frames []Frame
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, _, ok := naming.ParseOutputFilename(entry.Name())
		if !ok || ts.Before(since) {
			continue
		}
		frames = append(frames, Frame{Path: filepath.Join(dir, entry.Name()), Time: ts})
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Time.Before(frames[j].Time)
	})
	return frames, nil
}

// loadImage decodes any format the downloader writes
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
