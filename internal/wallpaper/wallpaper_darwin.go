//go:build darwin

package wallpaper

import (
	"fmt"
	"log/slog"
	"strings"

	"himawari-desktop/internal/apperr"
)

type darwinSetter struct {
	logger *slog.Logger
	run    commandRunner
}

func newPlatformSetter(logger *slog.Logger) Setter {
	return &darwinSetter{logger: logger, run: execRunner}
}

func (s *darwinSetter) Set(imagePath string) error {
	path, err := absPath(imagePath)
	if err != nil {
		return err
	}

	s.logger.Info("setting macOS desktop wallpaper", "path", path)
	script := fmt.Sprintf(`tell application "System Events" to tell every desktop to set picture to %q`, path)
	if out, err := s.run("osascript", "-e", script); err != nil {
		return apperr.Wrap(apperr.KindPlatform, "osascript failed",
			fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))))
	}
	return nil
}
