//go:build !windows && !darwin && !linux

package wallpaper

import "log/slog"

func newPlatformSetter(logger *slog.Logger) Setter {
	return unsupported{logger: logger}
}
