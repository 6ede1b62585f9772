package wallpaper

import (
	"log/slog"
	"os/exec"
	"path/filepath"

	"himawari-desktop/internal/apperr"
)

// UnsupportedMessage is logged when the platform has no wallpaper integration
const UnsupportedMessage = "Setting the wallpaper is not supported on this platform"

// Setter sets the desktop background to an image file
type Setter interface {
	Set(imagePath string) error
}

// New returns the setter for the running platform
func New(logger *slog.Logger) Setter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return newPlatformSetter(logger)
}

// unsupported succeeds without doing anything beyond a warning
type unsupported struct {
	logger *slog.Logger
}

func (u unsupported) Set(string) error {
	u.logger.Warn(UnsupportedMessage)
	return nil
}

type commandRunner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

func absPath(imagePath string) (string, error) {
	p, err := filepath.Abs(imagePath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindPlatform, "failed to resolve wallpaper path", err)
	}
	return p, nil
}
