//go:build linux

package wallpaper

import (
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"

	"himawari-desktop/internal/apperr"
)

const gnomeBackground = "org.gnome.desktop.background"

// linuxSetter drives GNOME-compatible desktops through gsettings
type linuxSetter struct {
	logger   *slog.Logger
	run      commandRunner
	lookPath func(string) (string, error)
}

func newPlatformSetter(logger *slog.Logger) Setter {
	return &linuxSetter{logger: logger, run: execRunner, lookPath: exec.LookPath}
}

func (s *linuxSetter) Set(imagePath string) error {
	if _, err := s.lookPath("gsettings"); err != nil {
		return unsupported{logger: s.logger}.Set(imagePath)
	}

	path, err := absPath(imagePath)
	if err != nil {
		return err
	}
	uri := (&url.URL{Scheme: "file", Path: path}).String()

	s.logger.Info("setting GNOME desktop wallpaper", "path", path)
	keys := [][2]string{
		{"picture-options", "scaled"},
		{"primary-color", "#000000"},
		{"picture-uri", uri},
		{"picture-uri-dark", uri},
	}
	for _, kv := range keys {
		if out, err := s.run("gsettings", "set", gnomeBackground, kv[0], kv[1]); err != nil {
			// picture-uri-dark only exists on GNOME 42+
			if kv[0] == "picture-uri-dark" {
				s.logger.Debug("gsettings key not available", "key", kv[0])
				continue
			}
			return apperr.Wrap(apperr.KindPlatform, "gsettings set "+kv[0]+" failed",
				fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))))
		}
	}
	return nil
}
