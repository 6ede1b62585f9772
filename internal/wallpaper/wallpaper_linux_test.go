//go:build linux

package wallpaper

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"himawari-desktop/internal/apperr"
)

func TestLinuxSetterRunsGsettings(t *testing.T) {
	var calls []string
	s := &linuxSetter{
		logger:   slog.New(slog.DiscardHandler),
		lookPath: func(string) (string, error) { return "/usr/bin/gsettings", nil },
		run: func(name string, args ...string) ([]byte, error) {
			calls = append(calls, name+" "+strings.Join(args, " "))
			return nil, nil
		},
	}

	if err := s.Set("/tmp/himawari8_latest.jpg"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	want := "gsettings set org.gnome.desktop.background picture-uri file:///tmp/himawari8_latest.jpg"
	found := false
	for _, c := range calls {
		if c == want {
			found = true
		}
	}
	if !found {
		t.Errorf("calls = %v, want one of them to be %q", calls, want)
	}
}

func TestLinuxSetterFailureIsPlatformError(t *testing.T) {
	s := &linuxSetter{
		logger:   slog.New(slog.DiscardHandler),
		lookPath: func(string) (string, error) { return "/usr/bin/gsettings", nil },
		run: func(string, ...string) ([]byte, error) {
			return []byte("No such schema"), errors.New("exit status 1")
		},
	}

	err := s.Set("/tmp/a.jpg")
	if !apperr.IsKind(err, apperr.KindPlatform) {
		t.Errorf("Set() error = %v, want platform error", err)
	}
	if apperr.KindOf(err).Fatal() {
		t.Error("platform errors must not be fatal")
	}
}

func TestLinuxSetterWithoutGsettingsIsNoop(t *testing.T) {
	s := &linuxSetter{
		logger:   slog.New(slog.DiscardHandler),
		lookPath: func(string) (string, error) { return "", errors.New("not found") },
		run: func(string, ...string) ([]byte, error) {
			t.Error("no command should run without gsettings")
			return nil, nil
		},
	}
	if err := s.Set("/tmp/a.jpg"); err != nil {
		t.Errorf("Set() error = %v, want nil", err)
	}
}
