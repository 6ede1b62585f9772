package config

import (
	"os"
	"path/filepath"
	"testing"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/common"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := LoadSettingsFrom(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("LoadSettingsFrom() error = %v", err)
	}
	if s.Level != common.DefaultLevel || s.OutputFormat != common.FormatJPEG {
		t.Errorf("defaults not applied: %+v", s)
	}
	if s.StoreLatestOnly || s.SetWallpaper {
		t.Error("store-latest-only and set-wallpaper must default to false")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("default settings should validate: %v", err)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	partial := `{"level": 16, "outputFormat": "png", "margins": {"top": 5, "right": 10, "bottom": 15, "left": 5}}`
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettingsFrom(path)
	if err != nil {
		t.Fatalf("LoadSettingsFrom() error = %v", err)
	}
	if s.Level != common.Level16 || s.OutputFormat != common.FormatPNG {
		t.Errorf("explicit values lost: level=%v format=%v", s.Level, s.OutputFormat)
	}
	if s.Margins != (common.Margins{Top: 5, Right: 10, Bottom: 15, Left: 5}) {
		t.Errorf("margins = %+v", s.Margins)
	}
	defaults := DefaultSettings()
	if s.Workers != defaults.Workers || s.JPEGQuality != defaults.JPEGQuality || s.BaseURL != defaults.BaseURL {
		t.Errorf("missing fields not merged: %+v", s)
	}
	if s.InstallID == "" {
		t.Error("install id should be generated")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	s := DefaultSettings()
	s.StoreLatestOnly = true
	s.OutputDir = "/tmp/himawari"

	if err := SaveSettingsTo(path, s); err != nil {
		t.Fatalf("SaveSettingsTo() error = %v", err)
	}
	loaded, err := LoadSettingsFrom(path)
	if err != nil {
		t.Fatalf("LoadSettingsFrom() error = %v", err)
	}
	if !loaded.StoreLatestOnly || loaded.OutputDir != "/tmp/himawari" || loaded.InstallID != s.InstallID {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettingsFrom(path); err == nil {
		t.Error("expected an error for malformed settings")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UserSettings)
	}{
		{"bad level", func(s *UserSettings) { s.Level = 5 }},
		{"bad format", func(s *UserSettings) { s.OutputFormat = "gif" }},
		{"negative margin", func(s *UserSettings) { s.Margins.Left = -1 }},
		{"zero workers", func(s *UserSettings) { s.Workers = 0 }},
		{"quality too high", func(s *UserSettings) { s.JPEGQuality = 101 }},
		{"no timeout", func(s *UserSettings) { s.TileTimeoutSeconds = 0 }},
		{"bad base url", func(s *UserSettings) { s.BaseURL = "ftp://example.com" }},
		{"bad schedule", func(s *UserSettings) { s.WatchSchedule = "every now and then" }},
		{"no output dir", func(s *UserSettings) { s.OutputDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if !apperr.IsKind(err, apperr.KindConfig) {
				t.Errorf("Validate() error = %v, want config error", err)
			}
		})
	}
}
