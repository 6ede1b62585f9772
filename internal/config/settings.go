package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/cache"
	"himawari-desktop/internal/common"
	"himawari-desktop/internal/himawari"
	"himawari-desktop/internal/imagery"
)

// DefaultWatchSchedule fires shortly after each 10-minute full-disk scan is published
const DefaultWatchSchedule = "2-59/10 * * * *"

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Output settings
	OutputDir       string              `json:"outputDir"`
	OutputFormat    common.OutputFormat `json:"outputFormat"`
	JPEGQuality     int                 `json:"jpegQuality"`
	Level           common.Level        `json:"level"`
	Margins         common.Margins      `json:"margins"`
	StoreLatestOnly bool                `json:"storeLatestOnly"`
	SetWallpaper    bool                `json:"setWallpaper"`

	// Network settings
	BaseURL            string `json:"baseURL"`
	Workers            int    `json:"workers"`
	TileTimeoutSeconds int    `json:"tileTimeoutSeconds"`

	// Cache settings
	Cache cache.Config `json:"cache"`

	// Watch mode
	WatchSchedule string `json:"watchSchedule"`

	// Anonymous usage statistics
	Telemetry bool   `json:"telemetry"`
	InstallID string `json:"installId"`
}

// DefaultOutputDir returns ~/Pictures/Himawari
func DefaultOutputDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, "Pictures", "Himawari")
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	return &UserSettings{
		OutputDir:          DefaultOutputDir(),
		OutputFormat:       common.DefaultOutputFormat,
		JPEGQuality:        imagery.DefaultJPEGQuality,
		Level:              common.DefaultLevel,
		BaseURL:            himawari.DefaultBaseURL,
		Workers:            imagery.DefaultWorkers,
		TileTimeoutSeconds: int(himawari.DefaultTileTimeout / time.Second),
		Cache:              *cache.DefaultConfig(),
		WatchSchedule:      DefaultWatchSchedule,
		Telemetry:          true,
		InstallID:          uuid.NewString(),
	}
}

// TileTimeout returns the per-tile timeout as a duration
func (s *UserSettings) TileTimeout() time.Duration {
	return time.Duration(s.TileTimeoutSeconds) * time.Second
}

// Validate rejects settings that would fail a run before any network use
func (s *UserSettings) Validate() error {
	if s.OutputDir == "" {
		return apperr.New(apperr.KindConfig, "output directory is required")
	}
	if _, err := common.ParseOutputFormat(string(s.OutputFormat)); err != nil {
		return err
	}
	if !s.Level.Valid() {
		return apperr.New(apperr.KindConfig, "Invalid level, use 4, 8, 16 or 20")
	}
	if err := s.Margins.Validate(); err != nil {
		return err
	}
	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		return apperr.New(apperr.KindConfig, fmt.Sprintf("jpeg quality %d out of range [1, 100]", s.JPEGQuality))
	}
	if s.Workers < 1 {
		return apperr.New(apperr.KindConfig, fmt.Sprintf("workers must be at least 1, got %d", s.Workers))
	}
	if s.TileTimeoutSeconds < 1 {
		return apperr.New(apperr.KindConfig, "tile timeout must be at least one second")
	}
	if !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
		return apperr.New(apperr.KindConfig, fmt.Sprintf("base URL %q must be http or https", s.BaseURL))
	}
	if s.WatchSchedule != "" {
		if _, err := cron.ParseStandard(s.WatchSchedule); err != nil {
			return apperr.Wrap(apperr.KindConfig, fmt.Sprintf("invalid watch schedule %q", s.WatchSchedule), err)
		}
	}
	return nil
}

// GetSettingsPath returns the settings file path: ~/.himawari-desktop/settings/settings.json
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".himawari-desktop", "settings", "settings.json")
}

// LoadSettingsFrom loads user settings from disk, filling unset fields with defaults
func LoadSettingsFrom(settingsPath string) (*UserSettings, error) {
	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	}
	if settings.OutputFormat == "" {
		settings.OutputFormat = defaults.OutputFormat
	}
	if settings.JPEGQuality == 0 {
		settings.JPEGQuality = defaults.JPEGQuality
	}
	if settings.Level == 0 {
		settings.Level = defaults.Level
	}
	if settings.BaseURL == "" {
		settings.BaseURL = defaults.BaseURL
	}
	if settings.Workers == 0 {
		settings.Workers = defaults.Workers
	}
	if settings.TileTimeoutSeconds == 0 {
		settings.TileTimeoutSeconds = defaults.TileTimeoutSeconds
	}
	if settings.Cache.MaxSizeMB == 0 {
		settings.Cache.MaxSizeMB = defaults.Cache.MaxSizeMB
	}
	if settings.Cache.TTLDays == 0 {
		settings.Cache.TTLDays = defaults.Cache.TTLDays
	}
	if settings.WatchSchedule == "" {
		settings.WatchSchedule = defaults.WatchSchedule
	}
	if settings.InstallID == "" {
		settings.InstallID = defaults.InstallID
	}

	return &settings, nil
}

// SaveSettingsTo saves user settings to disk
func SaveSettingsTo(settingsPath string, settings *UserSettings) error {
	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tempPath := settingsPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tempPath, settingsPath); err != nil {
		return fmt.Errorf("failed to rename settings file: %w", err)
	}

	return nil
}
