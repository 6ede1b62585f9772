package main

import (
	"himawari-desktop/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings validates and saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := config.SaveSettingsTo(a.paths.settings, settings); err != nil {
		return err
	}

	// Network, cache and worker settings apply on next start
	a.settings = settings
	a.logger.Info("settings saved", "path", a.paths.settings)
	return nil
}

// GetSettingsPath returns the settings file path in use
func (a *App) GetSettingsPath() string {
	return a.paths.settings
}
