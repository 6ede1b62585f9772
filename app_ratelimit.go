package main

import (
	"himawari-desktop/internal/common"
	"himawari-desktop/internal/ratelimit"
)

// Rate limit status

// GetRateLimitStatus returns the current rate limit state for the imagery server
func (a *App) GetRateLimitStatus() *ratelimit.RateLimitEvent {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.GetCurrentState(common.ProviderHimawari)
	}
	return nil
}

// IsRateLimited checks if the imagery server is currently rate limiting us
func (a *App) IsRateLimited() bool {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.IsRateLimited(common.ProviderHimawari)
	}
	return false
}

// onRateLimit reports backoff so a long pause is not mistaken for a hang
func (a *App) onRateLimit(event ratelimit.RateLimitEvent) {
	a.logger.Warn(event.Message,
		"status", event.StatusCode,
		"attempt", event.RetryAttempt,
		"next_retry", event.NextRetryAt.Format("15:04:05"))
}

// Cache management

// CacheStats represents tile cache statistics
type CacheStats struct {
	Enabled   bool    `json:"enabled"`
	Entries   int     `json:"entries"`
	SizeBytes int64   `json:"sizeBytes"`
	MaxBytes  int64   `json:"maxBytes"`
	SizeMB    float64 `json:"sizeMB"`
	MaxMB     float64 `json:"maxMB"`
	CachePath string  `json:"cachePath"`
}

// GetCacheStats returns current cache statistics
func (a *App) GetCacheStats() CacheStats {
	if a.tileCache == nil {
		return CacheStats{CachePath: a.paths.cache}
	}

	entries, sizeBytes, maxBytes := a.tileCache.Stats()

	return CacheStats{
		Enabled:   true,
		Entries:   entries,
		SizeBytes: sizeBytes,
		MaxBytes:  maxBytes,
		SizeMB:    float64(sizeBytes) / 1024 / 1024,
		MaxMB:     float64(maxBytes) / 1024 / 1024,
		CachePath: a.tileCache.GetCachePath(),
	}
}

// ClearCache removes all cached tiles
func (a *App) ClearCache() error {
	if a.tileCache != nil {
		return a.tileCache.Clear()
	}
	return nil
}
