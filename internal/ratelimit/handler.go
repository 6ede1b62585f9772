package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RetryStrategy defines the backoff intervals for rate limit retries
type RetryStrategy struct {
	Intervals  []time.Duration // e.g., [5s, 15s, 30s]
	MaxRetries int
}

// DefaultRetryStrategy returns the default backoff strategy.
// The full-disk service refreshes every 10 minutes, so waits stay well below that.
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			5 * time.Second,
			15 * time.Second,
			30 * time.Second,
			60 * time.Second,
		},
		MaxRetries: 3, // Per request, before the tile is given up as a hole
	}
}

// RateLimitEvent represents a rate limit occurrence
type RateLimitEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	StatusCode   int       `json:"statusCode"`   // HTTP status code (429, 503, 509)
	RetryAttempt int       `json:"retryAttempt"` // 0 = first occurrence
	NextRetryAt  time.Time `json:"nextRetryAt"`
	Message      string    `json:"message"`
}

// Handler tracks rate limiting per provider. All workers fetching from the same
// provider share one backoff window.
type Handler struct {
	mu          sync.RWMutex
	rateLimited map[string]*RateLimitEvent // provider -> current rate limit state
	strategy    *RetryStrategy
	logger      *slog.Logger
	onRateLimit func(event RateLimitEvent)
	now         func() time.Time
}

// NewHandler creates a new rate limit handler
func NewHandler(strategy *RetryStrategy, logger *slog.Logger) *Handler {
	if strategy == nil {
		strategy = DefaultRetryStrategy()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Handler{
		rateLimited: make(map[string]*RateLimitEvent),
		strategy:    strategy,
		logger:      logger,
		now:         time.Now,
	}
}

// SetOnRateLimit sets the callback for rate limit events
func (h *Handler) SetOnRateLimit(callback func(event RateLimitEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRateLimit = callback
}

// MaxRetries returns how often a single request may be retried
func (h *Handler) MaxRetries() int {
	return h.strategy.MaxRetries
}

// IsRateLimited checks if a provider is currently rate limited
func (h *Handler) IsRateLimited(provider string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, limited := h.rateLimited[provider]
	return limited
}

// IsRateLimitStatus reports whether an HTTP status signals throttling
func IsRateLimitStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusServiceUnavailable ||
		code == 509 // Bandwidth Limit Exceeded
}

// CheckResponse analyzes an HTTP response for rate limit indicators
func (h *Handler) CheckResponse(provider string, resp *http.Response) bool {
	if !IsRateLimitStatus(resp.StatusCode) {
		h.checkRecovery(provider)
		return false
	}

	h.recordRateLimit(provider, resp.StatusCode)
	return true
}

// Wait blocks until the provider's current backoff window has passed.
// It returns immediately when the provider is not rate limited.
func (h *Handler) Wait(ctx context.Context, provider string) error {
	h.mu.RLock()
	event, exists := h.rateLimited[provider]
	var until time.Time
	if exists {
		until = event.NextRetryAt
	}
	h.mu.RUnlock()

	if !exists {
		return nil
	}

	wait := until.Sub(h.now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recordRateLimit records a rate limit event and computes the next retry time
func (h *Handler) recordRateLimit(provider string, statusCode int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, exists := h.rateLimited[provider]

	retryAttempt := 0
	if exists {
		retryAttempt = existing.RetryAttempt + 1
	}

	var interval time.Duration
	if retryAttempt < len(h.strategy.Intervals) {
		interval = h.strategy.Intervals[retryAttempt]
	} else if len(h.strategy.Intervals) > 0 {
		// Use last interval for all subsequent retries
		interval = h.strategy.Intervals[len(h.strategy.Intervals)-1]
	}

	now := h.now()
	nextRetryAt := now.Add(interval)

	event := RateLimitEvent{
		Timestamp:    now,
		Provider:     provider,
		StatusCode:   statusCode,
		RetryAttempt: retryAttempt,
		NextRetryAt:  nextRetryAt,
		Message:      buildMessage(provider, statusCode, retryAttempt, interval),
	}

	h.rateLimited[provider] = &event

	h.logger.Warn("rate limited",
		"provider", provider,
		"status", statusCode,
		"attempt", retryAttempt,
		"next_retry", nextRetryAt.Format(time.RFC3339))

	if h.onRateLimit != nil {
		go h.onRateLimit(event)
	}
}

// checkRecovery clears the rate limit state once a request gets through
func (h *Handler) checkRecovery(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rateLimited[provider]; exists {
		delete(h.rateLimited, provider)
		h.logger.Info("rate limit cleared", "provider", provider)
	}
}

// Reset drops any rate limit state for a provider
func (h *Handler) Reset(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rateLimited, provider)
}

// GetCurrentState returns the current rate limit state for a provider
func (h *Handler) GetCurrentState(provider string) *RateLimitEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.rateLimited[provider]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

func buildMessage(provider string, statusCode int, retryAttempt int, wait time.Duration) string {
	if retryAttempt == 0 {
		return fmt.Sprintf("%s rate limit detected (HTTP %d), pausing downloads for %s",
			provider, statusCode, wait)
	}
	return fmt.Sprintf("%s still rate limited (retry attempt %d), next retry in %s",
		provider, retryAttempt+1, wait)
}
