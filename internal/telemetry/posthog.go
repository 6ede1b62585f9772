package telemetry

import (
	"log/slog"
	"runtime"

	"github.com/posthog/posthog-go"
)

// Event names
const (
	EventDownloadComplete = "download_complete"
	EventDownloadSkipped  = "download_skipped"
	EventDownloadFailed   = "download_failed"
	EventWatchStarted     = "watch_started"
	EventTimelapse        = "timelapse_exported"
)

// client is the subset of posthog.Client the tracker uses
type client interface {
	Enqueue(posthog.Message) error
	Close() error
}

// Tracker sends anonymous usage events. A nil or disabled Tracker drops events.
type Tracker struct {
	client     client
	distinctID string
	version    string
	logger     *slog.Logger
}

// New creates a tracker. It returns nil when no key is configured or the user
// opted out, which callers may use like any other tracker.
func New(apiKey, endpoint, installID, version string, enabled bool, logger *slog.Logger) *Tracker {
	if apiKey == "" || !enabled {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
		return nil
	}
	return newTracker(c, installID, version, logger)
}

func newTracker(c client, installID, version string, logger *slog.Logger) *Tracker {
	return &Tracker{
		client:     c,
		distinctID: installID,
		version:    version,
		logger:     logger,
	}
}

// Track enqueues an event with the common version and platform properties
func (t *Tracker) Track(event string, props map[string]interface{}) {
	if t == nil || t.client == nil {
		return
	}

	properties := posthog.NewProperties().
		Set("version", t.version).
		Set("os", runtime.GOOS).
		Set("arch", runtime.GOARCH)
	for k, v := range props {
		properties.Set(k, v)
	}

	if err := t.client.Enqueue(posthog.Capture{
		DistinctId: t.distinctID,
		Event:      event,
		Properties: properties,
	}); err != nil {
		t.logger.Debug("failed to enqueue telemetry event", "event", event, "error", err)
	}
}

// Close flushes pending events
func (t *Tracker) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}
