package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"himawari-desktop/internal/cache"
	"himawari-desktop/internal/config"
	"himawari-desktop/internal/downloads"
	dlhimawari "himawari-desktop/internal/downloads/himawari"
	"himawari-desktop/internal/handlers/imageserver"
	"himawari-desktop/internal/himawari"
	"himawari-desktop/internal/logging"
	"himawari-desktop/internal/ratelimit"
	"himawari-desktop/internal/taskqueue"
	"himawari-desktop/internal/telemetry"
	"himawari-desktop/internal/wallpaper"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// Environment variables that override file locations and telemetry
const (
	envSettingsPath = "HIMAWARI_SETTINGS"
	envCacheDir     = "HIMAWARI_CACHE_DIR"
	envPostHogKey   = "HIMAWARI_POSTHOG_KEY"
)

// appPaths holds the on-disk locations used by the app
type appPaths struct {
	settings string
	cache    string
	history  string
}

// resolvePaths applies environment overrides to the default locations.
// The run history lives next to the settings directory.
func resolvePaths(getenv func(string) string, settingsFlag string) appPaths {
	settingsPath := settingsFlag
	if settingsPath == "" {
		settingsPath = getenv(envSettingsPath)
	}
	if settingsPath == "" {
		settingsPath = config.GetSettingsPath()
	}

	cacheDir := getenv(envCacheDir)
	if cacheDir == "" {
		cacheDir = cache.GetCacheDir()
	}

	return appPaths{
		settings: settingsPath,
		cache:    cacheDir,
		history:  filepath.Join(filepath.Dir(filepath.Dir(settingsPath)), "history"),
	}
}

// App wires the pipeline components together
type App struct {
	settings *config.UserSettings
	paths    appPaths
	logger   *slog.Logger
	mu       sync.Mutex

	// force overwrites an existing image; set per invocation, never persisted
	force bool

	client           *himawari.Client
	rateLimitHandler *ratelimit.Handler
	tileCache        *cache.PersistentTileCache
	downloader       *dlhimawari.Downloader
	tracker          *telemetry.Tracker
	scheduler        *taskqueue.Scheduler
}

// NewApp creates the app from validated settings
func NewApp(settings *config.UserSettings, paths appPaths, getenv func(string) string, logger *slog.Logger, progressOut *os.File) *App {
	a := &App{
		settings: settings,
		paths:    paths,
		logger:   logger,
	}

	a.rateLimitHandler = ratelimit.NewHandler(nil, logger)
	a.rateLimitHandler.SetOnRateLimit(a.onRateLimit)
	a.client = himawari.NewClient(
		himawari.WithBaseURL(settings.BaseURL),
		himawari.WithTileTimeout(settings.TileTimeout()),
		himawari.WithRateLimitHandler(a.rateLimitHandler),
		himawari.WithLogger(logger),
	)

	// Initialize cache with settings
	if settings.Cache.Enabled {
		tileCache, err := cache.NewPersistentTileCache(paths.cache, settings.Cache.MaxSizeMB, settings.Cache.TTLDays)
		if err != nil {
			logger.Warn("failed to initialize tile cache, continuing without it", "error", err)
		} else {
			a.tileCache = tileCache
			logger.Debug("tile cache initialized", "path", paths.cache, "max_mb", settings.Cache.MaxSizeMB)
		}
	}

	key := PostHogKey
	if key == "" {
		key = getenv(envPostHogKey)
	}
	a.tracker = telemetry.New(key, PostHogHost, settings.InstallID, AppVersion, settings.Telemetry, logger)

	var onProgress func(downloads.DownloadProgress)
	if progressOut != nil && logging.IsTerminal(progressOut) {
		onProgress = progressPrinter(progressOut)
	}

	a.downloader = dlhimawari.NewDownloader(
		a.client,
		a.tileCache,
		wallpaper.New(logger),
		a.tracker,
		logger,
		onProgress,
		settings.Workers,
	)
	a.scheduler = taskqueue.NewScheduler(paths.history, a, logger)

	return a
}

// SetForce sets whether an existing image is overwritten
func (a *App) SetForce(force bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.force = force
}

// runOptions builds the pipeline options from the current settings
func (a *App) runOptions() dlhimawari.Options {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.settings
	return dlhimawari.Options{
		Level:   s.Level,
		Margins: s.Margins,
		Output: dlhimawari.OutputTarget{
			Dir:             s.OutputDir,
			Format:          s.OutputFormat,
			JPEGQuality:     s.JPEGQuality,
			StoreLatestOnly: s.StoreLatestOnly,
			Force:           a.force,
		},
		SetWallpaper: s.SetWallpaper,
	}
}

// ExecuteRun runs the pipeline once; it implements taskqueue.Executor
func (a *App) ExecuteRun(ctx context.Context) (*taskqueue.RunOutcome, error) {
	res, err := a.downloader.DownloadLatest(ctx, a.runOptions())
	if err != nil {
		return nil, err
	}
	return &taskqueue.RunOutcome{
		ImageTime:  res.Timestamp,
		OutputPath: res.Path,
		Skipped:    res.Skipped,
		Tiles:      res.Tiles,
		Holes:      res.Holes,
		Cached:     res.Cached,
	}, nil
}

// Fetch runs the pipeline once and records it in the history
func (a *App) Fetch(ctx context.Context) (*taskqueue.RunRecord, error) {
	return a.scheduler.RunNow(ctx, taskqueue.TriggerManual)
}

// Watch runs the pipeline now and then on the configured schedule until ctx is done.
// A non-empty serveAddr also exposes the newest image over HTTP while watching.
func (a *App) Watch(ctx context.Context, serveAddr string) error {
	if serveAddr != "" {
		server := imageserver.NewServer(a, a.tileCache, a.logger)
		if err := server.Start(serveAddr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Debug("image server shutdown", "error", err)
			}
		}()
	}

	a.tracker.Track(telemetry.EventWatchStarted, map[string]interface{}{
		"schedule": a.settings.WatchSchedule,
		"serve":    serveAddr != "",
	})
	return a.scheduler.Run(ctx, a.settings.WatchSchedule, true)
}

// History returns recorded runs, newest first
func (a *App) History(limit int) ([]*taskqueue.RunRecord, error) {
	return a.scheduler.History(limit)
}

// Shutdown flushes the cache index and pending telemetry
func (a *App) Shutdown() {
	if a.tileCache != nil {
		if err := a.tileCache.Flush(); err != nil {
			a.logger.Debug("failed to flush tile cache", "error", err)
		}
	}
	if err := a.tracker.Close(); err != nil {
		a.logger.Debug("failed to flush telemetry", "error", err)
	}
}

// progressPrinter redraws a single status line on a terminal. Workers report
// out of order, so stale counts are dropped and the line is ended by the next phase.
func progressPrinter(w io.Writer) func(downloads.DownloadProgress) {
	var (
		mu       sync.Mutex
		last     int
		lineOpen bool
	)
	return func(p downloads.DownloadProgress) {
		mu.Lock()
		defer mu.Unlock()

		if p.Phase != downloads.PhaseFetch {
			if lineOpen {
				fmt.Fprintln(w)
			}
			last, lineOpen = 0, false
			return
		}
		if p.Downloaded <= last {
			return
		}
		last, lineOpen = p.Downloaded, true
		fmt.Fprintf(w, "\r%s (%d%%)", p.Status, p.Percent)
	}
}
