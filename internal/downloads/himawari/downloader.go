package himawari

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/cache"
	"himawari-desktop/internal/common"
	"himawari-desktop/internal/downloads"
	"himawari-desktop/internal/himawari"
	"himawari-desktop/internal/imagery"
	"himawari-desktop/internal/telemetry"
	"himawari-desktop/internal/utils/naming"
	"himawari-desktop/internal/wallpaper"
)

// OutputTarget describes where and how the composed image is written
type OutputTarget struct {
	Dir             string
	Format          common.OutputFormat
	JPEGQuality     int
	StoreLatestOnly bool
	Force           bool
}

// Options are the per-run settings
type Options struct {
	Level        common.Level
	Margins      common.Margins
	Output       OutputTarget
	SetWallpaper bool
}

// Result summarizes one pipeline run
type Result struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Skipped      bool          `json:"skipped"`
	Tiles        int           `json:"tiles"`
	Holes        int           `json:"holes"`
	Cached       int           `json:"cached"`
	Duration     time.Duration `json:"duration"`
	WallpaperSet bool          `json:"wallpaperSet"`
	WallpaperErr error         `json:"-"`
}

// Downloader runs the fetch, compose and save pipeline for the latest full-disk image
type Downloader struct {
	client           *himawari.Client
	tileCache        *cache.PersistentTileCache
	pool             *imagery.TileDownloader
	wallpaper        wallpaper.Setter
	tracker          *telemetry.Tracker
	logger           *slog.Logger
	progressCallback func(downloads.DownloadProgress)
}

// NewDownloader creates a new Himawari downloader with injected dependencies.
// tileCache, setter and tracker may be nil.
func NewDownloader(
	client *himawari.Client,
	tileCache *cache.PersistentTileCache,
	setter wallpaper.Setter,
	tracker *telemetry.Tracker,
	logger *slog.Logger,
	progressCallback func(downloads.DownloadProgress),
	maxWorkers int,
) *Downloader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Downloader{
		client:           client,
		tileCache:        tileCache,
		pool:             imagery.NewTileDownloader(maxWorkers, logger),
		wallpaper:        setter,
		tracker:          tracker,
		logger:           logger,
		progressCallback: progressCallback,
	}
}

// emitProgress emits download progress if callback is set
func (d *Downloader) emitProgress(progress downloads.DownloadProgress) {
	if d.progressCallback != nil {
		d.progressCallback(progress)
	}
}

func (d *Downloader) emitPhase(phase downloads.Phase, status string) {
	d.emitProgress(downloads.DownloadProgress{Phase: phase, Status: status})
}

// validate rejects option combinations before any network use
func (o Options) validate() error {
	if !o.Level.Valid() {
		return apperr.New(apperr.KindConfig, "Invalid level, use 4, 8, 16 or 20")
	}
	if err := o.Margins.Validate(); err != nil {
		return err
	}
	if _, err := common.ParseOutputFormat(string(o.Output.Format)); err != nil {
		return err
	}
	if o.Output.Dir == "" {
		return apperr.New(apperr.KindConfig, "output directory is required")
	}
	return nil
}

// OutputPath returns where the image for ts is written
func (o Options) OutputPath(ts time.Time) string {
	return filepath.Join(o.Output.Dir, naming.GenerateOutputFilename(ts, o.Output.Format, o.Output.StoreLatestOnly))
}

// DownloadLatest fetches the newest full-disk image, composes it and saves it.
// An existing timestamped file is left alone unless Force is set; the run then
// counts as a success without any tile requests.
func (d *Downloader) DownloadLatest(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	d.emitPhase(downloads.PhaseResolve, "Resolving latest image")
	ts, err := d.client.ResolveLatest(ctx)
	if err != nil {
		return nil, err
	}
	d.logger.Info("latest image", "timestamp", common.FormatDisplay(ts))

	outputPath := opts.OutputPath(ts)
	if err := downloads.ValidateOutputPath(opts.Output.Dir, outputPath); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "invalid output path", err)
	}
	result := &Result{Timestamp: ts, Path: outputPath}

	if !opts.Output.Force && !opts.Output.StoreLatestOnly && fileExists(outputPath) {
		d.logger.Info("image already downloaded, skipping", "path", outputPath)
		result.Skipped = true
		result.Duration = time.Since(start)
		d.emitPhase(downloads.PhaseDone, "Already up to date")
		d.trackEvent(telemetry.EventDownloadSkipped, opts, result)
		return result, nil
	}

	if err := os.MkdirAll(opts.Output.Dir, 0755); err != nil {
		return nil, apperr.Wrap(apperr.KindDirectory, fmt.Sprintf("failed to create output directory %s", opts.Output.Dir), err)
	}

	tiles := himawari.Plan(opts.Level)
	result.Tiles = len(tiles)
	d.logger.Info("downloading tiles",
		"level", opts.Level.String(),
		"tiles", len(tiles),
		"workers", d.pool.Workers())

	results := d.pool.DownloadAll(ctx, tiles, d.fetchTile(opts.Level, ts), func(current, total int) {
		d.emitProgress(downloads.NewProgress(current, total))
	})
	result.Cached = lo.CountBy(results, func(r common.TileDownloadResult) bool {
		return r.Cached && r.Success()
	})

	d.emitPhase(downloads.PhaseCompose, "Composing image")
	canvas := imagery.NewCanvas(opts.Level, opts.Margins)
	placed := imagery.Compose(canvas, results, opts.Margins)
	result.Holes = len(tiles) - placed
	switch {
	case placed == 0:
		d.logger.Warn("no tiles could be fetched, saving an empty image", "tiles", len(tiles))
	case result.Holes > 0:
		d.logger.Warn("image has holes", "holes", result.Holes, "tiles", len(tiles))
	}

	d.emitPhase(downloads.PhasePersist, "Saving image")
	if err := imagery.Save(canvas, outputPath, opts.Output.Format, opts.Output.JPEGQuality); err != nil {
		d.trackEvent(telemetry.EventDownloadFailed, opts, result)
		return nil, err
	}
	d.logger.Info("saved image", "path", outputPath)

	if d.tileCache != nil {
		if err := d.tileCache.Flush(); err != nil {
			d.logger.Warn("failed to persist tile cache index", "error", err)
		}
	}

	if opts.SetWallpaper && d.wallpaper != nil {
		d.emitPhase(downloads.PhaseWallpaper, "Setting wallpaper")
		if err := d.wallpaper.Set(outputPath); err != nil {
			d.logger.Warn("failed to set wallpaper", "error", err)
			result.WallpaperErr = err
		} else {
			result.WallpaperSet = true
		}
	}

	result.Duration = time.Since(start)
	d.emitPhase(downloads.PhaseDone, "Complete")
	d.trackEvent(telemetry.EventDownloadComplete, opts, result)
	return result, nil
}

// fetchTile returns the pool's fetch function for one timestamp. Cached raw bytes
// are used when they decode; fresh bytes are cached only after a successful decode.
func (d *Downloader) fetchTile(level common.Level, ts time.Time) imagery.TileFetchFunc {
	stamp := common.FormatFilenameDate(ts)

	return func(ctx context.Context, tile common.TileCoord) common.TileDownloadResult {
		if d.tileCache != nil {
			key := cache.Key(common.ProviderHimawari, level.Int(), tile.X, tile.Y, stamp)
			if data, found := d.tileCache.Get(key); found {
				if img, err := himawari.DecodeTile(data); err == nil {
					return common.TileDownloadResult{Image: img, Cached: true}
				}
				d.logger.Debug("cached tile is corrupt, refetching", "tile", tile.String())
			}
		}

		data, err := d.client.FetchTileData(ctx, d.client.TileURL(level, ts, tile))
		if err != nil {
			return common.TileDownloadResult{Error: err}
		}
		img, err := himawari.DecodeTile(data)
		if err != nil {
			return common.TileDownloadResult{Error: err}
		}

		if d.tileCache != nil {
			if err := d.tileCache.Set(common.ProviderHimawari, level.Int(), tile.X, tile.Y, stamp, data); err != nil {
				d.logger.Debug("failed to cache tile", "tile", tile.String(), "error", err)
			}
		}
		return common.TileDownloadResult{Image: img}
	}
}

// trackEvent tracks an analytics event if telemetry is enabled
func (d *Downloader) trackEvent(event string, opts Options, result *Result) {
	d.tracker.Track(event, map[string]interface{}{
		"level":             opts.Level.Int(),
		"format":            opts.Output.Format.String(),
		"store_latest_only": opts.Output.StoreLatestOnly,
		"tiles":             result.Tiles,
		"holes":             result.Holes,
		"cached":            result.Cached,
		"duration_ms":       result.Duration.Milliseconds(),
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
