package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/common"
	"himawari-desktop/internal/telemetry"
	"himawari-desktop/internal/video"
)

// ExportTimelapse builds a timelapse from the images saved since the given time.
// An empty outputPath names the file after the covered range inside the output directory.
func (a *App) ExportTimelapse(ctx context.Context, opts video.Options, since time.Time, outputPath string) (string, error) {
	settings, _ := a.GetSettings()

	frames, err := video.FindFrames(settings.OutputDir, since)
	if err != nil {
		return "", apperr.Wrap(apperr.KindDirectory, "failed to list saved images", err)
	}
	if len(frames) == 0 {
		return "", apperr.New(apperr.KindConfig, fmt.Sprintf("no saved images in %s since %s", settings.OutputDir, common.FormatDisplay(since)))
	}

	if outputPath == "" {
		outputPath = filepath.Join(settings.OutputDir, fmt.Sprintf("%s_timelapse_%s_%s.%s",
			common.ProviderHimawari,
			common.FormatFilenameDate(frames[0].Time),
			common.FormatFilenameDate(frames[len(frames)-1].Time),
			opts.Format))
	}

	exporter, err := video.NewExporter(opts, a.logger)
	if err != nil {
		return "", err
	}
	defer exporter.Close()
	exporter.SetProgressCallback(func(current, total int) {
		a.logger.Debug("rendered frame", "frame", current, "frames", total)
	})

	a.logger.Info("exporting timelapse", "frames", len(frames), "format", string(opts.Format), "size", opts.Size)
	start := time.Now()
	if err := exporter.Export(ctx, frames, outputPath); err != nil {
		return "", err
	}

	a.tracker.Track(telemetry.EventTimelapse, map[string]interface{}{
		"frames":      len(frames),
		"format":      string(opts.Format),
		"size":        opts.Size,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return outputPath, nil
}
