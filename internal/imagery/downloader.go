package imagery

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/common"
)

// DefaultWorkers is the number of concurrent tile fetches
const DefaultWorkers = 8

// TileFetchFunc fetches and decodes one tile. It must not panic and must
// report every failure through the returned result.
type TileFetchFunc func(ctx context.Context, tile common.TileCoord) common.TileDownloadResult

// TileDownloader fetches a set of tiles with a bounded worker pool
type TileDownloader struct {
	workers int
	logger  *slog.Logger
}

// NewTileDownloader creates a new tile downloader
func NewTileDownloader(workers int, logger *slog.Logger) *TileDownloader {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TileDownloader{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the configured pool size
func (d *TileDownloader) Workers() int {
	return d.workers
}

// DownloadAll fetches every tile and returns exactly one result per tile, in
// completion order. A failing tile never cancels its siblings. Tiles that could
// not be started because ctx ended are reported as transport failures.
func (d *TileDownloader) DownloadAll(
	ctx context.Context,
	tiles []common.TileCoord,
	fetch TileFetchFunc,
	onProgress func(current, total int),
) []common.TileDownloadResult {
	total := len(tiles)
	if total == 0 {
		return nil
	}

	// Determine worker count (min of workers setting and total tiles)
	workerCount := min(d.workers, total)
	sem := semaphore.NewWeighted(int64(workerCount))

	tileChan := make(chan common.TileCoord, total)
	resultChan := make(chan common.TileDownloadResult, total)
	var done int64

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tile := range tileChan {
				var result common.TileDownloadResult
				if err := sem.Acquire(ctx, 1); err != nil {
					result = common.TileDownloadResult{
						Tile:  tile,
						Error: apperr.TileFetch(apperr.FailureTransport, "tile "+tile.String()+" not started", err),
					}
				} else {
					result = fetch(ctx, tile)
					result.Tile = tile
					sem.Release(1)
				}

				if result.Success() {
					d.logger.Debug("tile fetched", "tile", tile.String(), "cached", result.Cached)
				} else {
					d.logger.Warn("tile failed, leaving a hole",
						"tile", tile.String(),
						"tile_failure", apperr.FailureOf(result.Error).String(),
						"error", result.Error)
				}

				resultChan <- result
				count := atomic.AddInt64(&done, 1)
				if onProgress != nil {
					onProgress(int(count), total)
				}
			}
		}()
	}

	// Send tiles to workers
	for _, tile := range tiles {
		tileChan <- tile
	}
	close(tileChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]common.TileDownloadResult, 0, total)
	for result := range resultChan {
		results = append(results, result)
	}
	return results
}
