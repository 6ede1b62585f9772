package common

import "image"

// TileDownloadResult represents the outcome of fetching a single tile.
// Exactly one of Image and Error is set.
type TileDownloadResult struct {
	// Tile is the grid position the result belongs to
	Tile TileCoord

	// Image is the decoded pixel block
	Image image.Image

	// Error is the fetch or decode failure; the tile becomes a hole
	Error error

	// Cached is true when the raw bytes came from the tile cache
	Cached bool
}

// Success reports whether the tile can be placed on the canvas
func (r TileDownloadResult) Success() bool {
	return r.Error == nil && r.Image != nil
}
