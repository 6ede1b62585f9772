package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	indexFile = "cache_index.json"

	// index capacity is only a safety net, eviction is driven by maxSize
	maxIndexEntries = 1 << 20
)

// PersistentTileCache provides disk-based caching of raw tile bytes.
// Layout: {baseDir}/{provider}/{level}d/{timestamp}/{x}_{y}.png
type PersistentTileCache struct {
	baseDir  string
	maxSize  int64 // Maximum cache size in bytes
	currSize int64 // guarded by mu
	ttl      time.Duration
	mu       sync.Mutex
	index    *lru.Cache[string, *TileMetadata] // least recently used first
	now      func() time.Time
}

// TileMetadata stores information about a cached tile
type TileMetadata struct {
	Key        string    `json:"key"`
	Provider   string    `json:"provider"`
	Level      int       `json:"level"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Timestamp  string    `json:"timestamp"`
	Size       int64     `json:"size"`
	AccessTime time.Time `json:"accessTime"`
	CreateTime time.Time `json:"createTime"`
}

// NewPersistentTileCache creates a new persistent tile cache
func NewPersistentTileCache(baseDir string, maxSizeMB int, ttlDays int) (*PersistentTileCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &PersistentTileCache{
		baseDir: baseDir,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		ttl:     time.Duration(ttlDays) * 24 * time.Hour,
		now:     time.Now,
	}

	index, err := lru.NewWithEvict[string, *TileMetadata](maxIndexEntries, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache index: %w", err)
	}
	c.index = index

	c.mu.Lock()
	defer c.mu.Unlock()

	// Load metadata index from disk, rebuilding it from the tile files if needed
	if err := c.loadMetadata(); err != nil {
		if err := c.rebuildMetadata(); err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
	}
	c.evictExpiredLocked()
	c.evictOversizeLocked()

	return c, nil
}

// Key builds a cache key from tile coordinates
// Key format: "{provider}:{level}:{x}:{y}:{timestamp}"
func Key(provider string, level, x, y int, timestamp string) string {
	return fmt.Sprintf("%s:%d:%d:%d:%s", provider, level, x, y, timestamp)
}

// Get retrieves a tile from cache
func (c *PersistentTileCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, exists := c.index.Get(key)
	if !exists {
		return nil, false
	}

	if c.expired(meta) {
		c.index.Remove(key)
		return nil, false
	}

	data, err := os.ReadFile(c.buildFilePath(meta))
	if err != nil {
		// File missing - remove from index
		c.index.Remove(key)
		return nil, false
	}

	meta.AccessTime = c.now()
	return data, true
}

// Set stores a tile in cache
func (c *PersistentTileCache) Set(provider string, level, x, y int, timestamp string, data []byte) error {
	now := c.now()
	meta := &TileMetadata{
		Key:        Key(provider, level, x, y, timestamp),
		Provider:   provider,
		Level:      level,
		X:          x,
		Y:          y,
		Timestamp:  timestamp,
		Size:       int64(len(data)),
		AccessTime: now,
		CreateTime: now,
	}

	filePath := c.buildFilePath(meta)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Drop the old entry first so its size is released and the file is rewritten below
	c.index.Remove(meta.Key)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.index.Add(meta.Key, meta)
	c.currSize += meta.Size
	c.evictOversizeLocked()

	return nil
}

// onEvict runs under c.mu whenever an entry leaves the index
func (c *PersistentTileCache) onEvict(_ string, meta *TileMetadata) {
	os.Remove(c.buildFilePath(meta))
	c.currSize -= meta.Size
}

func (c *PersistentTileCache) expired(meta *TileMetadata) bool {
	return c.ttl > 0 && c.now().Sub(meta.CreateTime) > c.ttl
}

// buildFilePath creates the file path for a tile
func (c *PersistentTileCache) buildFilePath(meta *TileMetadata) string {
	return filepath.Join(c.baseDir, meta.Provider, fmt.Sprintf("%dd", meta.Level),
		meta.Timestamp, fmt.Sprintf("%d_%d.png", meta.X, meta.Y))
}

// evictOversizeLocked removes least recently used tiles until the cache fits
func (c *PersistentTileCache) evictOversizeLocked() {
	if c.maxSize <= 0 || c.currSize <= c.maxSize {
		return
	}

	// Target size: 80% of max to avoid thrashing
	targetSize := c.maxSize * 8 / 10
	for c.currSize > targetSize {
		if _, _, ok := c.index.RemoveOldest(); !ok {
			break
		}
	}
}

// evictExpiredLocked removes tiles that exceed TTL
func (c *PersistentTileCache) evictExpiredLocked() {
	if c.ttl <= 0 {
		return
	}
	for _, key := range c.index.Keys() {
		if meta, ok := c.index.Peek(key); ok && c.expired(meta) {
			c.index.Remove(key)
		}
	}
}

// loadMetadata loads the metadata index from disk, oldest access first
func (c *PersistentTileCache) loadMetadata() error {
	data, err := os.ReadFile(filepath.Join(c.baseDir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("metadata file not found")
		}
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var entries []*TileMetadata
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}

	for _, meta := range entries {
		if _, err := os.Stat(c.buildFilePath(meta)); err != nil {
			continue
		}
		c.index.Add(meta.Key, meta)
		c.currSize += meta.Size
	}
	return nil
}

// saveMetadataLocked writes the index to disk, oldest access first
func (c *PersistentTileCache) saveMetadataLocked() error {
	metaPath := filepath.Join(c.baseDir, indexFile)

	data, err := json.MarshalIndent(c.index.Values(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// Write to temp file first, then rename (atomic operation)
	tempPath := metaPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := os.Rename(tempPath, metaPath); err != nil {
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}

	return nil
}

// rebuildMetadata rebuilds the index by scanning the cache directory
func (c *PersistentTileCache) rebuildMetadata() error {
	c.index.Purge()
	c.currSize = 0

	err := filepath.Walk(c.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Ext(path) != ".png" {
			return nil
		}

		// Parse path: {provider}/{level}d/{timestamp}/{x}_{y}.png
		relPath, _ := filepath.Rel(c.baseDir, path)
		parts := strings.Split(relPath, string(os.PathSeparator))
		if len(parts) != 4 {
			return nil // Invalid path structure
		}

		var level, x, y int
		if _, err := fmt.Sscanf(parts[1], "%dd", &level); err != nil {
			return nil
		}
		if _, err := fmt.Sscanf(parts[3], "%d_%d.png", &x, &y); err != nil {
			return nil
		}

		meta := &TileMetadata{
			Key:        Key(parts[0], level, x, y, parts[2]),
			Provider:   parts[0],
			Level:      level,
			X:          x,
			Y:          y,
			Timestamp:  parts[2],
			Size:       info.Size(),
			AccessTime: info.ModTime(),
			CreateTime: info.ModTime(),
		}
		c.index.Add(meta.Key, meta)
		c.currSize += meta.Size
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan cache directory: %w", err)
	}

	return c.saveMetadataLocked()
}

// Flush persists the metadata index
func (c *PersistentTileCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveMetadataLocked()
}

// Stats returns cache statistics
func (c *PersistentTileCache) Stats() (entries int, sizeBytes int64, maxBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Len(), c.currSize, c.maxSize
}

// Clear removes all cached tiles
func (c *PersistentTileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index.Purge()
	c.currSize = 0

	return c.saveMetadataLocked()
}

// GetCachePath returns the base directory of the cache
func (c *PersistentTileCache) GetCachePath() string {
	return c.baseDir
}
