package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c, err := NewPersistentTileCache(t.TempDir(), 10, 1)
	if err != nil {
		t.Fatalf("NewPersistentTileCache() error = %v", err)
	}

	data := []byte("tile-bytes")
	if err := c.Set("himawari8", 4, 1, 2, "20240301_042000", data); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok := c.Get(Key("himawari8", 4, 1, 2, "20240301_042000"))
	if !ok {
		t.Fatal("Get() missed a tile that was just stored")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get() = %q, want %q", got, data)
	}

	if _, ok := c.Get(Key("himawari8", 4, 2, 1, "20240301_042000")); ok {
		t.Error("Get() hit for a tile that was never stored")
	}

	entries, size, _ := c.Stats()
	if entries != 1 || size != int64(len(data)) {
		t.Errorf("Stats() = %d entries, %d bytes", entries, size)
	}
}

func TestPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	c, err := NewPersistentTileCache(dir, 10, 1)
	if err != nil {
		t.Fatalf("NewPersistentTileCache() error = %v", err)
	}
	if err := c.Set("himawari8", 8, 0, 0, "20240301_042000", []byte("a")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	reopened, err := NewPersistentTileCache(dir, 10, 1)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if _, ok := reopened.Get(Key("himawari8", 8, 0, 0, "20240301_042000")); !ok {
		t.Error("tile lost after reopening the cache")
	}
}

func TestRebuildWithoutIndex(t *testing.T) {
	dir := t.TempDir()
	c, err := NewPersistentTileCache(dir, 10, 1)
	if err != nil {
		t.Fatalf("NewPersistentTileCache() error = %v", err)
	}
	if err := c.Set("himawari8", 4, 3, 1, "20240301_042000", []byte("abc")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// No Flush: the index file does not exist and must be rebuilt from the tile files

	reopened, err := NewPersistentTileCache(dir, 10, 1)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	got, ok := reopened.Get(Key("himawari8", 4, 3, 1, "20240301_042000"))
	if !ok || string(got) != "abc" {
		t.Errorf("Get() after rebuild = %q, %v", got, ok)
	}
	if _, err := os.Stat(filepath.Join(dir, indexFile)); err != nil {
		t.Errorf("rebuild should write the index: %v", err)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewPersistentTileCache(t.TempDir(), 1, 1)
	if err != nil {
		t.Fatalf("NewPersistentTileCache() error = %v", err)
	}

	chunk := make([]byte, 400*1024)
	for x := 0; x < 2; x++ {
		if err := c.Set("himawari8", 4, x, 0, "ts", chunk); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	// Touch tile 0 so tile 1 becomes the eviction candidate
	if _, ok := c.Get(Key("himawari8", 4, 0, 0, "ts")); !ok {
		t.Fatal("tile 0 missing")
	}
	if err := c.Set("himawari8", 4, 2, 0, "ts", chunk); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, ok := c.Get(Key("himawari8", 4, 1, 0, "ts")); ok {
		t.Error("least recently used tile should have been evicted")
	}
	if _, ok := c.Get(Key("himawari8", 4, 2, 0, "ts")); !ok {
		t.Error("newest tile should be cached")
	}
	_, size, max := c.Stats()
	if size > max {
		t.Errorf("cache size %d exceeds max %d", size, max)
	}
}

func TestExpiredTilesAreMissed(t *testing.T) {
	c, err := NewPersistentTileCache(t.TempDir(), 10, 1)
	if err != nil {
		t.Fatalf("NewPersistentTileCache() error = %v", err)
	}
	if err := c.Set("himawari8", 4, 0, 0, "ts", []byte("x")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	c.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, ok := c.Get(Key("himawari8", 4, 0, 0, "ts")); ok {
		t.Error("expired tile should not be returned")
	}
	if entries, _, _ := c.Stats(); entries != 0 {
		t.Errorf("entries = %d, want 0", entries)
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	c, err := NewPersistentTileCache(dir, 10, 1)
	if err != nil {
		t.Fatalf("NewPersistentTileCache() error = %v", err)
	}
	if err := c.Set("himawari8", 4, 0, 0, "ts", []byte("x")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if entries, size, _ := c.Stats(); entries != 0 || size != 0 {
		t.Errorf("Stats() after Clear = %d, %d", entries, size)
	}
	if _, err := os.Stat(filepath.Join(dir, "himawari8", "4d", "ts", "0_0.png")); !os.IsNotExist(err) {
		t.Errorf("tile file should be removed, stat err = %v", err)
	}
}
