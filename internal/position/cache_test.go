package position

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCache(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmpDir)

	cache, err := OpenCache()
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}

	bookID := "abcdef1234567890"

	// Get returns not-found for unknown book
	if _, ok := cache.Get(bookID); ok {
		t.Error("expected no cached position for unknown book")
	}

	// Set/Get roundtrip
	want := CachedPosition{SectionIndex: 2, PageIndex: 7, LastSentence: 3}
	if err := cache.Set(bookID, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := cache.Get(bookID)
	if !ok {
		t.Fatal("expected cached position after Set")
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}

	// Clear removes entry
	if err := cache.Clear(bookID); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := cache.Get(bookID); ok {
		t.Error("expected no cached position after Clear")
	}
}

func TestCachePersistence(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmpDir)

	bookID := "abcdef1234567890"

	cache1, err := OpenCache()
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	cache1.Set(bookID, CachedPosition{SectionIndex: 1, PageIndex: 4, LastSentence: -1})

	// New instance should load persisted data
	cache2, err := OpenCache()
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	got, ok := cache2.Get(bookID)
	if !ok {
		t.Fatal("expected persisted position")
	}
	if got.SectionIndex != 1 || got.PageIndex != 4 {
		t.Errorf("Get = %+v, want section 1 page 4", got)
	}
}

func TestCacheCorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmpDir)

	dir := filepath.Join(tmpDir, "readfluent")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, cacheFileName), []byte("{not json"), 0644)

	// Corrupt cache starts empty rather than failing
	cache, err := OpenCache()
	if err != nil {
		t.Fatalf("OpenCache failed on corrupt file: %v", err)
	}
	if _, ok := cache.Get("any"); ok {
		t.Error("expected empty cache after corrupt load")
	}
}
