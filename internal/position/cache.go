// Package position tracks the (section, page) reading cursor, per-page read
// status, and their persistence.
package position

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const cacheFileName = "positions.json"

func cacheKey(bookID string) string {
	return "reader-last-pos-" + bookID
}

// CachedPosition is the persisted cursor for one book. LastSentence is a
// best-effort narration cursor; -1 when unset.
type CachedPosition struct {
	SectionIndex int `json:"sectionIndex"`
	PageIndex    int `json:"pageIndex"`
	LastSentence int `json:"lastSentence"`
}

// Cache persists reading positions as a JSON map under the state directory.
type Cache struct {
	path string
	data map[string]CachedPosition
	mu   sync.RWMutex
}

// OpenCache creates or loads the position cache from
// XDG_STATE_HOME/readfluent.
func OpenCache() (*Cache, error) {
	dir := stateDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	c := &Cache{
		path: filepath.Join(dir, cacheFileName),
		data: make(map[string]CachedPosition),
	}
	if err := c.load(); err != nil {
		// Non-fatal - start with empty state
		c.data = make(map[string]CachedPosition)
	}
	return c, nil
}

// stateDir returns XDG_STATE_HOME/readfluent or ~/.local/state/readfluent
func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "readfluent")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "readfluent")
}

// Get returns the cached position for a book and whether one was found.
func (c *Cache) Get(bookID string) (CachedPosition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.data[cacheKey(bookID)]
	return pos, ok
}

// Set saves the position for a book.
func (c *Cache) Set(bookID string, pos CachedPosition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[cacheKey(bookID)] = pos
	return c.save()
}

// Clear removes the saved position for a book.
func (c *Cache) Clear(bookID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, cacheKey(bookID))
	return c.save()
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &c.data)
}

func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}
