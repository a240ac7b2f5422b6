// Package config loads application settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment does not say otherwise.
const (
	DefaultVoice = "Lucia" // Castilian Spanish
	DefaultRate  = 1.0
)

// Config carries environment-level settings. Per-user reader preferences
// (sentences per page, voice, rate overrides) live in the store instead.
type Config struct {
	DataDir   string // imported books and cached audio
	DBPath    string // sqlite database
	Voice     string // default Polly voice
	PlayerCmd string // external audio player command, empty disables audio
}

// Load reads an optional .env file and the process environment. A missing
// .env is fine; everything has a default.
func Load() (*Config, error) {
	godotenv.Load()

	dataDir := withDefault(os.Getenv("READFLUENT_DATA_DIR"), defaultDataDir())
	return &Config{
		DataDir:   dataDir,
		DBPath:    withDefault(os.Getenv("READFLUENT_DB_PATH"), filepath.Join(dataDir, "readfluent.db")),
		Voice:     withDefault(os.Getenv("READFLUENT_VOICE"), DefaultVoice),
		PlayerCmd: os.Getenv("READFLUENT_PLAYER"),
	}, nil
}

// BooksDir is where imported book JSON files live.
func (c *Config) BooksDir() string {
	return filepath.Join(c.DataDir, "books")
}

// AudioCacheDir is where synthesized sentence audio is kept.
func (c *Config) AudioCacheDir() string {
	return filepath.Join(c.DataDir, "audio")
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// defaultDataDir returns XDG_DATA_HOME/readfluent or ~/.local/share/readfluent
func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "readfluent")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "readfluent")
}
