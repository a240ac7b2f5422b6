// Package store persists reading sessions, word statuses, and preferences
// in a local sqlite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// Word statuses tracked per vocabulary word.
const (
	WordStatusUnknown  = "unknown"
	WordStatusLearning = "learning"
	WordStatusKnown    = "known"
)

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if needed and applies
// migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("empty database path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			book_id    TEXT NOT NULL,
			section_id TEXT NOT NULL,
			word_count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (book_id, section_id)
		);`,
		`CREATE TABLE IF NOT EXISTS words (
			word   TEXT PRIMARY KEY,
			status TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS preferences (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// AddSession records a page-read session. Re-marking the same page just
// refreshes the stored word count.
func (s *Store) AddSession(bookID, sectionID string, wordCount int) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (book_id, section_id, word_count) VALUES (?, ?, ?)
		 ON CONFLICT (book_id, section_id) DO UPDATE SET word_count = excluded.word_count`,
		bookID, sectionID, wordCount,
	)
	return err
}

// RemoveSession deletes the session for one page.
func (s *Store) RemoveSession(bookID, sectionID string) error {
	_, err := s.db.Exec(
		`DELETE FROM sessions WHERE book_id = ? AND section_id = ?`,
		bookID, sectionID,
	)
	return err
}

// TotalWordsRead sums the recorded sessions for a book.
func (s *Store) TotalWordsRead(bookID string) (int, error) {
	var total int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(word_count), 0) FROM sessions WHERE book_id = ?`,
		bookID,
	).Scan(&total)
	return total, err
}

// SectionIDs returns the pages recorded as read for a book.
func (s *Store) SectionIDs(bookID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT section_id FROM sessions WHERE book_id = ? ORDER BY section_id`,
		bookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WordStatus returns the stored status for a word, defaulting to unknown.
func (s *Store) WordStatus(word string) (string, error) {
	var status string
	err := s.db.QueryRow(`SELECT status FROM words WHERE word = ?`, word).Scan(&status)
	if err == sql.ErrNoRows {
		return WordStatusUnknown, nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// SetWordStatus upserts the status of a word.
func (s *Store) SetWordStatus(word, status string) error {
	_, err := s.db.Exec(
		`INSERT INTO words (word, status) VALUES (?, ?)
		 ON CONFLICT (word) DO UPDATE SET status = excluded.status`,
		word, status,
	)
	return err
}

// WordStatuses returns every stored word with its status.
func (s *Store) WordStatuses() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT word, status FROM words`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make(map[string]string)
	for rows.Next() {
		var word, status string
		if err := rows.Scan(&word, &status); err != nil {
			return nil, err
		}
		statuses[word] = status
	}
	return statuses, rows.Err()
}

// Preferences are the user's reader settings.
type Preferences struct {
	SentencesPerPage int
	Voice            string
	Rate             float64
}

// Preference keys.
const (
	prefSentencesPerPage = "sentences_per_page"
	prefVoice            = "voice"
	prefRate             = "rate"
)

// LoadPreferences reads stored preferences, leaving missing fields at the
// caller's defaults.
func (s *Store) LoadPreferences(defaults Preferences) (Preferences, error) {
	rows, err := s.db.Query(`SELECT key, value FROM preferences`)
	if err != nil {
		return defaults, err
	}
	defer rows.Close()

	prefs := defaults
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return defaults, err
		}
		switch key {
		case prefSentencesPerPage:
			if n, err := strconv.Atoi(value); err == nil {
				prefs.SentencesPerPage = n
			}
		case prefVoice:
			prefs.Voice = value
		case prefRate:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				prefs.Rate = f
			}
		}
	}
	return prefs, rows.Err()
}

// SavePreferences writes all preference fields.
func (s *Store) SavePreferences(prefs Preferences) error {
	values := map[string]string{
		prefSentencesPerPage: strconv.Itoa(prefs.SentencesPerPage),
		prefVoice:            prefs.Voice,
		prefRate:             strconv.FormatFloat(prefs.Rate, 'f', -1, 64),
	}
	for key, value := range values {
		_, err := s.db.Exec(
			`INSERT INTO preferences (key, value) VALUES (?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			key, value,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
