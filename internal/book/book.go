// Package book defines the book data model and the import pipeline that
// turns EPUB, Markdown and plain-text files into sectioned books.
package book

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const hashBytes = 8192 // first 8KB identifies a file

// Book is an imported book. Sections are fixed at import time; their order
// is significant.
type Book struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Sections   []Section `json:"sections"`
	TotalWords int       `json:"totalWords"`
}

// Section is one chapter/unit of raw text.
type Section struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	WordCount int    `json:"wordCount"`
}

// Load reads a book JSON file.
func Load(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read book: %w", err)
	}
	var b Book
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse book: %w", err)
	}
	if len(b.Sections) == 0 {
		return nil, fmt.Errorf("book %q has no sections", path)
	}
	return &b, nil
}

// Save writes the book as indented JSON.
func (b *Book) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Fingerprint generates a content hash identifying a source file, stable
// across renames.
func Fingerprint(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, hashBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	hash := sha256.Sum256(buf[:n])
	return hex.EncodeToString(hash[:16]), nil
}
