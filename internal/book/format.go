package book

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hughgramel/readfluent/internal/segment"
)

// Format defines a file format importer that yields sectioned text.
type Format interface {
	Name() string
	Extensions() []string
	Sections(filename string) ([]Section, error)
}

var registry []Format

// Register adds a format importer to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// Import turns a source file into a Book, using a registered format or a
// single-section plain text fallback.
func Import(filename string) (*Book, error) {
	id, err := Fingerprint(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", filename, err)
	}

	sections, err := importSections(filename)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no text found in %s", filename)
	}

	total := 0
	for i := range sections {
		sections[i].ID = fmt.Sprintf("s%03d", i)
		sections[i].WordCount = segment.CountWords(sections[i].Content)
		total += sections[i].WordCount
	}

	title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	b := &Book{
		ID:         id,
		Title:      title,
		Sections:   sections,
		TotalWords: total,
	}
	if meta, ok := metadataOf(filename); ok {
		if meta.title != "" {
			b.Title = meta.title
		}
		b.Author = meta.author
	}
	return b, nil
}

func importSections(filename string) ([]Section, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f.Sections(filename)
			}
		}
	}
	return textSections(filename)
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}

type metadata struct {
	title  string
	author string
}

// metadataOf asks the source format for title/author when it can provide
// them (currently EPUB only).
func metadataOf(filename string) (metadata, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range registry {
		mp, ok := f.(metadataProvider)
		if !ok {
			continue
		}
		for _, e := range f.Extensions() {
			if ext == e {
				m, err := mp.Metadata(filename)
				if err != nil {
					return metadata{}, false
				}
				return m, true
			}
		}
	}
	return metadata{}, false
}

type metadataProvider interface {
	Metadata(filename string) (metadata, error)
}
