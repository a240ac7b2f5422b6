package book

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// MarkdownFormat imports Markdown files, one section per top-level header.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

// headerRegex matches markdown headers (# to ######)
var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Sections splits a Markdown file into sections at h1/h2 headers. Deeper
// headers stay inside the surrounding section as ordinary paragraph text.
// A file with no headers yields a single section.
func (f *MarkdownFormat) Sections(filename string) ([]Section, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var sections []Section
	var current *Section
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		if current.Content != "" || current.Title != "" {
			sections = append(sections, *current)
		}
		current = nil
		body = nil
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if match := headerRegex.FindStringSubmatch(line); match != nil && len(match[1]) <= 2 {
			flush()
			current = &Section{Title: strings.TrimSpace(match[2])}
			continue
		}
		if current == nil {
			current = &Section{}
		}
		body = append(body, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

// textSections reads a file as plain text. Form feeds split sections;
// otherwise the whole file is a single section.
func textSections(filename string) ([]Section, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var sections []Section
	for _, chunk := range strings.Split(string(data), "\f") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		sections = append(sections, Section{Content: chunk})
	}
	return sections, nil
}
