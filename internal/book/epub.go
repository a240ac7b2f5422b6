package book

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// extractWorkers bounds concurrent spine-item extraction.
const extractWorkers = 4

// EPUBFormat imports EPUB files, one section per spine item.
type EPUBFormat struct{}

func init() {
	Register(&EPUBFormat{})
}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }

// Sections extracts every spine item's text, preserving spine order.
// Items are parsed concurrently; empty items (covers, image pages) are
// dropped afterwards so section order stays intact.
func (f *EPUBFormat) Sections(filename string) ([]Section, error) {
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}

	rf := rc.Rootfiles[0]
	results := make([]Section, len(rf.Spine.Itemrefs))

	var g errgroup.Group
	g.SetLimit(extractWorkers)
	for i, ref := range rf.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		g.Go(func() error {
			r, err := ref.Item.Open()
			if err != nil {
				return nil // unreadable item, skip
			}
			data, err := io.ReadAll(r)
			r.Close()
			if err != nil {
				return nil
			}
			title, content := parseSectionHTML(string(data))
			if title == "" {
				title = fmt.Sprintf("Section %d", i+1)
			}
			results[i] = Section{Title: title, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var sections []Section
	for _, sec := range results {
		if strings.TrimSpace(sec.Content) != "" {
			sections = append(sections, sec)
		}
	}
	return sections, nil
}

// Metadata reads title and author from the EPUB package document.
func (f *EPUBFormat) Metadata(filename string) (metadata, error) {
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return metadata{}, fmt.Errorf("failed to open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return metadata{}, fmt.Errorf("no rootfiles found in epub")
	}
	rf := rc.Rootfiles[0]
	return metadata{
		title:  strings.TrimSpace(rf.Title),
		author: strings.TrimSpace(rf.Creator),
	}, nil
}

// parseSectionHTML pulls a section title and paragraph-structured text out
// of one XHTML document. Paragraphs are joined with blank lines so sentence
// splitting sees the original paragraph boundaries.
func parseSectionHTML(src string) (title, content string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", flattenHTML(src)
	}

	title = strings.TrimSpace(doc.Find("h1, h2, h3").First().Text())

	var paragraphs []string
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(collapseSpace(sel.Text())); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	if len(paragraphs) == 0 {
		return title, flattenHTML(src)
	}
	return title, strings.Join(paragraphs, "\n\n")
}

// flattenHTML extracts all text from a document with no block structure.
// Fallback for markup that has no paragraph elements.
func flattenHTML(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}

	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out.WriteString(t)
				out.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(out.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
