// Package paginate groups section sentences into fixed-size pages and
// exposes a flattened, book-wide page numbering.
package paginate

import (
	"github.com/hughgramel/readfluent/internal/book"
	"github.com/hughgramel/readfluent/internal/segment"
)

const (
	// DefaultSentencesPerPage is used when no preference is stored.
	DefaultSentencesPerPage = 50
	MinSentencesPerPage     = 10
	MaxSentencesPerPage     = 200
)

// SectionPages holds one section's pages, each page an ordered slice of
// sentences.
type SectionPages [][]string

// BookPages indexes pages by section, then page.
type BookPages []SectionPages

// Normalize clamps a sentences-per-page setting into the valid range,
// substituting the default for non-positive values.
func Normalize(n int) int {
	if n <= 0 {
		return DefaultSentencesPerPage
	}
	if n < MinSentencesPerPage {
		return MinSentencesPerPage
	}
	if n > MaxSentencesPerPage {
		return MaxSentencesPerPage
	}
	return n
}

// Paginate splits every section into sentences and chunks them into pages of
// at most sentencesPerPage. A section with no sentences produces zero pages,
// never one empty page. Any positive page size is honored; validating the
// user-facing preference range is Normalize's job.
func Paginate(sections []book.Section, sentencesPerPage int) BookPages {
	if sentencesPerPage < 1 {
		sentencesPerPage = DefaultSentencesPerPage
	}
	pages := make(BookPages, 0, len(sections))
	for _, sec := range sections {
		pages = append(pages, paginateSection(segment.Split(sec.Content), sentencesPerPage))
	}
	return pages
}

func paginateSection(sentences []string, perPage int) SectionPages {
	var pages SectionPages
	for start := 0; start < len(sentences); start += perPage {
		end := start + perPage
		if end > len(sentences) {
			end = len(sentences)
		}
		pages = append(pages, sentences[start:end])
	}
	return pages
}

// PageCount returns the number of pages in a section, or 0 for an
// out-of-range section index.
func (bp BookPages) PageCount(section int) int {
	if section < 0 || section >= len(bp) {
		return 0
	}
	return len(bp[section])
}

// Page returns the sentences of one page, or nil if out of range.
func (bp BookPages) Page(section, page int) []string {
	if section < 0 || section >= len(bp) {
		return nil
	}
	if page < 0 || page >= len(bp[section]) {
		return nil
	}
	return bp[section][page]
}

// TotalPages returns the page count across all sections.
func (bp BookPages) TotalPages() int {
	total := 0
	for _, sec := range bp {
		total += len(sec)
	}
	return total
}

// GlobalPage returns the 1-based "page N of TotalPages" number for a
// position, flattening sections in order. Returns 0 if out of range.
func (bp BookPages) GlobalPage(section, page int) int {
	if bp.Page(section, page) == nil {
		return 0
	}
	n := page + 1
	for s := 0; s < section; s++ {
		n += len(bp[s])
	}
	return n
}

// WordCount returns the word count of one page, summing its sentences with
// the shared counting convention. Zero for out-of-range positions.
func (bp BookPages) WordCount(section, page int) int {
	sentences := bp.Page(section, page)
	count := 0
	for _, s := range sentences {
		count += segment.CountWords(s)
	}
	return count
}
