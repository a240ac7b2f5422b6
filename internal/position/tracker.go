package position

import (
	"fmt"

	"github.com/hughgramel/readfluent/internal/paginate"
)

// Point is a (section, page) cursor into BookPages.
type Point struct {
	Section int
	Page    int
}

// SessionSink receives reading-session records mirroring mark/unmark
// actions. The section identifier is "{sectionIndex}-{pageIndex}".
type SessionSink interface {
	AddSession(bookID, sectionID string, wordCount int) error
	RemoveSession(bookID, sectionID string) error
}

// Tracker maintains the reading cursor and per-page read status for one
// book. The cursor is persisted on every change; read-state updates are
// optimistic and sink failures never roll them back.
type Tracker struct {
	bookID string
	pages  paginate.BookPages

	cur            Point
	read           map[Point]bool
	totalWordsRead int

	cache       *Cache      // may be nil
	sink        SessionSink // may be nil
	OnSinkError func(error) // optional, called on sink write failures
}

// NewTracker restores the persisted position for the book, clamping it into
// the current page layout. A missing or corrupt cached position falls back
// to (0, 0).
func NewTracker(bookID string, pages paginate.BookPages, cache *Cache, sink SessionSink) *Tracker {
	t := &Tracker{
		bookID: bookID,
		pages:  pages,
		read:   make(map[Point]bool),
		cache:  cache,
		sink:   sink,
	}
	if cache != nil {
		if pos, ok := cache.Get(bookID); ok {
			t.cur = t.clamp(Point{Section: pos.SectionIndex, Page: pos.PageIndex})
		}
	}
	return t
}

// Position returns the current cursor.
func (t *Tracker) Position() Point { return t.cur }

// Pages returns the page layout the tracker operates over.
func (t *Tracker) Pages() paginate.BookPages { return t.pages }

// TotalWordsRead returns the words accumulated through marked pages.
func (t *Tracker) TotalWordsRead() int { return t.totalWordsRead }

// SetPages swaps in a recomputed page layout (after a sentences-per-page
// change) and reclamps the cursor against it.
func (t *Tracker) SetPages(pages paginate.BookPages) {
	t.pages = pages
	t.setPosition(t.clamp(t.cur))
}

// clamp forces a point into the valid range for the current layout.
// Sections that produced zero pages clamp the page index to 0.
func (t *Tracker) clamp(p Point) Point {
	if len(t.pages) == 0 {
		return Point{}
	}
	if p.Section < 0 {
		p.Section = 0
	}
	if p.Section >= len(t.pages) {
		p.Section = len(t.pages) - 1
	}
	last := t.pages.PageCount(p.Section) - 1
	if last < 0 {
		last = 0
	}
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Page > last {
		p.Page = last
	}
	return p
}

// NextPage advances within the section, or to the next non-empty section's
// first page. On the last page of the book it is a no-op.
func (t *Tracker) NextPage() {
	if t.cur.Page < t.pages.PageCount(t.cur.Section)-1 {
		t.setPosition(Point{Section: t.cur.Section, Page: t.cur.Page + 1})
		return
	}
	for s := t.cur.Section + 1; s < len(t.pages); s++ {
		if t.pages.PageCount(s) > 0 {
			t.setPosition(Point{Section: s})
			return
		}
	}
}

// PrevPage steps back within the section, or to the previous non-empty
// section's last page. On the first page of the book it is a no-op.
func (t *Tracker) PrevPage() {
	if t.cur.Page > 0 {
		t.setPosition(Point{Section: t.cur.Section, Page: t.cur.Page - 1})
		return
	}
	for s := t.cur.Section - 1; s >= 0; s-- {
		if n := t.pages.PageCount(s); n > 0 {
			t.setPosition(Point{Section: s, Page: n - 1})
			return
		}
	}
}

// GoToPage jumps directly, clamping both arguments into valid bounds.
func (t *Tracker) GoToPage(section, page int) {
	t.setPosition(t.clamp(Point{Section: section, Page: page}))
}

func (t *Tracker) setPosition(p Point) {
	t.cur = p
	t.persist()
}

func (t *Tracker) persist() {
	if t.cache == nil {
		return
	}
	t.cache.Set(t.bookID, CachedPosition{
		SectionIndex: t.cur.Section,
		PageIndex:    t.cur.Page,
		LastSentence: -1,
	})
}

// SaveNarrationCursor records a best-effort last-sentence index alongside
// the position.
func (t *Tracker) SaveNarrationCursor(sentence int) {
	if t.cache == nil {
		return
	}
	t.cache.Set(t.bookID, CachedPosition{
		SectionIndex: t.cur.Section,
		PageIndex:    t.cur.Page,
		LastSentence: sentence,
	})
}

// RestoreReadStatus seeds the read set and word counter from previously
// recorded session identifiers ("{sectionIndex}-{pageIndex}").
func (t *Tracker) RestoreReadStatus(sectionIDs []string, totalWordsRead int) {
	for _, id := range sectionIDs {
		var s, p int
		if _, err := fmt.Sscanf(id, "%d-%d", &s, &p); err == nil {
			t.read[Point{Section: s, Page: p}] = true
		}
	}
	if totalWordsRead < 0 {
		totalWordsRead = 0
	}
	t.totalWordsRead = totalWordsRead
}

// IsRead reports whether the current page is marked complete.
func (t *Tracker) IsRead() bool { return t.read[t.cur] }

// PageWordCount returns the word count of the current page.
func (t *Tracker) PageWordCount() int {
	return t.pages.WordCount(t.cur.Section, t.cur.Page)
}

// MarkPageComplete adds the current page to the read set and accumulates
// its word count. Marking an already-read page is a no-op. The matching
// session record is written optimistically.
func (t *Tracker) MarkPageComplete() {
	if t.read[t.cur] {
		return
	}
	t.read[t.cur] = true
	t.totalWordsRead += t.PageWordCount()

	if t.sink != nil {
		if err := t.sink.AddSession(t.bookID, sectionID(t.cur), t.PageWordCount()); err != nil {
			t.sinkError(err)
		}
	}
}

// UnmarkPageComplete is the exact inverse of MarkPageComplete. Unmarking a
// page that is not read is a no-op.
func (t *Tracker) UnmarkPageComplete() {
	if !t.read[t.cur] {
		return
	}
	delete(t.read, t.cur)
	t.totalWordsRead -= t.PageWordCount()
	if t.totalWordsRead < 0 {
		t.totalWordsRead = 0
	}

	if t.sink != nil {
		if err := t.sink.RemoveSession(t.bookID, sectionID(t.cur)); err != nil {
			t.sinkError(err)
		}
	}
}

func (t *Tracker) sinkError(err error) {
	if t.OnSinkError != nil {
		t.OnSinkError(err)
	}
}

func sectionID(p Point) string {
	return fmt.Sprintf("%d-%d", p.Section, p.Page)
}
