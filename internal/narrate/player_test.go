package narrate

import (
	"errors"
	"sync"
	"testing"
)

// fakeEngine records synthesis requests and lets tests fire word and
// completion callbacks by hand. Cancel only records the cancellation, like
// a real engine whose callbacks arrive asynchronously.
type fakeEngine struct {
	mu       sync.Mutex
	reqs     []Request
	cbs      []EngineCallbacks
	canceled []bool
}

type fakeHandle struct {
	e *fakeEngine
	i int
}

func (h *fakeHandle) Cancel() {
	h.e.mu.Lock()
	h.e.canceled[h.i] = true
	h.e.mu.Unlock()
}

func (e *fakeEngine) Speak(req Request, cb EngineCallbacks) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := len(e.reqs)
	e.reqs = append(e.reqs, req)
	e.cbs = append(e.cbs, cb)
	e.canceled = append(e.canceled, false)
	return &fakeHandle{e: e, i: i}, nil
}

func (e *fakeEngine) speakCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.reqs)
}

func (e *fakeEngine) word(i int, w string) { e.cbs[i].OnWord(w) }
func (e *fakeEngine) done(i int, err error) { e.cbs[i].OnDone(err) }

type recorder struct {
	sentences []int
	words     [][2]int
	finishes  int
	errs      []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnSentenceChange: func(i int) { r.sentences = append(r.sentences, i) },
		OnWordChange:     func(s, w int) { r.words = append(r.words, [2]int{s, w}) },
		OnFinish:         func() { r.finishes++ },
		OnError:          func(err error) { r.errs = append(r.errs, err) },
	}
}

func newTestPlayer(t *testing.T, sentences []string) (*Player, *fakeEngine, *recorder) {
	t.Helper()
	engine := &fakeEngine{}
	rec := &recorder{}
	p := NewPlayer(engine, NewHandleOwner(), "Lucia", 1)
	p.SetCallbacks(rec.callbacks())
	p.SetSentences(sentences)
	return p, engine, rec
}

func TestPlayStartsAtCursor(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"Hola.", "Adiós."})

	p.Play()

	if got := p.State(); got != StatePlaying {
		t.Fatalf("state = %v, want playing", got)
	}
	if engine.speakCount() != 1 {
		t.Fatalf("speak count = %d, want 1", engine.speakCount())
	}
	if engine.reqs[0].Text != "Hola." {
		t.Errorf("synthesized %q, want %q", engine.reqs[0].Text, "Hola.")
	}
	if len(rec.sentences) != 1 || rec.sentences[0] != 0 {
		t.Errorf("OnSentenceChange calls = %v, want [0]", rec.sentences)
	}
	if s, w := p.Cursor(); s != 0 || w != -1 {
		t.Errorf("cursor = (%d, %d), want (0, -1)", s, w)
	}
}

func TestAutoAdvance(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"Hola.", "Adiós.", "Fin."})

	p.Play()
	engine.done(0, nil)

	if engine.speakCount() != 2 {
		t.Fatalf("speak count = %d, want 2", engine.speakCount())
	}
	if engine.reqs[1].Text != "Adiós." {
		t.Errorf("synthesized %q, want %q", engine.reqs[1].Text, "Adiós.")
	}
	if s, _ := p.Cursor(); s != 1 {
		t.Errorf("cursor sentence = %d, want 1", s)
	}
	if len(rec.sentences) != 2 || rec.sentences[1] != 1 {
		t.Errorf("OnSentenceChange calls = %v, want [0 1]", rec.sentences)
	}
}

func TestFinishOnLastSentence(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"Hola.", "Adiós."})

	p.Play()
	engine.done(0, nil)
	engine.done(1, nil)

	if got := p.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if rec.finishes != 1 {
		t.Errorf("OnFinish calls = %d, want 1", rec.finishes)
	}
	if s, w := p.Cursor(); s != -1 || w != -1 {
		t.Errorf("cursor = (%d, %d), want cleared", s, w)
	}
}

func TestPauseCancelsAndSuppressesStaleCompletion(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"Hola.", "Adiós."})

	p.Play()
	p.Pause()

	if got := p.State(); got != StatePaused {
		t.Fatalf("state = %v, want paused", got)
	}
	if !engine.canceled[0] {
		t.Error("pause did not cancel in-flight synthesis")
	}

	// The canceled synthesis still completes; the stale callback must not
	// advance the cursor or restart playback.
	engine.done(0, nil)
	if engine.speakCount() != 1 {
		t.Errorf("stale completion started a new synthesis (count %d)", engine.speakCount())
	}
	if got := p.State(); got != StatePaused {
		t.Errorf("state = %v after stale completion, want paused", got)
	}
	if s, _ := p.Cursor(); s != 0 {
		t.Errorf("cursor moved to %d after stale completion", s)
	}

	// Resume restarts the same sentence.
	p.Play()
	if engine.speakCount() != 2 || engine.reqs[1].Text != "Hola." {
		t.Errorf("resume synthesized %q (count %d), want Hola. again", engine.reqs[engine.speakCount()-1].Text, engine.speakCount())
	}
	if len(rec.errs) != 0 {
		t.Errorf("unexpected errors: %v", rec.errs)
	}
}

func TestCanceledCompletionIsBenign(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"Hola."})

	p.Play()
	p.Pause()
	engine.done(0, ErrCanceled)

	if len(rec.errs) != 0 {
		t.Errorf("cancellation surfaced as error: %v", rec.errs)
	}
	if got := p.State(); got != StatePaused {
		t.Errorf("state = %v, want paused", got)
	}
}

func TestStopClearsCursor(t *testing.T) {
	p, engine, _ := newTestPlayer(t, []string{"Hola.", "Adiós."})

	p.Play()
	p.Stop()

	if got := p.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if !engine.canceled[0] {
		t.Error("stop did not cancel in-flight synthesis")
	}
	if s, w := p.Cursor(); s != -1 || w != -1 {
		t.Errorf("cursor = (%d, %d), want cleared", s, w)
	}

	// Play after stop starts over at sentence 0.
	p.Play()
	if engine.reqs[engine.speakCount()-1].Text != "Hola." {
		t.Errorf("play after stop synthesized %q, want Hola.", engine.reqs[engine.speakCount()-1].Text)
	}
}

func TestWordBoundaryMatching(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"el perro y el gato"})

	p.Play()
	for _, w := range []string{"el", "perro", "y", "el", "gato"} {
		engine.word(0, w)
	}

	// The second reported "el" maps to the second matching token.
	want := [][2]int{{0, 0}, {0, 1}, {0, 2}, {0, 3}, {0, 4}}
	if len(rec.words) != len(want) {
		t.Fatalf("OnWordChange calls = %v, want %v", rec.words, want)
	}
	for i := range want {
		if rec.words[i] != want[i] {
			t.Errorf("word change %d = %v, want %v", i, rec.words[i], want[i])
		}
	}
}

func TestWordBoundaryNormalization(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"Él corrió rápido."})

	p.Play()
	engine.word(0, "el")      // diacritics stripped, case folded
	engine.word(0, "corrio")  // engine text without accent
	engine.word(0, "expanded") // diverged from display text: no match

	want := [][2]int{{0, 0}, {0, 1}}
	if len(rec.words) != len(want) {
		t.Fatalf("OnWordChange calls = %v, want %v", rec.words, want)
	}
	if _, w := p.Cursor(); w != 1 {
		t.Errorf("unmatched report moved word cursor to %d, want 1", w)
	}
}

func TestManualNavigationBounds(t *testing.T) {
	p, engine, _ := newTestPlayer(t, []string{"Uno.", "Dos."})

	// Not playing: only the cursor moves, nothing is synthesized.
	p.Next()
	if s, _ := p.Cursor(); s != 1 {
		t.Fatalf("cursor = %d after Next, want 1", s)
	}
	if engine.speakCount() != 0 {
		t.Fatalf("Next while idle synthesized (count %d)", engine.speakCount())
	}

	// Last sentence: no-op.
	p.Next()
	if s, _ := p.Cursor(); s != 1 {
		t.Errorf("Next on last sentence moved cursor to %d", s)
	}

	p.Previous()
	p.Previous() // sentence 0: no-op
	if s, _ := p.Cursor(); s != 0 {
		t.Errorf("Previous on sentence 0 moved cursor to %d", s)
	}
}

func TestManualNavigationWhilePlaying(t *testing.T) {
	p, engine, _ := newTestPlayer(t, []string{"Uno.", "Dos."})

	p.Play()
	p.Next()

	if !engine.canceled[0] {
		t.Error("Next did not cancel the in-flight synthesis")
	}
	if engine.speakCount() != 2 || engine.reqs[1].Text != "Dos." {
		t.Fatalf("Next while playing synthesized %q (count %d), want Dos.", engine.reqs[engine.speakCount()-1].Text, engine.speakCount())
	}
	if got := p.State(); got != StatePlaying {
		t.Errorf("state = %v, want playing", got)
	}
}

func TestJumpToRestartsPlayback(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"Uno.", "Dos.", "Tres."})

	p.Play()
	p.JumpTo(2)

	if engine.speakCount() != 2 || engine.reqs[1].Text != "Tres." {
		t.Fatalf("JumpTo synthesized %q (count %d), want Tres.", engine.reqs[engine.speakCount()-1].Text, engine.speakCount())
	}
	if rec.sentences[len(rec.sentences)-1] != 2 {
		t.Errorf("OnSentenceChange calls = %v, want final 2", rec.sentences)
	}

	// Out-of-range jumps clamp.
	p.JumpTo(99)
	if s, _ := p.Cursor(); s != 2 {
		t.Errorf("JumpTo(99) cursor = %d, want 2", s)
	}
}

func TestRepeatDoesNotAdvance(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"Uno.", "Dos."})

	p.Play()
	engine.done(0, nil) // now on sentence 1
	p.Repeat()

	if engine.speakCount() != 3 || engine.reqs[2].Text != "Dos." {
		t.Fatalf("Repeat synthesized %q (count %d), want Dos.", engine.reqs[engine.speakCount()-1].Text, engine.speakCount())
	}

	// Completing the repeat parks playback without moving the cursor.
	engine.done(2, nil)
	if s, _ := p.Cursor(); s != 1 {
		t.Errorf("cursor = %d after repeat completion, want 1", s)
	}
	if got := p.State(); got != StatePaused {
		t.Errorf("state = %v after repeat completion, want paused", got)
	}
	if rec.finishes != 0 {
		t.Errorf("repeat fired OnFinish %d times", rec.finishes)
	}
}

func TestSetSentencesWhilePlaying(t *testing.T) {
	p, engine, _ := newTestPlayer(t, []string{"Uno.", "Dos.", "Tres."})

	p.Play()
	p.JumpTo(2)

	// Page change with fewer sentences: cursor clamps and playback
	// restarts over the new page's list.
	p.SetSentences([]string{"Nuevo uno.", "Nuevo dos."})
	if s, _ := p.Cursor(); s != 1 {
		t.Fatalf("cursor = %d after page change, want 1", s)
	}
	if engine.reqs[engine.speakCount()-1].Text != "Nuevo dos." {
		t.Errorf("synthesizing %q after page change, want Nuevo dos.", engine.reqs[engine.speakCount()-1].Text)
	}

	// Advancing continues over the new page.
	engine.done(engine.speakCount()-1, nil)
	if got := p.State(); got != StateIdle {
		t.Errorf("state = %v after finishing new page, want idle", got)
	}
}

func TestSetSentencesEmptyStopsPlayback(t *testing.T) {
	p, engine, _ := newTestPlayer(t, []string{"Uno."})

	p.Play()
	p.SetSentences(nil)

	if got := p.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if !engine.canceled[0] {
		t.Error("empty page did not cancel synthesis")
	}
	if s, _ := p.Cursor(); s != -1 {
		t.Errorf("cursor = %d, want cleared", s)
	}
}

func TestSynthesisFailureHaltsPlayback(t *testing.T) {
	p, engine, rec := newTestPlayer(t, []string{"Uno.", "Dos."})

	p.Play()
	engine.done(0, errors.New("engine unavailable"))

	if got := p.State(); got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	if len(rec.errs) != 1 {
		t.Fatalf("OnError calls = %d, want 1", len(rec.errs))
	}
	if engine.speakCount() != 1 {
		t.Errorf("failure auto-advanced (speak count %d)", engine.speakCount())
	}

	// Manual retry by pressing play again.
	p.Play()
	if got := p.State(); got != StatePlaying {
		t.Errorf("state = %v after retry, want playing", got)
	}
}

func TestHandleOwnerCancelAll(t *testing.T) {
	engine := &fakeEngine{}
	owner := NewHandleOwner()
	p := NewPlayer(engine, owner, "Lucia", 1)
	p.SetSentences([]string{"Uno."})

	p.Play()
	owner.CancelAll()

	if !engine.canceled[0] {
		t.Error("CancelAll did not cancel the active synthesis")
	}
	// A second CancelAll has nothing left to cancel.
	owner.CancelAll()
}

func TestSingleActiveSynthesis(t *testing.T) {
	p, engine, _ := newTestPlayer(t, []string{"Uno.", "Dos.", "Tres."})

	p.Play()
	p.Next()
	p.Next()

	// Every superseded synthesis must have been canceled before the next
	// one started; only the last may be live.
	for i := 0; i < engine.speakCount()-1; i++ {
		if !engine.canceled[i] {
			t.Errorf("synthesis %d still live after being superseded", i)
		}
	}
	if engine.canceled[engine.speakCount()-1] {
		t.Error("current synthesis was canceled")
	}
}
