// Package narrate drives sentence-by-sentence text-to-speech playback over
// the sentences of the currently displayed page, keeping a (sentence, word)
// cursor in sync with the speech engine.
package narrate

import (
	"errors"
	"sync"
)

// ErrCanceled is reported by engines when a synthesis request is cut short
// by Cancel. It is a benign outcome of pause/stop/navigation, never an
// error to surface or retry.
var ErrCanceled = errors.New("synthesis canceled")

// Request asks an engine to synthesize one sentence.
type Request struct {
	Text  string
	Voice string
	Rate  float64
}

// EngineCallbacks receive progress for one synthesis request. Engines must
// deliver them asynchronously, never from inside Speak, and must call
// OnDone exactly once: with nil on natural completion, ErrCanceled after
// Cancel, or the failure otherwise.
type EngineCallbacks struct {
	OnWord func(word string)
	OnDone func(err error)
}

// Handle is an in-flight synthesis request.
type Handle interface {
	Cancel()
}

// Engine is the minimal speech capability the player is written against.
type Engine interface {
	Speak(req Request, cb EngineCallbacks) (Handle, error)
}

// HandleOwner tracks the single in-flight synthesis handle of each player,
// so starting a new synthesis always closes the previous one and teardown
// can cancel everything unconditionally.
type HandleOwner struct {
	mu     sync.Mutex
	active map[*Player]Handle
}

func NewHandleOwner() *HandleOwner {
	return &HandleOwner{active: make(map[*Player]Handle)}
}

// swap cancels the player's previous handle, if any, and records h.
// A nil h just releases the slot.
func (o *HandleOwner) swap(p *Player, h Handle) {
	o.mu.Lock()
	prev := o.active[p]
	if h == nil {
		delete(o.active, p)
	} else {
		o.active[p] = h
	}
	o.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
}

// CancelAll cancels every in-flight synthesis. Used on teardown.
func (o *HandleOwner) CancelAll() {
	o.mu.Lock()
	handles := make([]Handle, 0, len(o.active))
	for _, h := range o.active {
		handles = append(handles, h)
	}
	o.active = make(map[*Player]Handle)
	o.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}
