package narrate

import "sync"

// State is the playback state of a Player.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Callbacks notify the UI of playback progress. They are invoked without
// the player lock held, so they may call back into the player.
type Callbacks struct {
	OnSentenceChange func(sentence int)
	OnWordChange     func(sentence, word int)
	OnFinish         func()
	OnError          func(err error)
}

// Player synthesizes the sentences of one page in order, one at a time.
//
// Every synthesis start increments a generation counter; engine callbacks
// capture the generation at start and are ignored once it moves on. That
// single guard is what keeps a paused or stopped player from being advanced
// by a completion that was already in flight.
type Player struct {
	mu     sync.Mutex
	engine Engine
	owner  *HandleOwner
	voice  string
	rate   float64
	cb     Callbacks

	sentences []string
	state     State
	sentence  int // -1 when no sentence is highlighted
	word      int // -1 when no word is highlighted
	gen       uint64
	oneShot   bool // current synthesis must not auto-advance (repeat)
	matcher   *wordMatcher
}

// NewPlayer creates a player bound to an engine and a handle owner.
func NewPlayer(engine Engine, owner *HandleOwner, voice string, rate float64) *Player {
	return &Player{
		engine:   engine,
		owner:    owner,
		voice:    voice,
		rate:     rate,
		sentence: -1,
		word:     -1,
	}
}

// SetCallbacks installs UI callbacks. Call before Play.
func (p *Player) SetCallbacks(cb Callbacks) {
	p.mu.Lock()
	p.cb = cb
	p.mu.Unlock()
}

// State returns the current playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cursor returns the highlighted sentence and word indices, -1 when unset.
func (p *Player) Cursor() (sentence, word int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sentence, p.word
}

// SetSentences swaps in the flattened sentence list of a newly displayed
// page. The cursor is clamped into the new list; if playback is active it
// restarts on the clamped sentence so auto-advance continues over the new
// page.
func (p *Player) SetSentences(sentences []string) {
	p.mu.Lock()
	p.sentences = sentences
	var notes []func()
	if len(sentences) == 0 {
		p.sentence = -1
		p.word = -1
		if p.state == StatePlaying {
			p.state = StateIdle
		}
		p.gen++
		p.owner.swap(p, nil)
	} else {
		if p.sentence >= len(sentences) {
			p.sentence = len(sentences) - 1
		}
		if p.state == StatePlaying {
			notes = p.startLocked(false)
		}
	}
	p.mu.Unlock()
	p.run(notes)
}

// Play begins or resumes synthesis at the current cursor, defaulting to
// sentence 0.
func (p *Player) Play() {
	p.mu.Lock()
	var notes []func()
	if p.state != StatePlaying && len(p.sentences) > 0 {
		if p.sentence < 0 {
			p.sentence = 0
		}
		p.state = StatePlaying
		notes = p.startLocked(false)
	}
	p.mu.Unlock()
	p.run(notes)
}

// Pause cancels the in-flight synthesis immediately. The bumped generation
// makes sure a completion already in flight cannot advance the cursor.
func (p *Player) Pause() {
	p.mu.Lock()
	if p.state == StatePlaying {
		p.state = StatePaused
		p.gen++
		p.owner.swap(p, nil)
	}
	p.mu.Unlock()
}

// Stop cancels synthesis, resets the cursor to the top of the page, and
// clears all highlighting.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.state == StatePlaying || p.state == StatePaused || p.state == StateStopped {
		p.state = StateIdle
		p.sentence = -1
		p.word = -1
		p.gen++
		p.owner.swap(p, nil)
	}
	p.mu.Unlock()
}

// Next moves the cursor forward one sentence, clamped to the page. When
// playing, synthesis restarts from the new sentence.
func (p *Player) Next() {
	p.step(1)
}

// Previous moves the cursor back one sentence, clamped to the page. When
// playing, synthesis restarts from the new sentence.
func (p *Player) Previous() {
	p.step(-1)
}

func (p *Player) step(delta int) {
	p.mu.Lock()
	var notes []func()
	if len(p.sentences) > 0 {
		cur := p.sentence
		if cur < 0 {
			cur = 0
		}
		next := cur + delta
		if next >= 0 && next < len(p.sentences) && next != p.sentence {
			p.sentence = next
			p.word = -1
			if p.state == StatePlaying {
				notes = p.startLocked(false)
			}
		}
	}
	p.mu.Unlock()
	p.run(notes)
}

// JumpTo sets the cursor to a clicked sentence. Active playback restarts
// from there instead of resuming the old sentence.
func (p *Player) JumpTo(sentence int) {
	p.mu.Lock()
	var notes []func()
	if len(p.sentences) > 0 {
		if sentence < 0 {
			sentence = 0
		}
		if sentence >= len(p.sentences) {
			sentence = len(p.sentences) - 1
		}
		p.sentence = sentence
		p.word = -1
		if p.state == StatePlaying {
			notes = p.startLocked(false)
		}
	}
	p.mu.Unlock()
	p.run(notes)
}

// Repeat replays the current sentence from the start. Single shot: the
// cursor does not advance when it completes, and playback parks in paused.
func (p *Player) Repeat() {
	p.mu.Lock()
	var notes []func()
	if len(p.sentences) > 0 {
		if p.sentence < 0 {
			p.sentence = 0
		}
		p.state = StatePlaying
		notes = p.startLocked(true)
	}
	p.mu.Unlock()
	p.run(notes)
}

// startLocked begins synthesis of the current sentence. The previous
// handle, if any, is closed first so two audio streams never overlap.
// Returned notifications run after the lock is released.
func (p *Player) startLocked(oneShot bool) []func() {
	p.gen++
	g := p.gen
	p.oneShot = oneShot
	p.word = -1
	text := p.sentences[p.sentence]
	p.matcher = newWordMatcher(text)
	idx := p.sentence

	// Close the previous synthesis before opening a new one.
	p.owner.swap(p, nil)

	h, err := p.engine.Speak(
		Request{Text: text, Voice: p.voice, Rate: p.rate},
		EngineCallbacks{
			OnWord: func(w string) { p.handleWord(g, w) },
			OnDone: func(err error) { p.handleDone(g, err) },
		},
	)
	if err != nil {
		p.state = StateStopped
		p.owner.swap(p, nil)
		return p.notifyError(err)
	}
	p.owner.swap(p, h)

	var notes []func()
	if cb := p.cb.OnSentenceChange; cb != nil {
		notes = append(notes, func() { cb(idx) })
	}
	return notes
}

func (p *Player) handleWord(g uint64, reported string) {
	p.mu.Lock()
	var notes []func()
	if g == p.gen && p.state == StatePlaying && p.matcher != nil {
		if idx := p.matcher.match(reported); idx >= 0 {
			p.word = idx
			sentence := p.sentence
			if cb := p.cb.OnWordChange; cb != nil {
				notes = append(notes, func() { cb(sentence, idx) })
			}
		}
	}
	p.mu.Unlock()
	p.run(notes)
}

func (p *Player) handleDone(g uint64, err error) {
	p.mu.Lock()
	var notes []func()
	switch {
	case g != p.gen:
		// Stale completion from a synthesis we already left behind.
	case err == ErrCanceled:
		// Expected after Pause/Stop/navigation.
	case err != nil:
		p.state = StateStopped
		p.owner.swap(p, nil)
		notes = p.notifyError(err)
	case p.state != StatePlaying:
		// Completion raced a state change; do not advance.
	case p.oneShot:
		p.oneShot = false
		p.state = StatePaused
		p.word = -1
		p.owner.swap(p, nil)
	case p.sentence < len(p.sentences)-1:
		p.sentence++
		notes = p.startLocked(false)
	default:
		p.state = StateIdle
		p.sentence = -1
		p.word = -1
		p.owner.swap(p, nil)
		if cb := p.cb.OnFinish; cb != nil {
			notes = append(notes, func() { cb() })
		}
	}
	p.mu.Unlock()
	p.run(notes)
}

func (p *Player) notifyError(err error) []func() {
	if cb := p.cb.OnError; cb != nil {
		return []func(){func() { cb(err) }}
	}
	return nil
}

func (p *Player) run(notes []func()) {
	for _, n := range notes {
		n()
	}
}
