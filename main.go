//go:build !gui

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hughgramel/readfluent/internal/book"
	"github.com/hughgramel/readfluent/internal/config"
	"github.com/hughgramel/readfluent/internal/narrate"
	"github.com/hughgramel/readfluent/internal/narrate/polly"
	"github.com/hughgramel/readfluent/internal/paginate"
	"github.com/hughgramel/readfluent/internal/position"
	"github.com/hughgramel/readfluent/internal/store"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	sentenceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	activeSentenceStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(lipgloss.Color("#333366"))

	activeWordStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700")).
			Background(lipgloss.Color("#333366"))

	selectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF")).
			Bold(true)

	learningWordStyle = lipgloss.NewStyle().
				Underline(true).
				Foreground(lipgloss.Color("#FFAA00"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	readStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))
)

// Narration callback messages delivered via Program.Send.
type narrSentenceMsg int

type narrWordMsg struct {
	sentence int
	word     int
}

type narrFinishMsg struct{}

type narrErrMsg struct{ err error }

type model struct {
	cfg     *config.Config
	st      *store.Store
	bk      *book.Book
	tracker *position.Tracker
	player  *narrate.Player // nil when narration is disabled
	owner   *narrate.HandleOwner

	wordStatuses map[string]string
	prog         progress.Model

	// Narration highlight mirrors, fed by player callbacks.
	sentence int
	word     int

	selectMode   bool
	selectCursor int

	errMsg   string
	width    int
	height   int
	quitting bool
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) pageSentences() []string {
	pos := m.tracker.Position()
	return m.tracker.Pages().Page(pos.Section, pos.Page)
}

// syncPage pushes the displayed page's sentences into the player and clears
// highlights.
func (m *model) syncPage() {
	m.sentence = -1
	m.word = -1
	m.selectCursor = 0
	if m.player != nil {
		m.player.SetSentences(m.pageSentences())
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.prog.Width = msg.Width - 4
		return m, nil

	case narrSentenceMsg:
		m.sentence = int(msg)
		m.word = -1
		return m, nil

	case narrWordMsg:
		m.sentence = msg.sentence
		m.word = msg.word
		return m, nil

	case narrFinishMsg:
		m.sentence = -1
		m.word = -1
		return m, nil

	case narrErrMsg:
		m.errMsg = msg.err.Error()
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.selectMode {
		switch msg.String() {
		case "up", "k":
			if m.selectCursor > 0 {
				m.selectCursor--
			}
			return m, nil
		case "down", "j":
			if m.selectCursor < len(m.pageSentences())-1 {
				m.selectCursor++
			}
			return m, nil
		case "enter":
			m.selectMode = false
			m.sentence = m.selectCursor
			m.word = -1
			if m.player != nil {
				m.player.JumpTo(m.selectCursor)
			}
			return m, nil
		case "v", "esc":
			m.selectMode = false
			return m, nil
		}
		return m, nil
	}

	switch msg.String() {
	case "right", "l", "n":
		m.tracker.NextPage()
		m.syncPage()
		return m, nil

	case "left", "h", "p":
		m.tracker.PrevPage()
		m.syncPage()
		return m, nil

	case " ":
		if m.player == nil {
			return m, nil
		}
		m.errMsg = ""
		if m.player.State() == narrate.StatePlaying {
			m.player.Pause()
		} else {
			m.player.Play()
		}
		return m, nil

	case "s":
		if m.player != nil {
			m.player.Stop()
		}
		m.sentence = -1
		m.word = -1
		return m, nil

	case "]":
		if m.player != nil {
			m.player.Next()
			m.mirrorCursor()
		}
		return m, nil

	case "[":
		if m.player != nil {
			m.player.Previous()
			m.mirrorCursor()
		}
		return m, nil

	case "r":
		if m.player != nil {
			m.errMsg = ""
			m.player.Repeat()
		}
		return m, nil

	case "v":
		if len(m.pageSentences()) > 0 {
			m.selectMode = true
			if m.sentence >= 0 {
				m.selectCursor = m.sentence
			}
		}
		return m, nil

	case "m":
		if m.tracker.IsRead() {
			m.tracker.UnmarkPageComplete()
		} else {
			m.tracker.MarkPageComplete()
		}
		return m, nil

	case "w":
		m.cycleWordStatus()
		return m, nil

	case "q", "Q", "ctrl+c":
		m.quitting = true
		if m.player != nil {
			sentence, _ := m.player.Cursor()
			m.tracker.SaveNarrationCursor(sentence)
		}
		m.owner.CancelAll()
		return m, tea.Quit
	}

	return m, nil
}

func (m *model) mirrorCursor() {
	if m.player != nil {
		m.sentence, m.word = m.player.Cursor()
	}
}

// cycleWordStatus advances the highlighted word through
// unknown -> learning -> known.
func (m *model) cycleWordStatus() {
	if m.sentence < 0 || m.word < 0 {
		return
	}
	sentences := m.pageSentences()
	if m.sentence >= len(sentences) {
		return
	}
	words := strings.Fields(sentences[m.sentence])
	if m.word >= len(words) {
		return
	}
	word := strings.ToLower(strings.Trim(words[m.word], `.,;:!?¿¡"'()`))
	if word == "" {
		return
	}

	next := store.WordStatusLearning
	switch m.wordStatuses[word] {
	case store.WordStatusLearning:
		next = store.WordStatusKnown
	case store.WordStatusKnown:
		next = store.WordStatusUnknown
	}
	m.wordStatuses[word] = next
	if err := m.st.SetWordStatus(word, next); err != nil {
		m.errMsg = err.Error()
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	pos := m.tracker.Position()
	pages := m.tracker.Pages()
	sentences := m.pageSentences()

	var sb strings.Builder

	section := m.bk.Sections[pos.Section]
	header := titleStyle.Render(m.bk.Title)
	if section.Title != "" {
		header += sectionStyle.Render("  ·  " + section.Title)
	}
	sb.WriteString(header)
	sb.WriteString("\n")

	global := pages.GlobalPage(pos.Section, pos.Page)
	read := ""
	if m.tracker.IsRead() {
		read = readStyle.Render("  ✓ read")
	}
	sb.WriteString(statusStyle.Render(fmt.Sprintf(
		"Page %d/%d | %d words read%s", global, pages.TotalPages(), m.tracker.TotalWordsRead(), read,
	)))
	sb.WriteString("\n")
	if pages.TotalPages() > 0 {
		sb.WriteString(m.prog.ViewAs(float64(global) / float64(pages.TotalPages())))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if len(sentences) == 0 {
		sb.WriteString(sentenceStyle.Render("(empty section)"))
		sb.WriteString("\n")
	}

	width := m.width - 4
	if width < 20 {
		width = 76
	}
	for i, s := range sentences {
		sb.WriteString(m.renderSentence(i, s, width))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if m.errMsg != "" {
		sb.WriteString(errStyle.Render("narration error: " + m.errMsg))
		sb.WriteString("\n")
	}
	sb.WriteString(m.controls())
	return sb.String()
}

func (m model) renderSentence(i int, s string, width int) string {
	prefix := "  "
	if m.selectMode && i == m.selectCursor {
		prefix = selectStyle.Render("> ")
	}

	if i == m.sentence {
		return prefix + activeSentenceStyle.Width(width).Render(m.renderWords(s, true))
	}
	return prefix + sentenceStyle.Width(width).Render(m.renderWords(s, false))
}

// renderWords styles individual tokens: the spoken word when active, and
// vocabulary words marked as learning.
func (m model) renderWords(s string, active bool) string {
	words := strings.Fields(s)
	out := make([]string, len(words))
	for i, w := range words {
		key := strings.ToLower(strings.Trim(w, `.,;:!?¿¡"'()`))
		switch {
		case active && i == m.word:
			out[i] = activeWordStyle.Render(w)
		case m.wordStatuses[key] == store.WordStatusLearning:
			out[i] = learningWordStyle.Render(w)
		default:
			out[i] = w
		}
	}
	return strings.Join(out, " ")
}

func (m model) controls() string {
	narr := ""
	if m.player != nil {
		narr = "  SPACE: play/pause  S: stop  [/]: sentence  R: repeat  V: select  W: word"
	}
	state := ""
	if m.player != nil {
		state = statusStyle.Render("[" + m.player.State().String() + "]")
	}
	if m.selectMode {
		return controlsStyle.Render("↑/↓: choose sentence  ENTER: jump  ESC: cancel")
	}
	return controlsStyle.Render("←/→: page  M: mark read"+narr+"  Q: quit") + state
}

func main() {
	ttsFlag := flag.Bool("tts", false, "Enable text-to-speech narration (requires AWS credentials)")
	sppFlag := flag.Int("spp", 0, "Sentences per page (10-200, overrides stored preference)")
	freshFlag := flag.Bool("fresh", false, "Ignore saved reading position")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Readfluent - Terminal Foreign-Language Reading Tool\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  readfluent [options] <book>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  readfluent book.epub          Import and read an EPUB\n")
		fmt.Fprintf(os.Stderr, "  readfluent -tts book.epub     Read with Polly narration\n")
		fmt.Fprintf(os.Stderr, "  readfluent -spp 20 notes.md   20 sentences per page\n")
		fmt.Fprintf(os.Stderr, "\nSupported formats:\n")
		for _, f := range book.SupportedFormats() {
			fmt.Fprintf(os.Stderr, "  %s\n", f)
		}
		fmt.Fprintf(os.Stderr, "  plain text (anything else)\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("readfluent %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: No book provided.")
		fmt.Fprintln(os.Stderr, "Try: readfluent -h")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	bk, err := loadOrImport(flag.Arg(0), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load book: %v\n", err)
		os.Exit(1)
	}

	prefs, err := st.LoadPreferences(store.Preferences{
		SentencesPerPage: paginate.DefaultSentencesPerPage,
		Voice:            cfg.Voice,
		Rate:             config.DefaultRate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *sppFlag > 0 {
		prefs.SentencesPerPage = *sppFlag
	}
	prefs.SentencesPerPage = paginate.Normalize(prefs.SentencesPerPage)
	if err := st.SavePreferences(prefs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Pagination must be in place before the tracker clamps the restored
	// position against it.
	pages := paginate.Paginate(bk.Sections, prefs.SentencesPerPage)

	cache, err := position.OpenCache()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *freshFlag {
		cache.Clear(bk.ID)
	}
	tracker := position.NewTracker(bk.ID, pages, cache, st)
	if ids, err := st.SectionIDs(bk.ID); err == nil {
		if total, err := st.TotalWordsRead(bk.ID); err == nil {
			tracker.RestoreReadStatus(ids, total)
		}
	}

	owner := narrate.NewHandleOwner()
	var player *narrate.Player
	if *ttsFlag {
		engine, err := polly.New(context.Background(), polly.Options{
			CacheDir:  cfg.AudioCacheDir(),
			PlayerCmd: cfg.PlayerCmd,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to initialize narration: %v\n", err)
			os.Exit(1)
		}
		player = narrate.NewPlayer(engine, owner, prefs.Voice, prefs.Rate)
	}

	statuses, err := st.WordStatuses()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m := model{
		cfg:          cfg,
		st:           st,
		bk:           bk,
		tracker:      tracker,
		player:       player,
		owner:        owner,
		wordStatuses: statuses,
		prog:         progress.New(progress.WithDefaultGradient()),
		sentence:     -1,
		word:         -1,
		width:        80,
		height:       24,
	}
	m.syncPage()

	p := tea.NewProgram(m, tea.WithAltScreen())

	if player != nil {
		player.SetCallbacks(narrate.Callbacks{
			OnSentenceChange: func(i int) { p.Send(narrSentenceMsg(i)) },
			OnWordChange:     func(s, w int) { p.Send(narrWordMsg{sentence: s, word: w}) },
			OnFinish:         func() { p.Send(narrFinishMsg{}) },
			OnError:          func(err error) { p.Send(narrErrMsg{err: err}) },
		})
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadOrImport reads a book JSON directly, or imports a source file into
// the books directory (reusing an earlier import of the same content).
func loadOrImport(path string, cfg *config.Config) (*book.Book, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return book.Load(path)
	}

	if id, err := book.Fingerprint(path); err == nil {
		cached := filepath.Join(cfg.BooksDir(), id+".json")
		if b, err := book.Load(cached); err == nil {
			return b, nil
		}
	}

	b, err := book.Import(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.BooksDir(), 0755); err == nil {
		b.Save(filepath.Join(cfg.BooksDir(), b.ID+".json"))
	}
	return b, nil
}
