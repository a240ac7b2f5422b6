//go:build gui

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

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

type gui struct {
	bk      *book.Book
	tracker *position.Tracker
	player  *narrate.Player // nil when narration is disabled
	owner   *narrate.HandleOwner

	// Narration highlight mirrors, fed by player callbacks.
	sentence int
	word     int
	errMsg   string

	statusLabel *widget.Label
	list        *widget.List
	playButton  *widget.Button
	window      fyne.Window
}

func (g *gui) pageSentences() []string {
	pos := g.tracker.Position()
	return g.tracker.Pages().Page(pos.Section, pos.Page)
}

func (g *gui) syncPage() {
	g.sentence = -1
	g.word = -1
	if g.player != nil {
		g.player.SetSentences(g.pageSentences())
	}
	g.refresh()
}

func (g *gui) refresh() {
	pos := g.tracker.Position()
	pages := g.tracker.Pages()

	read := ""
	if g.tracker.IsRead() {
		read = "  ✓ read"
	}
	state := ""
	if g.player != nil {
		state = " [" + g.player.State().String() + "]"
		if g.player.State() == narrate.StatePlaying {
			g.playButton.SetText("Pause")
		} else {
			g.playButton.SetText("Play")
		}
	}
	status := fmt.Sprintf("Page %d/%d | %d words read%s%s",
		pages.GlobalPage(pos.Section, pos.Page), pages.TotalPages(),
		g.tracker.TotalWordsRead(), read, state)
	if g.errMsg != "" {
		status += "  narration error: " + g.errMsg
	}
	g.statusLabel.SetText(status)
	g.list.Refresh()
}

func (g *gui) togglePlay() {
	if g.player == nil {
		return
	}
	g.errMsg = ""
	if g.player.State() == narrate.StatePlaying {
		g.player.Pause()
	} else {
		g.player.Play()
	}
	g.refresh()
}

func main() {
	ttsFlag := flag.Bool("tts", false, "Enable text-to-speech narration (requires AWS credentials)")
	sppFlag := flag.Int("spp", 0, "Sentences per page (10-200, overrides stored preference)")
	freshFlag := flag.Bool("fresh", false, "Ignore saved reading position")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Readfluent GUI - Foreign-Language Reading Tool\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  readfluent-gui [options] <book>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("readfluent-gui %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: No book provided.")
		fmt.Fprintln(os.Stderr, "Try: readfluent-gui -h")
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

	g := &gui{
		bk:       bk,
		tracker:  tracker,
		player:   player,
		owner:    owner,
		sentence: -1,
		word:     -1,
	}

	a := app.New()
	w := a.NewWindow("readfluent - " + bk.Title)
	g.window = w

	g.statusLabel = widget.NewLabel("")
	g.statusLabel.Alignment = fyne.TextAlignCenter

	g.list = widget.NewList(
		func() int { return len(g.pageSentences()) },
		func() fyne.CanvasObject {
			l := widget.NewLabel("")
			l.Wrapping = fyne.TextWrapWord
			return l
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			sentences := g.pageSentences()
			if id >= len(sentences) {
				return
			}
			label := obj.(*widget.Label)
			label.TextStyle.Bold = id == g.sentence
			label.SetText(sentences[id])
		},
	)
	// Clicking a sentence is the select-mode jump: the cursor moves there
	// and active playback restarts from it.
	g.list.OnSelected = func(id widget.ListItemID) {
		g.sentence = id
		g.word = -1
		if g.player != nil {
			g.player.JumpTo(id)
		}
		g.list.Unselect(id)
		g.refresh()
	}

	g.playButton = widget.NewButton("Play", g.togglePlay)
	buttons := []fyne.CanvasObject{
		widget.NewButton("◀ Page", func() { g.tracker.PrevPage(); g.syncPage() }),
		widget.NewButton("Page ▶", func() { g.tracker.NextPage(); g.syncPage() }),
		widget.NewButton("Mark read", func() {
			if g.tracker.IsRead() {
				g.tracker.UnmarkPageComplete()
			} else {
				g.tracker.MarkPageComplete()
			}
			g.refresh()
		}),
	}
	if player != nil {
		buttons = append(buttons,
			g.playButton,
			widget.NewButton("Stop", func() { player.Stop(); g.sentence = -1; g.word = -1; g.refresh() }),
			widget.NewButton("◀ Sent", func() { player.Previous(); g.sentence, g.word = player.Cursor(); g.refresh() }),
			widget.NewButton("Sent ▶", func() { player.Next(); g.sentence, g.word = player.Cursor(); g.refresh() }),
			widget.NewButton("Repeat", func() { g.errMsg = ""; player.Repeat() }),
		)
	}

	content := container.NewBorder(
		g.statusLabel,
		container.NewHBox(buttons...),
		nil, nil,
		g.list,
	)

	if player != nil {
		player.SetCallbacks(narrate.Callbacks{
			OnSentenceChange: func(i int) {
				fyne.Do(func() { g.sentence = i; g.word = -1; g.refresh() })
			},
			OnWordChange: func(s, wd int) {
				fyne.Do(func() { g.sentence = s; g.word = wd; g.refresh() })
			},
			OnFinish: func() {
				fyne.Do(func() { g.sentence = -1; g.word = -1; g.refresh() })
			},
			OnError: func(err error) {
				fyne.Do(func() { g.errMsg = err.Error(); g.refresh() })
			},
		})
	}

	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		switch key.Name {
		case fyne.KeySpace:
			g.togglePlay()
		case fyne.KeyLeft:
			g.tracker.PrevPage()
			g.syncPage()
		case fyne.KeyRight:
			g.tracker.NextPage()
			g.syncPage()
		case fyne.KeyQ:
			w.Close()
		}
	})

	w.SetOnClosed(func() {
		if g.player != nil {
			sentence, _ := g.player.Cursor()
			g.tracker.SaveNarrationCursor(sentence)
		}
		g.owner.CancelAll()
	})

	w.Resize(fyne.NewSize(900, 650))
	w.SetContent(content)
	g.refresh()
	w.ShowAndRun()
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
