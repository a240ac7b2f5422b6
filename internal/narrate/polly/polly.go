// Package polly implements the narrate.Engine contract on top of Amazon
// Polly. Each sentence is synthesized twice: once as word speech marks that
// drive the highlight cursor, once as MP3 audio cached on disk. Playback of
// the audio itself is handed to an optional external player command.
package polly

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/hughgramel/readfluent/internal/narrate"
)

const (
	// requestTimeout bounds one synthesis fetch so a hung request cannot
	// block the sentence forever.
	requestTimeout = 30 * time.Second

	markCacheTTL  = 6 * time.Hour
	audioTailWait = 400 * time.Millisecond
)

// Options configure the engine.
type Options struct {
	CacheDir  string // synthesized MP3s are kept here across sessions
	PlayerCmd string // e.g. "mpg123"; empty means marks-only (silent) playback
}

// Engine synthesizes sentences through Amazon Polly.
type Engine struct {
	client    *polly.Client
	marks     *gocache.Cache
	limiter   *rate.Limiter
	cacheDir  string
	playerCmd string
}

// New loads AWS credentials from the environment and prepares the cache
// directory.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load credentials: %w", err)
	}
	if opts.CacheDir != "" {
		if err := os.MkdirAll(opts.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("could not create audio cache dir: %w", err)
		}
	}
	return &Engine{
		client:    polly.NewFromConfig(cfg),
		marks:     gocache.New(markCacheTTL, 30*time.Minute),
		limiter:   rate.NewLimiter(rate.Every(200*time.Millisecond), 2),
		cacheDir:  opts.CacheDir,
		playerCmd: opts.PlayerCmd,
	}, nil
}

// mark is one line of Polly's speech-mark NDJSON output.
type mark struct {
	Time  int    `json:"time"` // milliseconds from audio start
	Type  string `json:"type"`
	Value string `json:"value"`
}

type handle struct {
	cancel context.CancelFunc
}

func (h *handle) Cancel() { h.cancel() }

// Speak synthesizes one sentence and reports word boundaries and completion
// asynchronously, per the narrate.Engine contract.
func (e *Engine) Speak(req narrate.Request, cb narrate.EngineCallbacks) (narrate.Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		err := e.speak(ctx, req, cb)
		if errors.Is(err, context.Canceled) {
			err = narrate.ErrCanceled
		}
		if cb.OnDone != nil {
			cb.OnDone(err)
		}
	}()
	return &handle{cancel: cancel}, nil
}

func (e *Engine) speak(ctx context.Context, req narrate.Request, cb narrate.EngineCallbacks) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	marks, err := e.fetchMarks(fetchCtx, req)
	if err != nil {
		return err
	}

	var audioPath string
	if e.playerCmd != "" && e.cacheDir != "" {
		audioPath, err = e.fetchAudio(fetchCtx, req)
		if err != nil {
			return err
		}
	}

	var player *exec.Cmd
	if audioPath != "" {
		player = exec.CommandContext(ctx, e.playerCmd, audioPath)
		if err := player.Start(); err != nil {
			return fmt.Errorf("could not start audio player: %w", err)
		}
	}

	start := time.Now()
	for _, m := range marks {
		at := time.Duration(m.Time) * time.Millisecond
		if wait := at - time.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if cb.OnWord != nil {
			cb.OnWord(m.Value)
		}
	}

	if player != nil {
		if err := player.Wait(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("audio player failed: %w", err)
		}
	} else {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(audioTailWait):
		}
	}
	return ctx.Err()
}

// fetchMarks returns word speech marks for a sentence, cached in memory.
func (e *Engine) fetchMarks(ctx context.Context, req narrate.Request) ([]mark, error) {
	k := cacheKey(req)
	if cached, ok := e.marks.Get(k); ok {
		return cached.([]mark), nil
	}

	input := synthesizeInput(req)
	input.OutputFormat = types.OutputFormatJson
	input.SpeechMarkTypes = []types.SpeechMarkType{types.SpeechMarkTypeWord}

	out, err := e.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("could not get speech marks: %w", err)
	}
	defer out.AudioStream.Close()

	var marks []mark
	scanner := bufio.NewScanner(out.AudioStream)
	for scanner.Scan() {
		var m mark
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			continue
		}
		if m.Type == "word" {
			marks = append(marks, m)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read speech marks: %w", err)
	}

	e.marks.Set(k, marks, gocache.DefaultExpiration)
	return marks, nil
}

// fetchAudio downloads the sentence MP3 into the cache directory unless it
// is already there.
func (e *Engine) fetchAudio(ctx context.Context, req narrate.Request) (string, error) {
	path := filepath.Join(e.cacheDir, cacheKey(req)+".mp3")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	input := synthesizeInput(req)
	input.OutputFormat = types.OutputFormatMp3

	out, err := e.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return "", fmt.Errorf("could not get synthesized output: %w", err)
	}
	defer out.AudioStream.Close()

	outFile, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("could not create audio file: %w", err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, out.AudioStream); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("could not write audio file: %w", err)
	}
	return path, nil
}

// synthesizeInput builds the shared request. Non-default rates go through
// SSML prosody so speech-mark times line up with the slowed audio.
func synthesizeInput(req narrate.Request) *polly.SynthesizeSpeechInput {
	input := &polly.SynthesizeSpeechInput{
		VoiceId: types.VoiceId(req.Voice),
	}
	if req.Rate > 0 && req.Rate != 1 {
		ssml := fmt.Sprintf(`<speak><prosody rate="%d%%">%s</prosody></speak>`,
			int(req.Rate*100), html.EscapeString(req.Text))
		input.Text = aws.String(ssml)
		input.TextType = types.TextTypeSsml
	} else {
		input.Text = aws.String(req.Text)
		input.TextType = types.TextTypeText
	}
	return input
}

func cacheKey(req narrate.Request) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.2f", req.Text, req.Voice, req.Rate)))
	return hex.EncodeToString(sum[:16])
}
