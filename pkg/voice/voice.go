// Package voice turns speech into wake and command events. A background
// loop pulls phrases from a Transcriber, normalizes them, and matches
// them against the wake words and command vocabulary.
package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/walle-robot/go-walle/internal/log"
)

// Command identifiers emitted to the OnCommand callback.
const (
	CommandSing    = "sing"
	CommandSpin    = "spin"
	CommandFriends = "friends"
	CommandBack    = "back"
)

// Transcriber captures one spoken phrase. Implementations wrap a speech
// engine; tests script phrases.
type Transcriber interface {
	// Listen blocks until a phrase is heard or ctx is done. An empty
	// string with nil error means silence.
	Listen(ctx context.Context) (string, error)
}

// Config holds the recognition vocabulary.
type Config struct {
	// WakeWords are phrases that rouse the robot.
	WakeWords []string
	// Commands maps a command identifier to the phrases that trigger it.
	Commands map[string][]string
	// RetryDelay is the pause after a transcriber error before
	// listening again.
	RetryDelay time.Duration
}

// DefaultConfig returns the stock vocabulary.
func DefaultConfig() Config {
	return Config{
		WakeWords: []string{"wall e", "wally", "hey wall e"},
		Commands: map[string][]string{
			CommandSing:    {"sing a song", "sing for me", "sing"},
			CommandSpin:    {"spin around", "do a spin", "spin"},
			CommandFriends: {"who are your friends", "your friends", "friends"},
			CommandBack:    {"go back", "come back", "go home"},
		},
		RetryDelay: time.Second,
	}
}

// Listener runs the capture loop and dispatches wake/command events.
type Listener struct {
	transcriber Transcriber
	cfg         Config

	// OnWake fires when a wake word is heard. OnCommand fires when a
	// command phrase is heard; commands take priority when a phrase
	// contains both. Set before Start.
	OnWake    func()
	OnCommand func(cmd string)

	mu     sync.Mutex
	paused bool
}

// NewListener creates a voice listener.
func NewListener(t Transcriber, cfg Config) *Listener {
	return &Listener{transcriber: t, cfg: cfg}
}

// Pause stops event dispatch without tearing down capture. Phrases that
// finish capturing while paused are dropped.
func (l *Listener) Pause() {
	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()
}

// Resume re-enables event dispatch.
func (l *Listener) Resume() {
	l.mu.Lock()
	l.paused = false
	l.mu.Unlock()
}

// Paused reports whether dispatch is suspended.
func (l *Listener) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// Start runs the capture loop until ctx is done.
func (l *Listener) Start(ctx context.Context) {
	log.Info("voice listener started", "wake_words", len(l.cfg.WakeWords), "commands", len(l.cfg.Commands))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		phrase, err := l.transcriber.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("transcription failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.cfg.RetryDelay):
			}
			continue
		}
		if phrase == "" {
			continue
		}
		// A pause issued mid-capture must also drop the phrase that was
		// already in flight, so re-check after capture completes.
		if l.Paused() {
			continue
		}
		l.dispatch(phrase)
	}
}

// Handle matches and dispatches a single phrase. Exposed for the debug
// console, which injects typed phrases.
func (l *Listener) Handle(phrase string) {
	if l.Paused() {
		return
	}
	l.dispatch(phrase)
}

func (l *Listener) dispatch(phrase string) {
	text := Normalize(phrase)
	if text == "" {
		return
	}

	if cmd, ok := l.matchCommand(text); ok {
		log.Info("voice command", "cmd", cmd, "heard", text)
		l.invoke(func() {
			if l.OnCommand != nil {
				l.OnCommand(cmd)
			}
		})
		return
	}
	if l.matchWake(text) {
		log.Info("wake word", "heard", text)
		l.invoke(func() {
			if l.OnWake != nil {
				l.OnWake()
			}
		})
	}
}

// invoke runs a callback, recovering panics so a bad handler cannot
// kill the listen loop.
func (l *Listener) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("voice callback panicked", "panic", r)
		}
	}()
	fn()
}

func (l *Listener) matchWake(text string) bool {
	for _, w := range l.cfg.WakeWords {
		if strings.Contains(text, Normalize(w)) {
			return true
		}
	}
	return false
}

func (l *Listener) matchCommand(text string) (string, bool) {
	for cmd, phrases := range l.cfg.Commands {
		for _, p := range phrases {
			if strings.Contains(text, Normalize(p)) {
				return cmd, true
			}
		}
	}
	return "", false
}

// Normalize lowercases a phrase, maps underscores and hyphens to
// spaces, strips other punctuation, and collapses runs of whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '_' || r == '-':
			b.WriteByte(' ')
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
