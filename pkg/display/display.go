// Package display drives the robot's face screen: emotion playback with
// a short settling delay so rapid state flips don't strobe the screen,
// plus touch events reported by the panel.
package display

import (
	"sync"
	"time"

	"github.com/walle-robot/go-walle/internal/log"
)

// Emotion names understood by the renderer.
const (
	EmotionNeutral = "neutral"
	EmotionHappy   = "happy"
	EmotionExcited = "excited"
	EmotionCurious = "curious"
	EmotionShocked = "shocked"
	EmotionScared  = "scared"
	EmotionSad     = "sad"
	EmotionSleepy  = "sleepy"
	EmotionSleep   = "sleep"
)

// Renderer draws one emotion on the actual screen hardware.
type Renderer interface {
	Render(emotion string)
}

// Display is what the rest of the robot talks to. *Manager satisfies it.
type Display interface {
	// ShowEmotion requests an emotion. Without force the change is
	// applied after the settling delay, and a newer request replaces a
	// pending one.
	ShowEmotion(name string, force bool)
	// Update applies any pending emotion whose delay has elapsed.
	// Call it once per control-loop tick.
	Update()
	// Current returns the emotion on screen right now.
	Current() string
}

// Config holds display timing.
type Config struct {
	// ChangeDelay is how long a non-forced emotion change waits before
	// taking effect.
	ChangeDelay time.Duration
}

// DefaultConfig returns display timing defaults.
func DefaultConfig() Config {
	return Config{ChangeDelay: 300 * time.Millisecond}
}

// Manager sequences emotion changes onto a Renderer.
type Manager struct {
	renderer Renderer
	cfg      Config

	mu        sync.Mutex
	current   string
	pending   string
	pendingAt time.Time
}

// NewManager creates a display manager showing the neutral face.
func NewManager(renderer Renderer, cfg Config) *Manager {
	m := &Manager{renderer: renderer, cfg: cfg, current: EmotionNeutral}
	if renderer != nil {
		renderer.Render(EmotionNeutral)
	}
	return m
}

// ShowEmotion requests an emotion change. Forced changes apply
// immediately and discard any pending change.
func (m *Manager) ShowEmotion(name string, force bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if force {
		m.pending = ""
		m.apply(name)
		return
	}
	if name == m.current {
		m.pending = ""
		return
	}
	m.pending = name
	m.pendingAt = time.Now()
}

// Update promotes a pending emotion once its delay has elapsed.
func (m *Manager) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == "" {
		return
	}
	if time.Since(m.pendingAt) < m.cfg.ChangeDelay {
		return
	}
	name := m.pending
	m.pending = ""
	m.apply(name)
}

// Current returns the emotion on screen.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) apply(name string) {
	if name == m.current {
		return
	}
	m.current = name
	if m.renderer != nil {
		m.renderer.Render(name)
	}
	log.Debug("emotion", "name", name)
}

// ConsoleRenderer logs emotions instead of drawing them. Used when the
// screen is absent or for bench runs.
type ConsoleRenderer struct{}

func (ConsoleRenderer) Render(emotion string) {
	log.Info("face", "emotion", emotion)
}
