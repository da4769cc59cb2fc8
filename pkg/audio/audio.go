// Package audio plays the robot's sound effects and music. A cooldown
// gate keeps reactive states from machine-gunning effects, and long
// audio (music) suppresses effects entirely while it plays.
package audio

import (
	"sync"
	"time"

	"github.com/walle-robot/go-walle/internal/log"
)

// Player is the audio surface the rest of the robot uses.
type Player interface {
	// PlaySound plays a named effect asynchronously. Force bypasses the
	// cooldown gate. Returns false when the sound was suppressed.
	PlaySound(name string, force bool) bool
	// PlayFile plays an audio file. With blocking set the call returns
	// only after playback finishes.
	PlayFile(path string, blocking bool) error
	// MusicPlaying reports whether long audio is currently active.
	MusicPlaying() bool
	// StopAll cuts all playback immediately.
	StopAll()
}

// Config holds playback gating parameters.
type Config struct {
	// SoundDir is where named effects live, as <name>.wav files.
	SoundDir string
	// MinInterval is the cooldown between non-forced effects.
	MinInterval time.Duration
}

// DefaultConfig returns playback defaults.
func DefaultConfig() Config {
	return Config{
		SoundDir:    "sounds",
		MinInterval: 2 * time.Second,
	}
}

// gate implements the shared cooldown/suppression policy for players.
type gate struct {
	mu         sync.Mutex
	lastSound  time.Time
	musicUntil time.Time
	minGap     time.Duration
}

// allow reports whether a non-forced effect may play now, claiming the
// cooldown slot when it may.
func (g *gate) allow(force bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if now.Before(g.musicUntil) && !force {
		return false
	}
	if !force && now.Sub(g.lastSound) < g.minGap {
		return false
	}
	g.lastSound = now
	return true
}

func (g *gate) markMusic(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.musicUntil = time.Now().Add(d)
}

func (g *gate) clearMusic() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.musicUntil = time.Time{}
}

func (g *gate) musicPlaying() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().Before(g.musicUntil)
}

// Mock is an in-memory Player for tests. It honors the cooldown gate
// but produces no sound.
type Mock struct {
	gate
	mu     sync.Mutex
	Played []string
}

// NewMock returns a silent test player with the given cooldown.
func NewMock(minInterval time.Duration) *Mock {
	m := &Mock{}
	m.minGap = minInterval
	return m
}

func (m *Mock) PlaySound(name string, force bool) bool {
	if !m.allow(force) {
		return false
	}
	m.mu.Lock()
	m.Played = append(m.Played, name)
	m.mu.Unlock()
	log.Debug("mock sound", "name", name)
	return true
}

func (m *Mock) PlayFile(path string, blocking bool) error {
	m.mu.Lock()
	m.Played = append(m.Played, path)
	m.mu.Unlock()
	return nil
}

func (m *Mock) MusicPlaying() bool { return m.gate.musicPlaying() }

// SetMusicFor marks music as playing for d; tests use it to exercise
// effect suppression.
func (m *Mock) SetMusicFor(d time.Duration) { m.markMusic(d) }

func (m *Mock) StopAll() { m.clearMusic() }
