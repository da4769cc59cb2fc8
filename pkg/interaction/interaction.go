// Package interaction owns the robot's social timing and one-shot
// actions: the awake window and its activity extensions, the stranger
// patience timer, the post-scare sensor recovery window, and blocking
// performances like singing, spinning, and flinching away from a touch.
package interaction

import (
	"sync"
	"time"

	"github.com/walle-robot/go-walle/internal/log"
	"github.com/walle-robot/go-walle/pkg/audio"
	"github.com/walle-robot/go-walle/pkg/display"
	"github.com/walle-robot/go-walle/pkg/recorder"
)

// Motor is the drive surface the one-shot actions need.
type Motor interface {
	Forward(speed int)
	Backward(speed int)
	TurnLeft(speed int)
	TurnRight(speed int)
	Stop()
	Enabled() bool
}

// Config holds interaction timing.
type Config struct {
	// AwakeDuration is how long the robot stays awake after the last
	// activity.
	AwakeDuration time.Duration
	// WakeEmotionDuration is how long the wake-up face is held before
	// normal emotion arbitration resumes.
	WakeEmotionDuration time.Duration
	// StrangerTimeout is how long the robot watches an unknown person
	// before losing interest.
	StrangerTimeout time.Duration
	// RangingRecovery disables proximity reactions after a scare so one
	// close object cannot retrigger the flinch in a loop.
	RangingRecovery time.Duration

	// SpinDuration and SpinSpeed define the spin performance. A full
	// spin nets out to the original heading, so it is not recorded.
	SpinDuration time.Duration
	SpinSpeed    int

	// FlinchDuration is the recorded backward jolt of a flinch, and
	// FlinchPause the freeze that follows it.
	FlinchDuration time.Duration
	FlinchPause    time.Duration

	// SongFile is the audio played by the sing performance.
	SongFile string
}

// DefaultConfig returns the robot's social timing.
func DefaultConfig() Config {
	return Config{
		AwakeDuration:       30 * time.Second,
		WakeEmotionDuration: 5 * time.Second,
		StrangerTimeout:     55 * time.Second,
		RangingRecovery:     2 * time.Second,
		SpinDuration:        4500 * time.Millisecond,
		SpinSpeed:           60,
		FlinchDuration:      1500 * time.Millisecond,
		FlinchPause:         500 * time.Millisecond,
		SongFile:            "sounds/song.wav",
	}
}

// Handler tracks the social timers and performs one-shot actions.
type Handler struct {
	cfg     Config
	motor   Motor
	rec     *recorder.Recorder
	display display.Display
	player  audio.Player

	mu            sync.Mutex
	awakeUntil    time.Time
	wakeFaceUntil time.Time
	strangerSince time.Time
	rangingOffTil time.Time
	scaredSince   time.Time
	scared        bool
	latched       bool
}

// NewHandler creates an interaction handler. display and player may be
// nil in degraded runs.
func NewHandler(cfg Config, motor Motor, rec *recorder.Recorder, disp display.Display, player audio.Player) *Handler {
	return &Handler{cfg: cfg, motor: motor, rec: rec, display: disp, player: player}
}

// Wake opens (or reopens) the awake window and holds the wake face.
func (h *Handler) Wake() {
	h.mu.Lock()
	h.awakeUntil = time.Now().Add(h.cfg.AwakeDuration)
	h.wakeFaceUntil = time.Now().Add(h.cfg.WakeEmotionDuration)
	h.mu.Unlock()
	if h.display != nil {
		h.display.ShowEmotion(display.EmotionExcited, true)
	}
	log.Info("awake", "for", h.cfg.AwakeDuration)
}

// ExtendAwake pushes the awake deadline out from now. Any observed
// activity keeps the robot from dozing off mid-interaction.
func (h *Handler) ExtendAwake() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if time.Now().Before(h.awakeUntil) {
		h.awakeUntil = time.Now().Add(h.cfg.AwakeDuration)
	}
}

// Awake reports whether the awake window is open.
func (h *Handler) Awake() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Now().Before(h.awakeUntil)
}

// HoldingWakeFace reports whether the wake-up face is still pinned.
func (h *Handler) HoldingWakeFace() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Now().Before(h.wakeFaceUntil)
}

// Sleep closes the awake window immediately.
func (h *Handler) Sleep() {
	h.mu.Lock()
	h.awakeUntil = time.Time{}
	h.wakeFaceUntil = time.Time{}
	h.mu.Unlock()
	if h.display != nil {
		h.display.ShowEmotion(display.EmotionSleep, true)
	}
	log.Info("going to sleep")
}

// MarkStranger starts the stranger patience timer if it is not already
// running.
func (h *Handler) MarkStranger() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.strangerSince.IsZero() {
		h.strangerSince = time.Now()
	}
}

// ClearStranger resets the stranger timer.
func (h *Handler) ClearStranger() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.strangerSince = time.Time{}
}

// RefreshStranger restarts the patience timer when it is running; an
// interaction with the stranger buys them more observation time.
func (h *Handler) RefreshStranger() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.strangerSince.IsZero() {
		h.strangerSince = time.Now()
	}
}

// StrangerExpired reports whether the robot has watched a stranger for
// longer than its patience.
func (h *Handler) StrangerExpired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.strangerSince.IsZero() && time.Since(h.strangerSince) > h.cfg.StrangerTimeout
}

// MarkScared notes a proximity scare, restarting the recovery clock.
// Call it on every near reading so recovery only starts counting once
// the object is actually gone.
func (h *Handler) MarkScared() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scared = true
	h.scaredSince = time.Now()
}

// Scared reports whether a proximity scare is still in effect.
func (h *Handler) Scared() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scared
}

// ScareRecovered reports whether the scare has aged past the recovery
// delay, clearing it when it has. Only meaningful once the sensor
// reads clear; near readings keep resetting the clock via MarkScared.
func (h *Handler) ScareRecovered() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.scared || time.Since(h.scaredSince) < h.cfg.RangingRecovery {
		return false
	}
	h.scared = false
	return true
}

// RangingEnabled reports whether proximity reactions are allowed; they
// are suppressed during the post-scare recovery window.
func (h *Handler) RangingEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !time.Now().Before(h.rangingOffTil)
}

// suspendRanging opens the recovery window.
func (h *Handler) suspendRanging() {
	h.mu.Lock()
	h.rangingOffTil = time.Now().Add(h.cfg.RangingRecovery)
	h.mu.Unlock()
}

// Busy reports whether a blocking performance is running. The engine
// skips its tick while busy.
func (h *Handler) Busy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latched
}

// latch claims the busy flag; returns false when already busy.
func (h *Handler) latch() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latched {
		return false
	}
	h.latched = true
	return true
}

func (h *Handler) unlatch() {
	h.mu.Lock()
	h.latched = false
	h.mu.Unlock()
}

// DoSing starts the song: happy face and non-blocking playback. The
// caller watches MusicPlaying to know when the performance ends (and to
// resume the voice listener it paused, so the robot does not hear its
// own singing).
func (h *Handler) DoSing() bool {
	log.Info("performing: sing")
	if h.display != nil {
		h.display.ShowEmotion(display.EmotionHappy, true)
	}
	if h.player != nil {
		if err := h.player.PlayFile(h.cfg.SongFile, false); err != nil {
			log.Warn("song playback failed", "error", err)
			return false
		}
	}
	h.ExtendAwake()
	return true
}

// DoSpin performs a full spin in place. The net heading change is zero,
// so nothing is recorded for the return journey. Blocking.
func (h *Handler) DoSpin() bool {
	if !h.latch() {
		return false
	}
	defer h.unlatch()

	log.Info("performing: spin")
	if h.display != nil {
		h.display.ShowEmotion(display.EmotionExcited, true)
	}
	if h.motor != nil && h.motor.Enabled() {
		h.motor.TurnRight(h.cfg.SpinSpeed)
		time.Sleep(h.cfg.SpinDuration)
		h.motor.Stop()
	} else {
		time.Sleep(h.cfg.SpinDuration)
	}
	h.ExtendAwake()
	return true
}

// DoFlinch jolts backward in fright, freezes, and shows the shocked
// face. The jolt is recorded so the return journey can undo it, and it
// counts as an interaction, restarting the stranger patience timer.
// Proximity reactions are suppressed for the recovery window so a wall
// behind the jolt cannot trigger a scare on top of it. Blocking.
func (h *Handler) DoFlinch() bool {
	if !h.latch() {
		return false
	}
	defer h.unlatch()

	log.Info("performing: flinch")
	if h.player != nil {
		h.player.PlaySound("scared", true)
	}

	h.rec.StartAction(recorder.KindMove, recorder.Backward)
	if h.motor != nil && h.motor.Enabled() {
		h.motor.Backward(0)
		time.Sleep(h.cfg.FlinchDuration)
		h.motor.Stop()
	} else {
		time.Sleep(h.cfg.FlinchDuration)
	}
	h.rec.StopAction()

	time.Sleep(h.cfg.FlinchPause)
	if h.display != nil {
		h.display.ShowEmotion(display.EmotionShocked, true)
	}
	h.RefreshStranger()
	h.suspendRanging()
	return true
}

// DoEmotionAction shows an emotion and plays its sound, non-blocking.
func (h *Handler) DoEmotionAction(emotion, sound string) {
	if h.display != nil {
		h.display.ShowEmotion(emotion, false)
	}
	if h.player != nil && sound != "" {
		h.player.PlaySound(sound, false)
	}
}
