// Package engine is the robot's brain: a single-threaded control loop
// dispatching on the behavior state machine. All concurrent inputs
// (voice events, the debug console, touch) are queued and drained at
// the top of each tick, so state transitions only ever happen on the
// loop goroutine.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/walle-robot/go-walle/internal/log"
	"github.com/walle-robot/go-walle/pkg/audio"
	"github.com/walle-robot/go-walle/pkg/behavior"
	"github.com/walle-robot/go-walle/pkg/display"
	"github.com/walle-robot/go-walle/pkg/interaction"
	"github.com/walle-robot/go-walle/pkg/ranging"
	"github.com/walle-robot/go-walle/pkg/recognition"
	"github.com/walle-robot/go-walle/pkg/recorder"
	"github.com/walle-robot/go-walle/pkg/search"
	"github.com/walle-robot/go-walle/pkg/vision"
	"github.com/walle-robot/go-walle/pkg/voice"
)

// Vision is the face pipeline surface the engine drives. Implemented by
// *vision.Recognizer; tests use a fake.
type Vision interface {
	DetectOnly() ([]vision.Observation, error)
	Recognize() ([]vision.Observation, error)
	Register(name string) (string, error)
	FrameWidth() int
}

// Motor is the drive surface the engine needs directly.
type Motor interface {
	Forward(speed int)
	Backward(speed int)
	TurnLeft(speed int)
	TurnRight(speed int)
	Stop()
	Enabled() bool
}

// Config holds engine-level timing.
type Config struct {
	// TickInterval is the pacing of the control loop.
	TickInterval time.Duration
	// FamiliarTimeout is how long the robot stays with a familiar
	// person after last seeing their face before heading home.
	FamiliarTimeout time.Duration
	// ExcitedHold is how long a touch keeps the excited face up.
	ExcitedHold time.Duration
}

// DefaultConfig returns engine timing defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:    10 * time.Millisecond,
		FamiliarTimeout: 60 * time.Second,
		ExcitedHold:     5 * time.Second,
	}
}

// Deps are the engine's collaborators. Vision, Motor, Proximity,
// Display, Touch, Player, and Listener may be nil; the engine degrades
// to whatever hardware it has.
type Deps struct {
	Vision      Vision
	Motor       Motor
	Recorder    *recorder.Recorder
	Recognition *recognition.Handler
	Sweep       *search.Controller
	Servo       *behavior.Controller
	Social      *interaction.Handler
	Proximity   ranging.Proximity
	Display     display.Display
	Touch       display.TouchSource
	Player      audio.Player
	Listener    *voice.Listener
}

type eventKind int

const (
	eventWake eventKind = iota
	eventCommand
)

type event struct {
	kind eventKind
	cmd  string
}

// Engine runs the behavior state machine.
type Engine struct {
	cfg  Config
	deps Deps

	// OnTransition, when set, is called on the loop goroutine after
	// every state change. The telemetry hub hangs off this hook.
	OnTransition func(from, to State)

	evMu   sync.Mutex
	events []event

	state      State
	stateStart time.Time
	frame      int

	excitedUntil  time.Time
	familiarUntil time.Time
	flinched      bool
	singing       bool
}

// New creates an engine in the idle state.
func New(cfg Config, deps Deps) *Engine {
	return &Engine{cfg: cfg, deps: deps, state: StateIdle, stateStart: time.Now()}
}

// State returns the current behavior state.
func (e *Engine) State() State {
	return e.state
}

// Snapshot is a point-in-time telemetry view of the engine.
type Snapshot struct {
	State        string `json:"state"`
	StateSince   string `json:"state_since"`
	Emotion      string `json:"emotion"`
	Awake        bool   `json:"awake"`
	Registering  bool   `json:"registering"`
	ActionCount  int    `json:"action_count"`
	Returning    bool   `json:"returning"`
	SensorStatus string `json:"sensor_status"`
}

// Snap collects telemetry for the dashboard. Reads of loop-owned fields
// are racy by design; the dashboard tolerates a stale tick.
func (e *Engine) Snap() Snapshot {
	s := Snapshot{
		State:       e.state.String(),
		StateSince:  e.stateStart.Format(time.RFC3339),
		Awake:       e.deps.Social.Awake(),
		Registering: e.deps.Recognition.Registering(),
		ActionCount: e.deps.Recorder.ActionCount(),
		Returning:   e.deps.Recorder.Returning(),
	}
	if e.deps.Display != nil {
		s.Emotion = e.deps.Display.Current()
	}
	if e.deps.Proximity != nil {
		s.SensorStatus = e.deps.Proximity.Status()
	}
	return s
}

// HandleWake queues a wake event. Safe from any goroutine; wired as the
// voice listener's OnWake callback.
func (e *Engine) HandleWake() {
	e.evMu.Lock()
	e.events = append(e.events, event{kind: eventWake})
	e.evMu.Unlock()
}

// HandleCommand queues a voice command. Safe from any goroutine.
func (e *Engine) HandleCommand(cmd string) {
	e.evMu.Lock()
	e.events = append(e.events, event{kind: eventCommand, cmd: cmd})
	e.evMu.Unlock()
}

// Run drives the control loop until ctx is done, then stops the motors.
func (e *Engine) Run(ctx context.Context) {
	log.Info("engine started", "tick", e.cfg.TickInterval)
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if e.deps.Motor != nil {
				e.deps.Motor.Stop()
			}
			if e.deps.Player != nil {
				e.deps.Player.StopAll()
			}
			log.Info("engine stopped")
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one iteration of the control loop.
func (e *Engine) Tick() {
	e.frame++
	e.drainEvents()

	// A blocking performance owns the robot; everything else waits.
	if e.deps.Social.Busy() {
		return
	}

	e.stepState()
	e.checkSongFinished()
	e.checkProximityScare()
	e.pollTouch()
	e.stepRegistration()
	e.updateEmotion()
	if e.deps.Display != nil {
		e.deps.Display.Update()
	}
}

func (e *Engine) drainEvents() {
	e.evMu.Lock()
	pending := e.events
	e.events = nil
	e.evMu.Unlock()

	for _, ev := range pending {
		switch ev.kind {
		case eventWake:
			e.handleWake()
		case eventCommand:
			e.handleCommand(ev.cmd)
		}
	}
}

// handleWake wakes the robot. Only honored from IDLE, and never while a
// registration is collecting samples.
func (e *Engine) handleWake() {
	if e.state != StateIdle || e.deps.Recognition.Registering() {
		log.Debug("wake ignored", "state", e.state)
		return
	}
	e.deps.Recorder.Clear()
	e.deps.Sweep.Reset()
	e.deps.Social.Wake()
	if e.deps.Player != nil {
		e.deps.Player.PlaySound("awake", true)
	}
	e.changeState(StateSearching)
}

// handleCommand applies the command gating: nothing while returning or
// asleep; sing, spin, and back only while with a familiar person;
// friends only while a face is engaged.
func (e *Engine) handleCommand(cmd string) {
	if e.state == StateReturning || !e.deps.Social.Awake() {
		log.Debug("command ignored", "cmd", cmd, "state", e.state)
		return
	}

	switch cmd {
	case voice.CommandSing:
		if e.state != StateFamiliarStay {
			return
		}
		if e.deps.Listener != nil {
			e.deps.Listener.Pause()
		}
		if e.deps.Social.DoSing() {
			e.singing = true
		} else if e.deps.Listener != nil {
			e.deps.Listener.Resume()
		}

	case voice.CommandSpin:
		if e.state != StateFamiliarStay {
			return
		}
		if e.deps.Listener != nil {
			e.deps.Listener.Pause()
		}
		e.deps.Social.DoSpin()
		if e.deps.Listener != nil {
			e.deps.Listener.Resume()
		}
		e.excitedUntil = time.Now().Add(e.cfg.ExcitedHold)

	case voice.CommandBack:
		if e.state != StateFamiliarStay {
			return
		}
		e.startReturning()

	case voice.CommandFriends:
		// Shocked counts: introducing a stranger is how they stop
		// being one.
		if e.state != StateTracking && e.state != StateFamiliarStay && e.state != StateShocked {
			return
		}
		if e.deps.Vision == nil || e.deps.Recognition.Registering() {
			return
		}
		e.deps.Recognition.StartRegistration("")
	}
}

func (e *Engine) stepState() {
	switch e.state {
	case StateIdle:
		// Passive; wake events, touch, and the proximity scare drive
		// transitions out.

	case StateSearching:
		e.stepSearching()

	case StateTracking:
		e.stepTracking()

	case StateFamiliarStay:
		e.stepFamiliarStay()

	case StateStrangerObserve:
		if !e.flinched {
			e.flinched = true
			e.deps.Social.DoFlinch()
		}
		e.changeState(StateShocked)

	case StateShocked:
		e.stepShocked()

	case StateReturning:
		e.stepReturning()
	}
}

func (e *Engine) stepSearching() {
	if e.deps.Vision == nil {
		e.changeState(StateIdle)
		return
	}
	if !e.deps.Social.Awake() {
		// Dozed off mid-search; head home if there is anything to undo.
		if e.deps.Recorder.HasActions() {
			e.startReturning()
		} else {
			e.deps.Social.Sleep()
			e.changeState(StateIdle)
		}
		return
	}

	if e.deps.Sweep.Done() {
		log.Info("sweep complete, nobody found")
		if e.deps.Recorder.HasActions() {
			e.startReturning()
		} else {
			e.deps.Social.Sleep()
			e.changeState(StateIdle)
		}
		return
	}

	obs, found := e.deps.Sweep.RotateAndDetect(e.deps.Motor, e.deps.Recorder, e.detectLargest)
	if !found {
		return
	}
	log.Info("face spotted", "width", obs.Width())
	e.deps.Sweep.CenterFace(e.deps.Motor, e.deps.Recorder, e.deps.Vision.FrameWidth(), e.detectLargest)
	e.deps.Recognition.ResetCounters()
	e.deps.Recognition.SetActiveLabel("")
	e.deps.Servo.ResetTracking()
	e.changeState(StateTracking)
}

func (e *Engine) stepTracking() {
	obs, found := e.observe()
	if !found {
		if e.deps.Recognition.OnFaceLost() {
			log.Info("face lost while tracking")
			e.deps.Sweep.Reset()
			e.changeState(StateSearching)
		}
		return
	}

	e.deps.Recognition.OnFaceDetected()
	e.deps.Social.ExtendAwake()
	if obs.Familiar() {
		e.deps.Recognition.UpdateCounter(recognition.LabelFamiliar)
	} else {
		e.deps.Recognition.UpdateCounter(recognition.LabelStranger)
	}
	e.deps.Servo.TrackFacePosition(obs, e.deps.Vision.FrameWidth())

	switch {
	case e.deps.Recognition.Confirmed(recognition.LabelFamiliar):
		e.deps.Recognition.SetActiveLabel(recognition.LabelFamiliar)
		e.deps.Social.ClearStranger()
		if e.deps.Player != nil {
			e.deps.Player.PlaySound("happy", false)
		}
		// The approach ends close, blocked, or out of time; the visit
		// starts either way, with the person as near as they will get.
		e.deps.Servo.ApproachFamiliar(e.detectFamiliar, e.obstacleNear)
		e.deps.Recognition.ResetCounters()
		e.familiarUntil = time.Now().Add(e.cfg.FamiliarTimeout)
		e.changeState(StateFamiliarStay)

	case e.deps.Recognition.Confirmed(recognition.LabelStranger):
		log.Info("stranger confirmed")
		e.deps.Recognition.SetActiveLabel(recognition.LabelStranger)
		e.deps.Recognition.ResetCounters()
		if e.deps.Display != nil {
			e.deps.Display.ShowEmotion(display.EmotionShocked, true)
		}
		if e.deps.Player != nil {
			e.deps.Player.PlaySound("thinking", false)
		}
		e.deps.Social.MarkStranger()
		e.changeState(StateShocked)
	}
}

// stepShocked watches a confirmed stranger: track their face, head
// home once patience runs out or they leave. A touch lands in
// pollTouch and detours through the flinch.
func (e *Engine) stepShocked() {
	e.deps.Social.ExtendAwake()

	if e.deps.Social.StrangerExpired() {
		log.Info("lost interest in the stranger, heading home")
		e.deps.Social.ClearStranger()
		e.startReturning()
		return
	}

	obs, found := e.observe()
	if !found {
		if e.deps.Recognition.OnFaceLost() {
			log.Info("stranger left, heading home")
			e.deps.Social.ClearStranger()
			e.startReturning()
		}
		return
	}
	e.deps.Recognition.OnFaceDetected()
	e.deps.Servo.TrackFacePosition(obs, e.deps.Vision.FrameWidth())
}

func (e *Engine) stepFamiliarStay() {
	if time.Now().After(e.familiarUntil) {
		log.Info("familiar visit over, heading home")
		e.startReturning()
		return
	}

	obs, found := e.observe()
	if !found {
		if e.deps.Recognition.OnFaceLost() {
			log.Info("familiar person left")
			e.deps.Sweep.Reset()
			e.deps.Servo.ResetTracking()
			e.changeState(StateSearching)
		}
		return
	}

	e.deps.Recognition.OnFaceDetected()
	e.deps.Social.ExtendAwake()
	// The visit clock only runs against an absent face; as long as the
	// person is in view the robot stays.
	e.familiarUntil = time.Now().Add(e.cfg.FamiliarTimeout)
	e.deps.Servo.FollowFamiliar(obs, e.deps.Vision.FrameWidth(), e.obstacleNear)
}

func (e *Engine) stepReturning() {
	done := e.deps.Recorder.ExecuteReturnAction(e.deps.Motor, e.obstacleNearCached)
	if done {
		if e.deps.Motor != nil {
			e.deps.Motor.Stop()
		}
		e.deps.Social.Sleep()
		e.deps.Sweep.Reset()
		e.changeState(StateIdle)
	}
}

// startReturning switches to the return journey, or straight to idle
// sleep when there is no history to retrace.
func (e *Engine) startReturning() {
	if e.state == StateFamiliarStay && e.deps.Player != nil {
		e.deps.Player.PlaySound("bye", false)
	}
	if err := e.deps.Recorder.StartReturning(); err != nil {
		e.deps.Social.Sleep()
		e.changeState(StateIdle)
		return
	}
	e.changeState(StateReturning)
}

// checkSongFinished resumes the voice listener once the song the sing
// command started has ended.
func (e *Engine) checkSongFinished() {
	if !e.singing {
		return
	}
	if e.deps.Player != nil && e.deps.Player.MusicPlaying() {
		return
	}
	e.singing = false
	if e.deps.Listener != nil {
		e.deps.Listener.Resume()
	}
	log.Debug("song finished")
}

// checkProximityScare handles something sneaking up on a dozing robot.
// The reaction is emotional only: motors stop and the scared face and
// sound come up, but the robot stays in IDLE. The scare ends once the
// object has actually cleared and stayed clear through the recovery
// delay; every near reading restarts that clock.
func (e *Engine) checkProximityScare() {
	if e.state != StateIdle || e.deps.Proximity == nil || !e.deps.Social.RangingEnabled() ||
		e.deps.Recognition.Registering() {
		return
	}

	if e.deps.Proximity.ObjectNear(true) {
		if !e.deps.Social.Scared() {
			log.Info("proximity scare")
			if e.deps.Motor != nil {
				e.deps.Motor.Stop()
			}
			if e.deps.Player != nil {
				e.deps.Player.PlaySound("scared", false)
			}
		}
		e.deps.Social.MarkScared()
		return
	}

	if e.deps.Social.ScareRecovered() {
		log.Debug("object cleared, settling down")
	}
}

func (e *Engine) pollTouch() {
	if e.deps.Touch == nil {
		return
	}
	region := e.deps.Touch.Poll()
	if region == display.TouchNone {
		return
	}
	log.Debug("touch", "region", region)

	// A touch interrupts the song.
	if e.singing {
		if e.deps.Player != nil {
			e.deps.Player.StopAll()
		}
		e.singing = false
		if e.deps.Listener != nil {
			e.deps.Listener.Resume()
		}
	}

	switch e.state {
	case StateIdle:
		e.handleWake()
		if e.deps.Display != nil {
			e.deps.Display.ShowEmotion(display.EmotionCurious, true)
		}
	case StateShocked:
		e.changeState(StateStrangerObserve)
	case StateFamiliarStay:
		e.familiarUntil = time.Now().Add(e.cfg.FamiliarTimeout)
		e.excitedUntil = time.Now().Add(e.cfg.ExcitedHold)
	default:
		e.excitedUntil = time.Now().Add(e.cfg.ExcitedHold)
	}
}

// stepRegistration collects one registration sample on eligible frames.
func (e *Engine) stepRegistration() {
	if !e.deps.Recognition.Registering() || e.deps.Vision == nil {
		return
	}
	if e.deps.Recognition.SkipRegistrationFrame(e.frame) {
		return
	}
	e.deps.Recognition.HandleRegistration(e.deps.Vision, func() {
		if e.deps.Player != nil {
			e.deps.Player.PlaySound("friends", true)
		}
		e.deps.Recognition.ResetCounters()
		e.changeState(StateTracking)
	})
}

// updateEmotion arbitrates the face shown for the current state. The
// pinned wake face and the one-shot scare face take priority.
func (e *Engine) updateEmotion() {
	if e.deps.Display == nil || e.deps.Social.HoldingWakeFace() {
		return
	}

	switch e.state {
	case StateIdle:
		switch {
		case e.deps.Social.Scared():
			e.deps.Display.ShowEmotion(display.EmotionScared, false)
		case !e.deps.Social.Awake():
			e.deps.Display.ShowEmotion(display.EmotionSleep, false)
		default:
			e.deps.Display.ShowEmotion(display.EmotionSleepy, false)
		}
	case StateSearching:
		e.deps.Display.ShowEmotion(display.EmotionCurious, false)
	case StateTracking:
		if e.deps.Recognition.ActiveLabel() == recognition.LabelStranger {
			e.deps.Display.ShowEmotion(display.EmotionCurious, false)
		} else {
			e.deps.Display.ShowEmotion(display.EmotionNeutral, false)
		}
	case StateFamiliarStay:
		switch {
		case e.deps.Player != nil && e.deps.Player.MusicPlaying():
			e.deps.Display.ShowEmotion(display.EmotionHappy, false)
		case time.Now().Before(e.excitedUntil):
			e.deps.Display.ShowEmotion(display.EmotionExcited, false)
		default:
			e.deps.Display.ShowEmotion(display.EmotionHappy, false)
		}
	case StateShocked:
		if !e.deps.Recognition.Registering() {
			e.deps.Display.ShowEmotion(display.EmotionShocked, false)
		}
	case StateReturning:
		e.deps.Display.ShowEmotion(display.EmotionNeutral, false)
	}
}

// observe grabs the current largest face, running full recognition only
// on non-strided frames and falling back to cheap detection otherwise.
func (e *Engine) observe() (vision.Observation, bool) {
	if e.deps.Vision == nil {
		return vision.Observation{}, false
	}
	var (
		obs []vision.Observation
		err error
	)
	if e.deps.Recognition.SkipRecognitionFrame(e.frame) {
		obs, err = e.deps.Vision.DetectOnly()
	} else {
		obs, err = e.deps.Vision.Recognize()
	}
	if err != nil {
		log.Debug("observation failed", "error", err)
		return vision.Observation{}, false
	}
	return vision.SelectLargest(obs)
}

// detectLargest is the cheap detection callback handed to the sweep.
func (e *Engine) detectLargest() (vision.Observation, bool) {
	if e.deps.Vision == nil {
		return vision.Observation{}, false
	}
	obs, err := e.deps.Vision.DetectOnly()
	if err != nil {
		return vision.Observation{}, false
	}
	return vision.SelectLargest(obs)
}

// detectFamiliar only reports faces recognized as familiar; handed to
// the approach controller so it cannot chase a stranger.
func (e *Engine) detectFamiliar() (vision.Observation, bool) {
	if e.deps.Vision == nil {
		return vision.Observation{}, false
	}
	obs, err := e.deps.Vision.Recognize()
	if err != nil {
		return vision.Observation{}, false
	}
	familiar := obs[:0]
	for _, o := range obs {
		if o.Familiar() {
			familiar = append(familiar, o)
		}
	}
	return vision.SelectLargest(familiar)
}

func (e *Engine) obstacleNear() bool {
	if e.deps.Proximity == nil {
		return false
	}
	return e.deps.Proximity.ObjectNear(false)
}

// obstacleNearCached is the variant used in tight replay loops.
func (e *Engine) obstacleNearCached() bool {
	if e.deps.Proximity == nil {
		return false
	}
	return e.deps.Proximity.ObjectNear(true)
}

func (e *Engine) changeState(to State) {
	if to == e.state {
		return
	}
	from := e.state
	e.state = to
	e.stateStart = time.Now()
	if to == StateStrangerObserve {
		e.flinched = false
	}
	log.Info("state", "from", from, "to", to)
	if e.OnTransition != nil {
		e.OnTransition(from, to)
	}
}
