// Package recorder keeps an append-only, reversible log of the robot's
// primitive motions so the robot can retrace its path back to where it
// started without any external localization.
package recorder

import (
	"errors"
	"sync"
	"time"

	"github.com/walle-robot/go-walle/internal/log"
)

// Kind classifies a recorded motion.
type Kind string

const (
	KindMove   Kind = "move"
	KindRotate Kind = "rotate"
)

// Direction is the direction of a recorded motion.
type Direction string

const (
	Left     Direction = "left"
	Right    Direction = "right"
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// Reverse returns the opposite direction. Directions without an opposite
// map to themselves.
func Reverse(d Direction) Direction {
	switch d {
	case Left:
		return Right
	case Right:
		return Left
	case Forward:
		return Backward
	case Backward:
		return Forward
	default:
		return d
	}
}

// Action is a single recorded motion. Immutable once appended.
type Action struct {
	Kind      Kind
	Direction Direction
	Duration  time.Duration
	Timestamp time.Time
}

// Motor is the subset of motor control the return replay needs.
type Motor interface {
	Forward(speed int)
	Backward(speed int)
	TurnLeft(speed int)
	TurnRight(speed int)
	Stop()
	Enabled() bool
}

// Config holds replay tuning for the recorder.
type Config struct {
	// MinDuration is the floor below which actions are discarded rather
	// than recorded, so nano-adjustments do not flood the history.
	MinDuration time.Duration

	// StepDuration and StepPause shape the pulsed rotation replay.
	StepDuration time.Duration
	StepPause    time.Duration

	// RotateSpeed is the motor speed used when replaying rotations.
	RotateSpeed int

	// SettleDelay is the pause after each replayed action.
	SettleDelay time.Duration
}

// DefaultConfig returns the recommended recorder configuration.
func DefaultConfig() Config {
	return Config{
		MinDuration:  50 * time.Millisecond,
		StepDuration: 150 * time.Millisecond,
		StepPause:    80 * time.Millisecond,
		RotateSpeed:  36,
		SettleDelay:  100 * time.Millisecond,
	}
}

// ErrNoHistory is returned by StartReturning when there is nothing to replay.
var ErrNoHistory = errors.New("recorder: action history is empty")

// pendingAction is an in-flight motion that has been started but not
// finalized yet.
type pendingAction struct {
	kind      Kind
	direction Direction
	started   time.Time
}

// Recorder records primitive motions and replays them in reverse.
//
// A single lock guards the in-flight action slot: a background mover
// goroutine and the control loop may both touch it, and starting a new
// action must always finalize the resident one first so no motion is
// silently lost.
type Recorder struct {
	cfg Config

	mu      sync.Mutex
	history []Action
	current *pendingAction

	returning   bool
	returnIndex int
}

// New creates a Recorder with the given configuration.
func New(cfg Config) *Recorder {
	return &Recorder{cfg: cfg}
}

// StartAction begins tracking a motion. If a prior motion is still
// in flight it is finalized first. No-op while returning.
func (r *Recorder) StartAction(kind Kind, direction Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.returning {
		return
	}
	if r.current != nil {
		r.finishLocked()
	}
	r.current = &pendingAction{kind: kind, direction: direction, started: time.Now()}
}

// StopAction finalizes the in-flight motion, appending it to the history
// if it lasted at least MinDuration.
func (r *Recorder) StopAction() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked()
}

func (r *Recorder) finishLocked() {
	if r.current == nil {
		return
	}
	duration := time.Since(r.current.started)
	if duration >= r.cfg.MinDuration {
		r.history = append(r.history, Action{
			Kind:      r.current.kind,
			Direction: r.current.direction,
			Duration:  duration,
			Timestamp: time.Now(),
		})
	}
	r.current = nil
}

// Record appends a motion whose duration was measured by the caller.
// The MinDuration floor still applies.
func (r *Recorder) Record(kind Kind, direction Direction, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.returning || duration < r.cfg.MinDuration {
		return
	}
	r.history = append(r.history, Action{
		Kind:      kind,
		Direction: direction,
		Duration:  duration,
		Timestamp: time.Now(),
	})
}

// CurrentAction returns a copy of the in-flight motion, if any.
func (r *Recorder) CurrentAction() (Kind, Direction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", "", false
	}
	return r.current.kind, r.current.direction, true
}

// Clear drops the history and any in-flight motion.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
	r.current = nil
}

// HasActions reports whether any motion has been recorded.
func (r *Recorder) HasActions() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history) > 0
}

// ActionCount returns the number of recorded motions.
func (r *Recorder) ActionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// Returning reports whether a return replay is in progress.
func (r *Recorder) Returning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.returning
}

// StartReturning finalizes any in-flight motion, freezes the history and
// places the replay cursor on the most recent entry.
func (r *Recorder) StartReturning() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finishLocked()
	if len(r.history) == 0 {
		return ErrNoHistory
	}

	log.Info("starting return to origin", "actions", len(r.history))
	r.returning = true
	r.returnIndex = len(r.history) - 1
	return nil
}

// NextReturnAction returns the action under the replay cursor with its
// direction reversed, without advancing the cursor.
func (r *Recorder) NextReturnAction() (Action, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.returning || r.returnIndex < 0 {
		return Action{}, false
	}
	a := r.history[r.returnIndex]
	a.Direction = Reverse(a.Direction)
	return a, true
}

// finishReturning ends the replay and clears the history.
func (r *Recorder) finishReturning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.Info("returned to origin")
	r.returning = false
	r.history = nil
	r.current = nil
}

// ExecuteReturnAction replays the action under the cursor and advances it.
// Rotations are replayed as pulsed steps so the robot can be observed and
// stopped between pulses; moves run as one continuous command, polling
// obstacleNear between sleep slices when provided. Returns true once the
// whole history has been replayed, at which point the history is cleared.
func (r *Recorder) ExecuteReturnAction(motor Motor, obstacleNear func() bool) bool {
	action, ok := r.NextReturnAction()
	if !ok {
		r.finishReturning()
		return true
	}

	if motor == nil || !motor.Enabled() {
		// No motor; simulate the time the motion would take.
		time.Sleep(action.Duration)
	} else {
		switch action.Kind {
		case KindRotate:
			steps := int(action.Duration / r.cfg.StepDuration)
			for i := 0; i < steps; i++ {
				if action.Direction == Left {
					motor.TurnLeft(r.cfg.RotateSpeed)
				} else {
					motor.TurnRight(r.cfg.RotateSpeed)
				}
				time.Sleep(r.cfg.StepDuration)
				motor.Stop()
				time.Sleep(r.cfg.StepPause)
			}
		case KindMove:
			if action.Direction == Forward {
				motor.Forward(0)
			} else {
				motor.Backward(0)
			}
			elapsed := time.Duration(0)
			slice := 50 * time.Millisecond
			for elapsed < action.Duration {
				step := slice
				if remaining := action.Duration - elapsed; remaining < step {
					step = remaining
				}
				time.Sleep(step)
				elapsed += step
				if obstacleNear != nil && obstacleNear() {
					// Pause in place until the path clears.
					motor.Stop()
					for obstacleNear() {
						time.Sleep(slice)
					}
					if action.Direction == Forward {
						motor.Forward(0)
					} else {
						motor.Backward(0)
					}
				}
			}
			motor.Stop()
		}
	}

	time.Sleep(r.cfg.SettleDelay)

	r.mu.Lock()
	r.returnIndex--
	r.mu.Unlock()
	return false
}
