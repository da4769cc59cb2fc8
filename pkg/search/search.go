// Package search implements the rotational sweep the robot performs
// when it is looking for a person: a fixed left/right scan pattern with
// detection pauses between rotations, and face centering once a person
// is found. All rotation the sweep performs is recorded so the robot
// can still retrace its way home afterwards.
package search

import (
	"time"

	"github.com/walle-robot/go-walle/internal/log"
	"github.com/walle-robot/go-walle/pkg/recorder"
	"github.com/walle-robot/go-walle/pkg/vision"
)

// Motor is the subset of motor control the sweep needs.
type Motor interface {
	TurnLeft(speed int)
	TurnRight(speed int)
	Stop()
	Enabled() bool
}

// Config holds sweep geometry and timing.
type Config struct {
	// QuarterTurn is the time a 45 degree rotation takes at RotateSpeed.
	QuarterTurn time.Duration
	// RotatePause is the settle-and-detect pause after each rotation.
	RotatePause time.Duration
	// RotateSpeed is the motor speed for sweep rotations.
	RotateSpeed int
	// Cycles is how many full left/right oscillations the sweep makes.
	Cycles int

	// StepDuration paces detection polls while the motor is running;
	// StepPause paces polls during the settle pause after a rotation.
	StepDuration time.Duration
	StepPause    time.Duration

	// MinRecord is the floor below which a sweep rotation is not worth
	// recording for the return journey.
	MinRecord time.Duration

	// CenterTolerance is the acceptable face offset from frame center,
	// as a fraction of frame width.
	CenterTolerance float64
	// MaxCenterPasses bounds the detect-rotate-detect centering loop.
	MaxCenterPasses int
	// CenterStep shapes one centering pulse, CenterBudget caps the
	// total rotation time of a single pass, and CenterPause separates
	// passes so the next pass measures a settled frame.
	CenterStep   time.Duration
	CenterBudget time.Duration
	CenterPause  time.Duration
}

// DefaultConfig returns the sweep tuning used on the robot.
func DefaultConfig() Config {
	return Config{
		QuarterTurn:     1500 * time.Millisecond,
		RotatePause:     500 * time.Millisecond,
		RotateSpeed:     36,
		Cycles:          4,
		StepDuration:    150 * time.Millisecond,
		StepPause:       80 * time.Millisecond,
		MinRecord:       100 * time.Millisecond,
		CenterTolerance: 0.16,
		MaxCenterPasses: 3,
		CenterStep:      150 * time.Millisecond,
		CenterBudget:    time.Second,
		CenterPause:     500 * time.Millisecond,
	}
}

// Controller walks the sweep pattern step by step. The pattern is:
// 45 degrees left, then Cycles oscillations of 90 degrees right and 90
// degrees left, then 45 degrees right to restore the original heading.
type Controller struct {
	cfg  Config
	step int
}

// NewController creates a sweep at its first step.
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// totalSteps is the number of rotations in one complete sweep.
func (c *Controller) totalSteps() int {
	return 2 + 2*c.cfg.Cycles
}

// Done reports whether the sweep pattern is exhausted.
func (c *Controller) Done() bool {
	return c.step >= c.totalSteps()
}

// Step returns the current step index.
func (c *Controller) Step() int {
	return c.step
}

// Reset rewinds the sweep to its first step.
func (c *Controller) Reset() {
	c.step = 0
}

// NextAction returns the direction and duration of the current sweep
// step without performing it. ok is false when the sweep is done.
func (c *Controller) NextAction() (dir recorder.Direction, d time.Duration, ok bool) {
	total := c.totalSteps()
	switch {
	case c.step >= total:
		return "", 0, false
	case c.step == 0:
		return recorder.Left, c.cfg.QuarterTurn, true
	case c.step == total-1:
		return recorder.Right, c.cfg.QuarterTurn, true
	case c.step%2 == 1:
		return recorder.Right, 2 * c.cfg.QuarterTurn, true
	default:
		return recorder.Left, 2 * c.cfg.QuarterTurn, true
	}
}

// AdvanceStep moves the sweep to the next step.
func (c *Controller) AdvanceStep() {
	if c.step < c.totalSteps() {
		c.step++
	}
}

// RotateAndDetect performs the current sweep step: rotate while
// polling detect so a face stops the motor the moment it appears, then
// hold for the detection pause still polling. Whatever rotation
// actually happened is recorded wall-clock for the return journey.
// Returns the observation and true as soon as detect reports one;
// otherwise advances the sweep and returns false.
func (c *Controller) RotateAndDetect(motor Motor, rec *recorder.Recorder, detect func() (vision.Observation, bool)) (vision.Observation, bool) {
	dir, duration, ok := c.NextAction()
	if !ok {
		return vision.Observation{}, false
	}
	log.Debug("sweep step", "step", c.step, "direction", dir, "duration", duration)

	obs, found, elapsed := c.rotateDetecting(motor, dir, duration, detect)
	if rec != nil && elapsed >= c.cfg.MinRecord {
		rec.Record(recorder.KindRotate, dir, elapsed)
	}
	if found {
		return obs, true
	}

	// Settle, then look. Poll a few times across the pause so a face
	// that comes into focus mid-pause is not missed.
	deadline := time.Now().Add(c.cfg.RotatePause)
	for {
		if obs, found := detect(); found {
			return obs, true
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(c.cfg.StepPause)
	}

	c.AdvanceStep()
	return vision.Observation{}, false
}

// rotateDetecting rotates toward dir for up to duration, checking
// detect between polls and cutting the rotation short on a hit. The
// returned elapsed is the measured motor-on time, which can be well
// under duration.
func (c *Controller) rotateDetecting(motor Motor, dir recorder.Direction, duration time.Duration, detect func() (vision.Observation, bool)) (vision.Observation, bool, time.Duration) {
	driven := motor != nil && motor.Enabled()
	if driven {
		if dir == recorder.Left {
			motor.TurnLeft(c.cfg.RotateSpeed)
		} else {
			motor.TurnRight(c.cfg.RotateSpeed)
		}
	}
	start := time.Now()

	var (
		obs   vision.Observation
		found bool
	)
	for {
		if obs, found = detect(); found {
			break
		}
		remaining := duration - time.Since(start)
		if remaining <= 0 {
			break
		}
		if remaining > c.cfg.StepDuration {
			remaining = c.cfg.StepDuration
		}
		time.Sleep(remaining)
	}

	elapsed := time.Since(start)
	if driven {
		motor.Stop()
	}
	return obs, found, elapsed
}

// CenterFace rotates toward the detected face until its horizontal
// offset is within tolerance, in at most MaxCenterPasses passes. Each
// pass pulses toward the face and re-detects after every pulse,
// stopping when the face reads centered, when the offset sign flips
// past center, or when the pass runs out of rotation budget; the
// measured rotation of the pass is recorded for the return journey.
// Returns true when the face ended up centered, false when it was lost
// or tolerance was not reached within the pass budget.
func (c *Controller) CenterFace(motor Motor, rec *recorder.Recorder, frameWidth int, detect func() (vision.Observation, bool)) bool {
	for pass := 0; pass < c.cfg.MaxCenterPasses; pass++ {
		obs, found := detect()
		if !found {
			log.Debug("centering aborted, face lost", "pass", pass)
			return false
		}

		offset := obs.OffsetRatio(frameWidth)
		if abs(offset) <= c.cfg.CenterTolerance {
			log.Debug("face centered", "offset", offset, "passes", pass)
			return true
		}

		dir := recorder.Right
		if offset < 0 {
			dir = recorder.Left
		}

		res := c.centerPass(motor, dir, frameWidth, detect)
		if rec != nil && res.rotated >= c.cfg.MinRecord {
			rec.Record(recorder.KindRotate, dir, res.rotated)
		}
		if res.centered {
			log.Debug("face centered", "passes", pass+1)
			return true
		}
		if res.overshot {
			log.Debug("rotated past center, reversing", "pass", pass)
		}

		// Let the frame settle before the next pass measures again.
		time.Sleep(c.cfg.CenterPause)
	}

	obs, found := detect()
	return found && abs(obs.OffsetRatio(frameWidth)) <= c.cfg.CenterTolerance
}

type centerResult struct {
	centered bool
	overshot bool
	// rotated is the measured motor-on time of the pass.
	rotated time.Duration
}

// centerPass pulses toward dir, re-detecting after each pulse. It
// stops when the face reads centered, when the offset sign flips (the
// rotation crossed center), or when the rotation budget runs out. A
// pulse where the face drops out of frame keeps rotating; the budget
// bounds how far that can go.
func (c *Controller) centerPass(motor Motor, dir recorder.Direction, frameWidth int, detect func() (vision.Observation, bool)) centerResult {
	var res centerResult
	driven := motor != nil && motor.Enabled()

	for res.rotated < c.cfg.CenterBudget {
		if driven {
			if dir == recorder.Left {
				motor.TurnLeft(c.cfg.RotateSpeed)
			} else {
				motor.TurnRight(c.cfg.RotateSpeed)
			}
			pulse := time.Now()
			time.Sleep(c.cfg.CenterStep)
			motor.Stop()
			res.rotated += time.Since(pulse)
		} else {
			time.Sleep(c.cfg.CenterStep)
			res.rotated += c.cfg.CenterStep
		}
		time.Sleep(c.cfg.StepPause)

		obs, found := detect()
		if !found {
			continue
		}
		offset := obs.OffsetRatio(frameWidth)
		if abs(offset) <= c.cfg.CenterTolerance {
			res.centered = true
			return res
		}
		if (dir == recorder.Right) != (offset > 0) {
			res.overshot = true
			return res
		}
	}
	return res
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
