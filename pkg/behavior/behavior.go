// Package behavior holds the visual-servoing controllers that act on
// face observations: approaching a familiar person, keeping a tracked
// face in frame, and following a person as they move. Every motion the
// controllers issue goes through the recorder so the robot can still
// find its way back.
package behavior

import (
	"time"

	"github.com/walle-robot/go-walle/internal/log"
	"github.com/walle-robot/go-walle/pkg/audio"
	"github.com/walle-robot/go-walle/pkg/display"
	"github.com/walle-robot/go-walle/pkg/recorder"
	"github.com/walle-robot/go-walle/pkg/vision"
)

// Motor is the drive surface the controllers need.
type Motor interface {
	Forward(speed int)
	Backward(speed int)
	TurnLeft(speed int)
	TurnRight(speed int)
	Stop()
	Enabled() bool
}

// Config tunes the servoing controllers.
type Config struct {
	// ApproachTimeout caps a single approach run.
	ApproachTimeout time.Duration
	// ApproachBurst is the length of one forward burst during approach.
	ApproachBurst time.Duration
	// BlockedPoll paces obstacle re-checks while an approach is braked,
	// and BlockedResume is the settle delay once the path clears.
	BlockedPoll   time.Duration
	BlockedResume time.Duration
	// CloseFaceWidth is the face box width (px) at which the person is
	// considered reached.
	CloseFaceWidth int
	// CloseEyeDistance is the eye-landmark distance (px) at which the
	// person is considered reached. Either closeness signal suffices.
	CloseEyeDistance float64

	// Deadband is the offset-ratio band around center where the
	// controllers hold still, and doubles as the fractional margin
	// around CloseEyeDistance the follow controller treats as a good
	// distance.
	Deadband float64
	// EMAAlpha weighs the newest sample in the smoothed offset and eye
	// distance estimates.
	EMAAlpha float64
	// CooldownAfter is the consecutive-action count that triggers a
	// follow cooldown, and Cooldown is its length. Bursty correction
	// runs mean the robot is oscillating, not converging.
	CooldownAfter int
	Cooldown      time.Duration
	// FollowBurst is the length of one follow move, forward or back.
	FollowBurst time.Duration

	// TrackStep is one tracking rotation pulse.
	TrackStep time.Duration
	// TrackPause follows each tracking pulse.
	TrackPause time.Duration
	// RotateSpeed is the speed for tracking rotations.
	RotateSpeed int
	// MaxTrackRotations bounds corrections for a single tracked face;
	// past it the robot stops chasing and lets the person settle.
	MaxTrackRotations int
	// ConfirmFrames is how many consecutive frames must agree on the
	// drift direction before a once-centered face is corrected again.
	// A single jittery detection must not twitch the robot.
	ConfirmFrames int

	// StuckDelta and StuckCount detect a wedged robot: when the offset
	// changes less than StuckDelta across StuckCount successive
	// corrections, the wheels are probably spinning in place.
	StuckDelta float64
	StuckCount int
}

// DefaultConfig returns servoing parameters tuned against the chassis
// and the 640px camera.
func DefaultConfig() Config {
	return Config{
		ApproachTimeout:   10 * time.Second,
		ApproachBurst:     400 * time.Millisecond,
		BlockedPoll:       100 * time.Millisecond,
		BlockedResume:     200 * time.Millisecond,
		CloseFaceWidth:    190,
		CloseEyeDistance:  85,
		Deadband:          0.15,
		EMAAlpha:          0.7,
		CooldownAfter:     6,
		Cooldown:          800 * time.Millisecond,
		FollowBurst:       150 * time.Millisecond,
		TrackStep:         150 * time.Millisecond,
		TrackPause:        80 * time.Millisecond,
		RotateSpeed:       36,
		MaxTrackRotations: 20,
		ConfirmFrames:     3,
		StuckDelta:        0.02,
		StuckCount:        3,
	}
}

// Controller runs the servoing behaviors. Not safe for concurrent use;
// the engine drives it from the single control loop.
type Controller struct {
	cfg    Config
	motor  Motor
	rec    *recorder.Recorder
	disp   display.Display
	player audio.Player

	// follow state
	ema        float64
	emaEye     float64
	emaPrimed  bool
	consec     int
	cooldownAt time.Time

	// track state
	centered     bool
	confirmCount int
	confirmDir   recorder.Direction
	haveDir      bool
	rotations    int
	lastOffset   float64
	haveLast     bool
	stuckRuns    int
	stuck        bool
}

// NewController creates a servoing controller. disp and player may be
// nil in degraded runs; the approach then brakes silently.
func NewController(cfg Config, motor Motor, rec *recorder.Recorder, disp display.Display, player audio.Player) *Controller {
	return &Controller{cfg: cfg, motor: motor, rec: rec, disp: disp, player: player}
}

// ResetTracking clears per-person tracking state. Call when the tracked
// face is lost or the robot changes state.
func (c *Controller) ResetTracking() {
	c.ema = 0
	c.emaEye = 0
	c.emaPrimed = false
	c.consec = 0
	c.centered = false
	c.confirmCount = 0
	c.haveDir = false
	c.rotations = 0
	c.haveLast = false
	c.stuckRuns = 0
	c.stuck = false
}

// Stuck reports whether the stuck detector has tripped since the last
// ResetTracking.
func (c *Controller) Stuck() bool {
	return c.stuck
}

// Close reports whether the observation is near enough to stop
// approaching.
func (c *Controller) Close(obs vision.Observation) bool {
	return obs.Width() >= c.cfg.CloseFaceWidth || obs.EyeDistance() >= c.cfg.CloseEyeDistance
}

// ApproachFamiliar drives toward the observed person in short recorded
// bursts until they are close, the face is lost, or the approach times
// out. An obstacle does not end the run: the robot brakes on the spot,
// shows the blocked reaction, and waits for the path to clear before
// resuming. Returns true when the person was reached.
func (c *Controller) ApproachFamiliar(detect func() (vision.Observation, bool), obstacleNear func() bool) bool {
	deadline := time.Now().Add(c.cfg.ApproachTimeout)
	blocked := false

	for time.Now().Before(deadline) {
		if obstacleNear != nil && obstacleNear() {
			if !blocked {
				log.Info("approach blocked, waiting for the path to clear")
				if c.motor != nil && c.motor.Enabled() {
					c.motor.Stop()
				}
				if c.disp != nil {
					c.disp.ShowEmotion(display.EmotionSad, true)
				}
				if c.player != nil {
					c.player.PlaySound("obstacle", false)
				}
				blocked = true
			}
			time.Sleep(c.cfg.BlockedPoll)
			continue
		}
		if blocked {
			log.Info("path clear, resuming approach")
			if c.disp != nil {
				c.disp.ShowEmotion(display.EmotionHappy, true)
			}
			blocked = false
			time.Sleep(c.cfg.BlockedResume)
		}

		obs, found := detect()
		if !found {
			log.Debug("approach ended, face lost")
			return false
		}
		if c.Close(obs) {
			log.Info("approach complete", "face_width", obs.Width())
			return true
		}

		c.rec.StartAction(recorder.KindMove, recorder.Forward)
		if c.motor != nil && c.motor.Enabled() {
			c.motor.Forward(0)
		}
		time.Sleep(c.cfg.ApproachBurst)
		if c.motor != nil && c.motor.Enabled() {
			c.motor.Stop()
		}
		c.rec.StopAction()
	}

	log.Debug("approach timed out")
	return false
}

// TrackFacePosition issues at most one rotation pulse to pull the face
// back toward frame center. Returns true when it acted. Once the face
// has read centered, ConfirmFrames consecutive frames must agree on
// the drift direction before the robot corrects again; the rotation
// budget and stuck detector bound how hard it will chase.
func (c *Controller) TrackFacePosition(obs vision.Observation, frameWidth int) bool {
	offset := obs.OffsetRatio(frameWidth)

	if c.haveLast {
		if diff := abs(offset - c.lastOffset); diff < c.cfg.StuckDelta {
			c.stuckRuns++
			if c.stuckRuns >= c.cfg.StuckCount {
				if !c.stuck {
					log.Warn("tracking stuck, holding position")
				}
				c.stuck = true
			}
		} else {
			c.stuckRuns = 0
		}
	}
	c.lastOffset = offset
	c.haveLast = true

	if c.stuck || c.rotations >= c.cfg.MaxTrackRotations {
		return false
	}
	if abs(offset) <= c.cfg.Deadband {
		c.centered = true
		c.confirmCount = 0
		c.haveDir = false
		return false
	}

	dir := recorder.Right
	if offset < 0 {
		dir = recorder.Left
	}
	if c.centered {
		if c.haveDir && dir == c.confirmDir {
			c.confirmCount++
		} else {
			c.confirmCount = 1
			c.confirmDir = dir
			c.haveDir = true
		}
		if c.confirmCount < c.cfg.ConfirmFrames {
			return false
		}
		c.centered = false
		c.confirmCount = 0
		c.haveDir = false
	}

	c.pulse(dir)
	c.rotations++
	return true
}

// FollowFamiliar keeps a familiar person framed as they move: rotation
// corrections when they drift sideways, a forward burst when they back
// away, a backward burst when they lean in too close. Offset and eye
// distance are both EMA-smoothed so a single jittery detection cannot
// yank the robot around, and a cooldown engages after a run of
// consecutive corrections, dropping the smoothing history so the next
// samples start fresh. Returns true when it acted.
func (c *Controller) FollowFamiliar(obs vision.Observation, frameWidth int, obstacleNear func() bool) bool {
	if time.Now().Before(c.cooldownAt) {
		return false
	}

	rawOffset := obs.OffsetRatio(frameWidth)
	rawEye := obs.EyeDistance()
	if !c.emaPrimed {
		c.ema = rawOffset
		c.emaEye = rawEye
		c.emaPrimed = true
	} else {
		c.ema = c.cfg.EMAAlpha*rawOffset + (1-c.cfg.EMAAlpha)*c.ema
		if rawEye > 0 {
			c.emaEye = c.cfg.EMAAlpha*rawEye + (1-c.cfg.EMAAlpha)*c.emaEye
		}
	}

	minEye := c.cfg.CloseEyeDistance * (1 - c.cfg.Deadband)
	maxEye := c.cfg.CloseEyeDistance * (1 + c.cfg.Deadband)

	acted := false
	switch {
	case abs(c.ema) > c.cfg.Deadband:
		dir := recorder.Right
		if c.ema < 0 {
			dir = recorder.Left
		}
		c.pulse(dir)
		acted = true

	case c.emaEye > 0 && c.emaEye < minEye:
		// Person backed away.
		if obstacleNear == nil || !obstacleNear() {
			c.burst(recorder.Forward)
			acted = true
		}

	case c.emaEye > maxEye:
		// Person leaned in too close.
		c.burst(recorder.Backward)
		acted = true
	}

	if acted {
		c.consec++
		if c.consec > c.cfg.CooldownAfter {
			c.cooldownAt = time.Now().Add(c.cfg.Cooldown)
			c.consec = 0
			c.ema = 0
			c.emaEye = 0
			c.emaPrimed = false
			log.Debug("follow cooldown engaged")
		}
	} else {
		c.consec = 0
	}
	return acted
}

// pulse performs one recorded rotation pulse toward dir.
func (c *Controller) pulse(dir recorder.Direction) {
	if c.motor != nil && c.motor.Enabled() {
		if dir == recorder.Left {
			c.motor.TurnLeft(c.cfg.RotateSpeed)
		} else {
			c.motor.TurnRight(c.cfg.RotateSpeed)
		}
		time.Sleep(c.cfg.TrackStep)
		c.motor.Stop()
	}
	c.rec.Record(recorder.KindRotate, dir, c.cfg.TrackStep)
	time.Sleep(c.cfg.TrackPause)
}

// burst performs one recorded follow move in dir.
func (c *Controller) burst(dir recorder.Direction) {
	c.rec.StartAction(recorder.KindMove, dir)
	if c.motor != nil && c.motor.Enabled() {
		if dir == recorder.Backward {
			c.motor.Backward(0)
		} else {
			c.motor.Forward(0)
		}
	}
	time.Sleep(c.cfg.FollowBurst)
	if c.motor != nil && c.motor.Enabled() {
		c.motor.Stop()
	}
	c.rec.StopAction()
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
