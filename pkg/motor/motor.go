// Package motor provides locomotion control: a Driver abstraction over
// the drive hardware, timed moves with obstacle polling, and persisted
// trim calibration to compensate for motor imbalance.
package motor

import (
	"sync"
	"time"

	"github.com/walle-robot/go-walle/internal/log"
)

// Driver is the low-level drive interface. Speeds are 0-100.
// Implementations must be safe to call from multiple goroutines.
type Driver interface {
	Forward(speed int)
	Backward(speed int)
	TurnLeft(speed int)
	TurnRight(speed int)
	Stop()
	Enabled() bool
}

// Config holds motion timing defaults.
type Config struct {
	// DefaultSpeed is used when a caller passes speed <= 0.
	DefaultSpeed int
	// MoveDuration is the default length of a timed move.
	MoveDuration time.Duration
	// PollInterval is how often an obstacle check runs during a timed
	// forward move.
	PollInterval time.Duration
}

// DefaultConfig returns motion defaults tuned for the chassis.
func DefaultConfig() Config {
	return Config{
		DefaultSpeed: 60,
		MoveDuration: 2 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Controller wraps a Driver with timed moves and trim correction.
type Controller struct {
	driver Driver
	cfg    Config
	trim   *Trim

	mu     sync.Mutex
	moving bool
	cancel chan struct{}
}

// NewController creates a motion controller. trim may be nil for
// uncalibrated 1:1 output.
func NewController(driver Driver, cfg Config, trim *Trim) *Controller {
	if trim == nil {
		trim = NewTrim()
	}
	return &Controller{driver: driver, cfg: cfg, trim: trim}
}

// Enabled reports whether the underlying drive hardware is usable.
func (c *Controller) Enabled() bool {
	return c.driver.Enabled()
}

// Trim returns the controller's trim calibration.
func (c *Controller) Trim() *Trim {
	return c.trim
}

func (c *Controller) speed(speed int) int {
	if speed <= 0 {
		return c.cfg.DefaultSpeed
	}
	if speed > 100 {
		return 100
	}
	return speed
}

// Forward starts driving forward at the given speed (or the default
// when speed <= 0). The caller is responsible for stopping.
func (c *Controller) Forward(speed int) {
	c.driver.Forward(c.trim.Apply(c.speed(speed)))
}

// Backward starts driving backward.
func (c *Controller) Backward(speed int) {
	c.driver.Backward(c.trim.Apply(c.speed(speed)))
}

// TurnLeft rotates in place to the left.
func (c *Controller) TurnLeft(speed int) {
	c.driver.TurnLeft(c.speed(speed))
}

// TurnRight rotates in place to the right.
func (c *Controller) TurnRight(speed int) {
	c.driver.TurnRight(c.speed(speed))
}

// Stop halts the drive immediately and cancels any background move.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		close(c.cancel)
		c.cancel = nil
	}
	c.moving = false
	c.mu.Unlock()
	c.driver.Stop()
}

// Moving reports whether a background timed move is in progress.
func (c *Controller) Moving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moving
}

// MoveForward drives forward for the given duration (default when <= 0),
// polling obstacleNear between slices and aborting early if it fires.
// Blocks until the move completes or aborts. Returns false when the
// move was cut short by an obstacle.
func (c *Controller) MoveForward(speed int, d time.Duration, obstacleNear func() bool) bool {
	if d <= 0 {
		d = c.cfg.MoveDuration
	}
	c.Forward(speed)
	defer c.driver.Stop()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if obstacleNear != nil && obstacleNear() {
			log.Debug("forward move aborted, obstacle ahead")
			return false
		}
		remaining := time.Until(deadline)
		if remaining > c.cfg.PollInterval {
			remaining = c.cfg.PollInterval
		}
		time.Sleep(remaining)
	}
	return true
}

// StartMoveForward runs MoveForward in the background. A later Stop
// call cancels it. onDone receives the completion result; it may be nil.
func (c *Controller) StartMoveForward(speed int, d time.Duration, obstacleNear func() bool, onDone func(completed bool)) {
	c.mu.Lock()
	if c.cancel != nil {
		close(c.cancel)
	}
	cancel := make(chan struct{})
	c.cancel = cancel
	c.moving = true
	c.mu.Unlock()

	go func() {
		completed := c.moveUntil(speed, d, obstacleNear, cancel)
		c.mu.Lock()
		if c.cancel == cancel {
			c.cancel = nil
			c.moving = false
		}
		c.mu.Unlock()
		if onDone != nil {
			onDone(completed)
		}
	}()
}

func (c *Controller) moveUntil(speed int, d time.Duration, obstacleNear func() bool, cancel <-chan struct{}) bool {
	if d <= 0 {
		d = c.cfg.MoveDuration
	}
	c.Forward(speed)
	defer c.driver.Stop()

	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return false
		case <-timer.C:
			return true
		case <-ticker.C:
			if obstacleNear != nil && obstacleNear() {
				log.Debug("forward move aborted, obstacle ahead")
				return false
			}
		}
	}
}
