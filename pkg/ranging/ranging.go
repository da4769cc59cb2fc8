// Package ranging provides obstacle proximity sensing over the robot's
// ultrasonic sensors, with caching to keep a tight control loop from
// hammering the hardware.
package ranging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/walle-robot/go-walle/internal/log"
)

// Sensor reads one distance measurement. Implementations talk to real
// hardware; tests use SimSensor.
type Sensor interface {
	// DistanceCM returns the measured distance in centimeters.
	DistanceCM() (float64, error)
	// Name identifies the sensor in logs and status output.
	Name() string
}

// Proximity answers "is something close in front of us". The engine and
// recorder consume this interface.
type Proximity interface {
	// ObjectNear reports whether any sensor sees an object inside the
	// threshold. With useCached set, a recent result is reused instead
	// of triggering a new measurement.
	ObjectNear(useCached bool) bool
	// Status returns a human-readable summary of the last readings.
	Status() string
}

// Config holds proximity thresholds and rate limits.
type Config struct {
	// ThresholdCM is the distance below which an object counts as near.
	ThresholdCM float64
	// CacheTTL is how long a measurement result stays valid.
	CacheTTL time.Duration
	// MinReadGap is the minimum spacing between consecutive hardware
	// reads; ultrasonic echoes interfere when fired back to back.
	MinReadGap time.Duration
}

// DefaultConfig returns thresholds tuned for the chassis footprint.
func DefaultConfig() Config {
	return Config{
		ThresholdCM: 8,
		CacheTTL:    50 * time.Millisecond,
		MinReadGap:  20 * time.Millisecond,
	}
}

// Array polls a set of sensors and caches the combined result.
type Array struct {
	sensors []Sensor
	cfg     Config

	mu         sync.Mutex
	lastResult bool
	lastAt     time.Time
	lastReadAt time.Time
	lastDists  map[string]float64
}

// NewArray creates a proximity array over the given sensors.
func NewArray(cfg Config, sensors ...Sensor) *Array {
	return &Array{
		sensors:   sensors,
		cfg:       cfg,
		lastDists: make(map[string]float64),
	}
}

// ObjectNear measures all sensors, short-circuiting on the first one
// that reports an object inside the threshold. Failed sensors are
// skipped. With useCached set, a result younger than CacheTTL is
// returned without touching the hardware.
func (a *Array) ObjectNear(useCached bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if useCached && time.Since(a.lastAt) < a.cfg.CacheTTL {
		return a.lastResult
	}

	near := false
	for _, s := range a.sensors {
		if gap := time.Since(a.lastReadAt); gap < a.cfg.MinReadGap {
			time.Sleep(a.cfg.MinReadGap - gap)
		}
		dist, err := s.DistanceCM()
		a.lastReadAt = time.Now()
		if err != nil {
			log.Debug("ultrasonic read failed", "sensor", s.Name(), "error", err)
			continue
		}
		a.lastDists[s.Name()] = dist
		if dist > 0 && dist < a.cfg.ThresholdCM {
			near = true
			break
		}
	}

	a.lastResult = near
	a.lastAt = time.Now()
	return near
}

// Status summarizes the most recent distance per sensor.
func (a *Array) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.lastDists) == 0 {
		return "no readings"
	}
	parts := make([]string, 0, len(a.lastDists))
	for _, s := range a.sensors {
		if d, ok := a.lastDists[s.Name()]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.1fcm", s.Name(), d))
		}
	}
	return strings.Join(parts, " ")
}

// SimSensor is a fixed- or scripted-distance sensor for tests and
// hardware-free runs.
type SimSensor struct {
	mu       sync.Mutex
	name     string
	distance float64
	err      error
	Reads    int
}

// NewSimSensor returns a sensor reporting the given distance.
func NewSimSensor(name string, distanceCM float64) *SimSensor {
	return &SimSensor{name: name, distance: distanceCM}
}

// SetDistance changes the reported distance.
func (s *SimSensor) SetDistance(cm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distance = cm
}

// SetError makes subsequent reads fail with err (nil clears it).
func (s *SimSensor) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *SimSensor) DistanceCM() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++
	if s.err != nil {
		return 0, s.err
	}
	return s.distance, nil
}

func (s *SimSensor) Name() string { return s.name }
