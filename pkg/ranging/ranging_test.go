package ranging

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		ThresholdCM: 8,
		CacheTTL:    50 * time.Millisecond,
		MinReadGap:  0,
	}
}

func TestObjectNearThreshold(t *testing.T) {
	s := NewSimSensor("front", 100)
	a := NewArray(testConfig(), s)

	if a.ObjectNear(false) {
		t.Fatal("object reported near at 100cm")
	}
	s.SetDistance(5)
	if !a.ObjectNear(false) {
		t.Fatal("object at 5cm not reported near")
	}
}

func TestCachedResultSkipsMeasurement(t *testing.T) {
	s := NewSimSensor("front", 5)
	a := NewArray(testConfig(), s)

	if !a.ObjectNear(false) {
		t.Fatal("object not near")
	}
	reads := s.Reads

	// Within the TTL a cached query must not touch the sensor, even
	// though the scene has changed.
	s.SetDistance(100)
	if !a.ObjectNear(true) {
		t.Fatal("cached result not returned")
	}
	if s.Reads != reads {
		t.Fatalf("sensor read %d times during cache window", s.Reads-reads)
	}

	time.Sleep(60 * time.Millisecond)
	if a.ObjectNear(true) {
		t.Fatal("stale cache served past its TTL")
	}
}

func TestUncachedAlwaysMeasures(t *testing.T) {
	s := NewSimSensor("front", 5)
	a := NewArray(testConfig(), s)
	a.ObjectNear(false)
	a.ObjectNear(false)
	if s.Reads != 2 {
		t.Fatalf("sensor read %d times, want 2", s.Reads)
	}
}

func TestFirstTriggerShortCircuits(t *testing.T) {
	near := NewSimSensor("left", 5)
	far := NewSimSensor("right", 100)
	a := NewArray(testConfig(), near, far)

	if !a.ObjectNear(false) {
		t.Fatal("object not reported near")
	}
	if far.Reads != 0 {
		t.Fatal("second sensor measured after the first already triggered")
	}
}

func TestFailedSensorSkipped(t *testing.T) {
	broken := NewSimSensor("left", 5)
	broken.SetError(errors.New("timeout"))
	working := NewSimSensor("right", 5)
	a := NewArray(testConfig(), broken, working)

	if !a.ObjectNear(false) {
		t.Fatal("working sensor ignored because another failed")
	}
}

func TestStatus(t *testing.T) {
	a := NewArray(testConfig(), NewSimSensor("front", 42))
	if got := a.Status(); got != "no readings" {
		t.Fatalf("status before any read = %q", got)
	}
	a.ObjectNear(false)
	if got := a.Status(); got != "front=42.0cm" {
		t.Fatalf("status = %q, want front=42.0cm", got)
	}
}

func TestZeroDistanceNotNear(t *testing.T) {
	// Some ultrasonic modules report 0 on a missed echo; that must not
	// read as an obstacle at zero range.
	a := NewArray(testConfig(), NewSimSensor("front", 0))
	if a.ObjectNear(false) {
		t.Fatal("missed echo treated as an obstacle")
	}
}
