package behavior

import (
	"image"
	"testing"
	"time"

	"github.com/walle-robot/go-walle/pkg/audio"
	"github.com/walle-robot/go-walle/pkg/recorder"
	"github.com/walle-robot/go-walle/pkg/vision"
)

func testConfig() Config {
	return Config{
		ApproachTimeout:   50 * time.Millisecond,
		ApproachBurst:     2 * time.Millisecond,
		BlockedPoll:       time.Millisecond,
		BlockedResume:     time.Millisecond,
		CloseFaceWidth:    190,
		CloseEyeDistance:  85,
		Deadband:          0.15,
		EMAAlpha:          0.7,
		CooldownAfter:     3,
		Cooldown:          30 * time.Millisecond,
		FollowBurst:       2 * time.Millisecond,
		TrackStep:         2 * time.Millisecond,
		TrackPause:        time.Millisecond,
		RotateSpeed:       36,
		MaxTrackRotations: 5,
		ConfirmFrames:     3,
		StuckDelta:        0.02,
		StuckCount:        3,
	}
}

func testRecorder() *recorder.Recorder {
	cfg := recorder.DefaultConfig()
	cfg.MinDuration = time.Millisecond
	return recorder.New(cfg)
}

type fakeMotor struct {
	cmds []string
}

func (m *fakeMotor) Forward(int)   { m.cmds = append(m.cmds, "forward") }
func (m *fakeMotor) Backward(int)  { m.cmds = append(m.cmds, "backward") }
func (m *fakeMotor) TurnLeft(int)  { m.cmds = append(m.cmds, "left") }
func (m *fakeMotor) TurnRight(int) { m.cmds = append(m.cmds, "right") }
func (m *fakeMotor) Stop()         { m.cmds = append(m.cmds, "stop") }
func (m *fakeMotor) Enabled() bool { return true }

func newTestController(m Motor, rec *recorder.Recorder) *Controller {
	return NewController(testConfig(), m, rec, nil, nil)
}

// faceAt builds an observation centered at centerX with eye landmarks
// eyeDist apart.
func faceAt(centerX, width int, eyeDist float64) vision.Observation {
	obs := vision.Observation{
		Box: image.Rect(centerX-width/2, 100, centerX+width/2, 100+width),
	}
	obs.Landmarks[vision.LandmarkRightEye] = image.Pt(centerX-int(eyeDist/2), 120)
	obs.Landmarks[vision.LandmarkLeftEye] = image.Pt(centerX+int(eyeDist/2), 120)
	return obs
}

func TestClose(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())

	if c.Close(faceAt(320, 100, 40)) {
		t.Fatal("small distant face judged close")
	}
	if !c.Close(faceAt(320, 200, 40)) {
		t.Fatal("wide face not judged close")
	}
	if !c.Close(faceAt(320, 100, 90)) {
		t.Fatal("face with wide eye distance not judged close")
	}
}

func TestApproachReachesPerson(t *testing.T) {
	rec := testRecorder()
	m := &fakeMotor{}
	c := newTestController(m, rec)

	calls := 0
	detect := func() (vision.Observation, bool) {
		calls++
		if calls < 3 {
			return faceAt(320, 100, 40), true // far
		}
		return faceAt(320, 200, 40), true // close
	}

	if !c.ApproachFamiliar(detect, nil) {
		t.Fatal("approach did not report success")
	}
	if rec.ActionCount() != 2 {
		t.Fatalf("recorded %d forward bursts, want 2", rec.ActionCount())
	}
}

func TestApproachAbortsWhenLost(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())
	if c.ApproachFamiliar(func() (vision.Observation, bool) {
		return vision.Observation{}, false
	}, nil) {
		t.Fatal("approach succeeded with no face")
	}
}

func TestApproachWaitsOutObstacleAndResumes(t *testing.T) {
	rec := testRecorder()
	m := &fakeMotor{}
	player := audio.NewMock(0)
	c := NewController(testConfig(), m, rec, nil, player)

	// The path is blocked for a few polls, then clears; the same run
	// must pick the approach back up and still reach the person.
	blockedPolls := 0
	obstacle := func() bool {
		blockedPolls++
		return blockedPolls <= 3
	}
	calls := 0
	detect := func() (vision.Observation, bool) {
		calls++
		if calls < 2 {
			return faceAt(320, 100, 40), true
		}
		return faceAt(320, 200, 40), true
	}

	if !c.ApproachFamiliar(detect, obstacle) {
		t.Fatal("approach did not resume after the path cleared")
	}
	if len(m.cmds) == 0 || m.cmds[0] != "stop" {
		t.Fatalf("motor commands = %v, want a brake first", m.cmds)
	}
	obstacleSounds := 0
	for _, p := range player.Played {
		if p == "obstacle" {
			obstacleSounds++
		}
	}
	if obstacleSounds != 1 {
		t.Fatalf("obstacle cue played %d times, want once per block", obstacleSounds)
	}
	if rec.ActionCount() != 1 {
		t.Fatalf("recorded %d forward bursts after resuming, want 1", rec.ActionCount())
	}
}

func TestApproachTimesOutWhileBlocked(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())
	start := time.Now()
	ok := c.ApproachFamiliar(func() (vision.Observation, bool) {
		return faceAt(320, 100, 40), true
	}, func() bool { return true }) // never clears
	if ok {
		t.Fatal("approach succeeded into a permanent obstacle")
	}
	if time.Since(start) < testConfig().ApproachTimeout {
		t.Fatal("approach gave up before the ceiling")
	}
}

func TestApproachTimesOut(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())
	start := time.Now()
	ok := c.ApproachFamiliar(func() (vision.Observation, bool) {
		return faceAt(320, 100, 40), true // always far
	}, nil)
	if ok {
		t.Fatal("approach succeeded without ever getting close")
	}
	if time.Since(start) < testConfig().ApproachTimeout {
		t.Fatal("approach gave up before the ceiling")
	}
}

func TestTrackFacePositionActsOnFirstDrift(t *testing.T) {
	m := &fakeMotor{}
	c := newTestController(m, testRecorder())

	// A face that was never centered is corrected immediately.
	if !c.TrackFacePosition(faceAt(560, 100, 40), 640) {
		t.Fatal("did not act on an off-center face")
	}
	if m.cmds[0] != "right" {
		t.Fatalf("first correction %q, want right", m.cmds[0])
	}
}

func TestTrackFacePositionConfirmsAfterCentered(t *testing.T) {
	m := &fakeMotor{}
	c := newTestController(m, testRecorder())

	if c.TrackFacePosition(faceAt(320, 100, 40), 640) {
		t.Fatal("acted on a centered face")
	}

	// Two off-center frames are just jitter; the third in the same
	// direction is a real drift.
	if c.TrackFacePosition(faceAt(560, 100, 40), 640) {
		t.Fatal("acted on the first off-center frame after centered")
	}
	if c.TrackFacePosition(faceAt(570, 100, 40), 640) {
		t.Fatal("acted on the second off-center frame after centered")
	}
	if !c.TrackFacePosition(faceAt(580, 100, 40), 640) {
		t.Fatal("did not act once the drift direction was confirmed")
	}
	if m.cmds[0] != "right" {
		t.Fatalf("correction %q, want right", m.cmds[0])
	}
}

func TestTrackFacePositionDirectionFlipResetsConfirm(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())

	c.TrackFacePosition(faceAt(320, 100, 40), 640) // centered
	c.TrackFacePosition(faceAt(560, 100, 40), 640) // right, count 1
	c.TrackFacePosition(faceAt(570, 100, 40), 640) // right, count 2
	// Flip sides: the count starts over.
	if c.TrackFacePosition(faceAt(80, 100, 40), 640) {
		t.Fatal("acted right after the drift direction flipped")
	}
	if c.TrackFacePosition(faceAt(80, 100, 40), 640) {
		t.Fatal("acted on the second frame of the new direction")
	}
	if !c.TrackFacePosition(faceAt(90, 100, 40), 640) {
		t.Fatal("did not act once the new direction was confirmed")
	}
}

func TestTrackFacePositionRotationBudget(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())

	// Alternate sides so the stuck detector never trips; the face is
	// never centered so every frame corrects.
	for i := 0; i < 5; i++ {
		x := 560
		if i%2 == 1 {
			x = 80
		}
		if !c.TrackFacePosition(faceAt(x, 100, 40), 640) {
			t.Fatalf("correction %d refused before budget", i)
		}
	}
	if c.TrackFacePosition(faceAt(560, 100, 40), 640) {
		t.Fatal("acted past the rotation budget")
	}
}

func TestTrackFacePositionStuckDetector(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())

	// The same off-center offset frame after frame means the wheels
	// are spinning without effect.
	for i := 0; i < 6; i++ {
		c.TrackFacePosition(faceAt(560, 100, 40), 640)
		if c.Stuck() {
			break
		}
	}
	if !c.Stuck() {
		t.Fatal("stuck detector never tripped")
	}
	if c.TrackFacePosition(faceAt(560, 100, 40), 640) {
		t.Fatal("acted while stuck")
	}

	c.ResetTracking()
	if c.Stuck() {
		t.Fatal("ResetTracking did not clear stuck state")
	}
}

func TestFollowRotatesTowardDrift(t *testing.T) {
	m := &fakeMotor{}
	c := newTestController(m, testRecorder())

	if !c.FollowFamiliar(faceAt(80, 100, 90), 640, nil) {
		t.Fatal("did not act on a drifted face")
	}
	if m.cmds[0] != "left" {
		t.Fatalf("first correction %q, want left", m.cmds[0])
	}
}

func TestFollowHoldsInDeadband(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())
	// Centered with the eye distance inside the target band.
	if c.FollowFamiliar(faceAt(320, 200, 90), 640, nil) {
		t.Fatal("acted on a centered face at a good distance")
	}
}

func TestFollowAdvancesWhenPersonBacksAway(t *testing.T) {
	rec := testRecorder()
	m := &fakeMotor{}
	c := newTestController(m, rec)

	// Centered but far: eye distance shrank below the target band.
	if !c.FollowFamiliar(faceAt(320, 100, 40), 640, nil) {
		t.Fatal("did not advance toward a receding person")
	}
	if m.cmds[0] != "forward" {
		t.Fatalf("move %q, want forward", m.cmds[0])
	}
	if rec.ActionCount() != 1 {
		t.Fatal("forward burst not recorded")
	}
}

func TestFollowBacksOffWhenPersonTooClose(t *testing.T) {
	rec := testRecorder()
	m := &fakeMotor{}
	c := newTestController(m, rec)

	// Centered but the eye distance is far above the target band.
	if !c.FollowFamiliar(faceAt(320, 100, 140), 640, nil) {
		t.Fatal("did not back away from a too-close person")
	}
	if m.cmds[0] != "backward" {
		t.Fatalf("move %q, want backward", m.cmds[0])
	}
	if rec.ActionCount() != 1 {
		t.Fatal("backward burst not recorded")
	}
}

func TestFollowSmoothsEyeDistance(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())

	// Prime the smoothed distance at the target, then feed one sample
	// below the band floor of 72.25; the blend (74.5) stays in band,
	// so the spike alone must not trigger a move.
	if c.FollowFamiliar(faceAt(320, 100, 85), 640, nil) {
		t.Fatal("acted at the target distance")
	}
	if c.FollowFamiliar(faceAt(320, 100, 70), 640, nil) {
		t.Fatal("a single noisy sample moved the robot")
	}
}

func TestFollowCooldownAfterActionRun(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())

	// Alternate drift directions so each call acts; the raw offsets are
	// large enough that EMA smoothing stays outside the deadband.
	acted := 0
	for i := 0; i < 10; i++ {
		x := 600
		if i%2 == 1 {
			x = 40
		}
		if c.FollowFamiliar(faceAt(x, 100, 90), 640, nil) {
			acted++
		} else {
			break
		}
	}
	if acted <= testConfig().CooldownAfter {
		t.Fatalf("cooldown engaged after only %d actions", acted)
	}
	if c.FollowFamiliar(faceAt(600, 100, 90), 640, nil) {
		t.Fatal("acted during cooldown")
	}
}

func TestFollowCooldownDropsSmoothingHistory(t *testing.T) {
	c := newTestController(&fakeMotor{}, testRecorder())

	// Drive the same direction into a cooldown, loading the EMA with a
	// large offset.
	for i := 0; i < 10; i++ {
		if !c.FollowFamiliar(faceAt(600, 100, 90), 640, nil) {
			break
		}
	}
	time.Sleep(testConfig().Cooldown + 5*time.Millisecond)

	// After the cooldown the first centered frame must read centered:
	// a stale smoothed offset would still demand a correction.
	if c.FollowFamiliar(faceAt(320, 100, 90), 640, nil) {
		t.Fatal("stale smoothing history survived the cooldown")
	}
}
