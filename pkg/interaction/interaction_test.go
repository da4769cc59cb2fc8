package interaction

import (
	"testing"
	"time"

	"github.com/walle-robot/go-walle/pkg/audio"
	"github.com/walle-robot/go-walle/pkg/display"
	"github.com/walle-robot/go-walle/pkg/recorder"
)

func testConfig() Config {
	return Config{
		AwakeDuration:       30 * time.Millisecond,
		WakeEmotionDuration: 10 * time.Millisecond,
		StrangerTimeout:     20 * time.Millisecond,
		RangingRecovery:     20 * time.Millisecond,
		SpinDuration:        10 * time.Millisecond,
		SpinSpeed:           60,
		FlinchDuration:      5 * time.Millisecond,
		FlinchPause:         time.Millisecond,
		SongFile:            "sounds/song.wav",
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

func newHandler(m *fakeMotor) (*Handler, *recorder.Recorder, *display.Manager) {
	rec := testRecorder()
	disp := display.NewManager(nil, display.DefaultConfig())
	h := NewHandler(testConfig(), m, rec, disp, audio.NewMock(0))
	return h, rec, disp
}

func TestWakeAndDoze(t *testing.T) {
	h, _, disp := newHandler(&fakeMotor{})

	if h.Awake() {
		t.Fatal("awake before Wake")
	}
	h.Wake()
	if !h.Awake() {
		t.Fatal("not awake after Wake")
	}
	if !h.HoldingWakeFace() {
		t.Fatal("wake face not pinned")
	}
	if disp.Current() != display.EmotionExcited {
		t.Fatalf("wake emotion = %s, want excited", disp.Current())
	}

	time.Sleep(35 * time.Millisecond)
	if h.Awake() {
		t.Fatal("still awake past the window")
	}
}

func TestExtendAwake(t *testing.T) {
	h, _, _ := newHandler(&fakeMotor{})
	h.Wake()

	// Keep poking the deadline forward past the original window.
	for i := 0; i < 4; i++ {
		time.Sleep(15 * time.Millisecond)
		h.ExtendAwake()
	}
	if !h.Awake() {
		t.Fatal("activity extensions did not keep the robot awake")
	}
}

func TestExtendAwakeNoopWhenAsleep(t *testing.T) {
	h, _, _ := newHandler(&fakeMotor{})
	h.ExtendAwake()
	if h.Awake() {
		t.Fatal("ExtendAwake woke a sleeping robot")
	}
}

func TestSleepClosesWindow(t *testing.T) {
	h, _, disp := newHandler(&fakeMotor{})
	h.Wake()
	h.Sleep()
	if h.Awake() || h.HoldingWakeFace() {
		t.Fatal("Sleep did not close the awake window")
	}
	if disp.Current() != display.EmotionSleep {
		t.Fatalf("emotion = %s after Sleep, want sleep", disp.Current())
	}
}

func TestStrangerTimer(t *testing.T) {
	h, _, _ := newHandler(&fakeMotor{})

	if h.StrangerExpired() {
		t.Fatal("expired with no stranger marked")
	}
	h.MarkStranger()
	if h.StrangerExpired() {
		t.Fatal("expired immediately")
	}
	time.Sleep(25 * time.Millisecond)
	if !h.StrangerExpired() {
		t.Fatal("patience did not run out")
	}
	h.ClearStranger()
	if h.StrangerExpired() {
		t.Fatal("expired after clear")
	}
}

func TestScareRecoversOnlyAfterQuietDelay(t *testing.T) {
	h, _, _ := newHandler(&fakeMotor{})

	if h.Scared() {
		t.Fatal("scared before any trigger")
	}
	if h.ScareRecovered() {
		t.Fatal("recovered with no scare active")
	}

	h.MarkScared()
	if !h.Scared() {
		t.Fatal("not scared after trigger")
	}
	if h.ScareRecovered() {
		t.Fatal("recovered immediately")
	}

	// Re-triggers keep pushing the recovery clock out.
	time.Sleep(15 * time.Millisecond)
	h.MarkScared()
	time.Sleep(10 * time.Millisecond)
	if h.ScareRecovered() {
		t.Fatal("recovered while the object kept reappearing")
	}

	time.Sleep(15 * time.Millisecond)
	if !h.ScareRecovered() {
		t.Fatal("never recovered after the quiet delay")
	}
	if h.Scared() {
		t.Fatal("still scared after recovery")
	}
}

func TestFlinchRefreshesStrangerTimer(t *testing.T) {
	h, _, _ := newHandler(&fakeMotor{})
	h.MarkStranger()

	time.Sleep(15 * time.Millisecond)
	h.DoFlinch()
	time.Sleep(10 * time.Millisecond)
	// 25ms since MarkStranger, but the flinch restarted the clock.
	if h.StrangerExpired() {
		t.Fatal("patience expired despite the flinch interaction")
	}
}

func TestFlinchRecordsAndSuspendsRanging(t *testing.T) {
	m := &fakeMotor{}
	h, rec, disp := newHandler(m)

	if !h.DoFlinch() {
		t.Fatal("flinch refused")
	}
	if rec.ActionCount() != 1 {
		t.Fatalf("recorded %d actions, want the backward jolt", rec.ActionCount())
	}
	if len(m.cmds) == 0 || m.cmds[0] != "backward" {
		t.Fatalf("motor commands = %v, want backward first", m.cmds)
	}
	if disp.Current() != display.EmotionShocked {
		t.Fatalf("emotion = %s, want shocked", disp.Current())
	}
	if h.RangingEnabled() {
		t.Fatal("ranging not suspended after flinch")
	}
	time.Sleep(25 * time.Millisecond)
	if !h.RangingEnabled() {
		t.Fatal("ranging never recovered")
	}
	if h.Busy() {
		t.Fatal("still latched after flinch")
	}
}

func TestSpinLatchesWhileRunning(t *testing.T) {
	h, _, _ := newHandler(&fakeMotor{})

	done := make(chan bool)
	go func() { done <- h.DoSpin() }()

	time.Sleep(3 * time.Millisecond)
	if !h.Busy() {
		t.Fatal("not busy mid-spin")
	}
	if h.DoFlinch() {
		t.Fatal("flinch ran while spin held the latch")
	}

	if !<-done {
		t.Fatal("spin did not complete")
	}
	if h.Busy() {
		t.Fatal("latch not released after spin")
	}
}

func TestSingStartsPlayback(t *testing.T) {
	h, _, disp := newHandler(&fakeMotor{})
	if !h.DoSing() {
		t.Fatal("sing refused")
	}
	if disp.Current() != display.EmotionHappy {
		t.Fatalf("emotion = %s during song, want happy", disp.Current())
	}
}
