package recognition

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		ConfirmThreshold:  3,
		NoFaceResetCount:  5,
		SamplesPerPerson:  4,
		SampleStride:      3,
		RecognitionStride: 2,
	}
}

func TestUpdateCounterSaturatesAndInhibits(t *testing.T) {
	h := NewHandler(testConfig())

	for i := 0; i < 10; i++ {
		h.UpdateCounter(LabelFamiliar)
	}
	if got := h.Count(LabelFamiliar); got != 3 {
		t.Fatalf("familiar count = %d, want saturation at 3", got)
	}
	if !h.Confirmed(LabelFamiliar) {
		t.Fatal("familiar not confirmed at threshold")
	}

	// Each stranger observation suppresses the familiar counter.
	h.UpdateCounter(LabelStranger)
	if got := h.Count(LabelFamiliar); got != 2 {
		t.Fatalf("familiar count after inhibition = %d, want 2", got)
	}
	if h.Confirmed(LabelFamiliar) {
		t.Fatal("familiar still confirmed after inhibition")
	}
	if h.Confirmed(LabelStranger) {
		t.Fatal("stranger confirmed from a single observation")
	}
}

func TestCountersNeverBothConfirmed(t *testing.T) {
	h := NewHandler(testConfig())
	seq := []string{
		LabelFamiliar, LabelStranger, LabelFamiliar, LabelStranger,
		LabelStranger, LabelFamiliar, LabelStranger, LabelStranger,
	}
	for _, label := range seq {
		h.UpdateCounter(label)
		if h.Confirmed(LabelFamiliar) && h.Confirmed(LabelStranger) {
			t.Fatal("both labels confirmed simultaneously")
		}
	}
}

func TestOnFaceLostDecaysThenResets(t *testing.T) {
	h := NewHandler(testConfig())
	for i := 0; i < 3; i++ {
		h.UpdateCounter(LabelFamiliar)
	}
	h.SetActiveLabel(LabelFamiliar)

	// Short blips decay counters but do not declare the face gone.
	for i := 0; i < 4; i++ {
		if h.OnFaceLost() {
			t.Fatalf("face declared lost after %d misses", i+1)
		}
	}
	if h.Count(LabelFamiliar) != 0 {
		t.Fatalf("familiar count = %d after decay, want 0", h.Count(LabelFamiliar))
	}

	if !h.OnFaceLost() {
		t.Fatal("face not declared lost at the reset count")
	}
	if h.ActiveLabel() != "" {
		t.Fatalf("active label %q survived the reset", h.ActiveLabel())
	}
}

func TestOnFaceDetectedResetsMissStreak(t *testing.T) {
	h := NewHandler(testConfig())
	for i := 0; i < 4; i++ {
		h.OnFaceLost()
	}
	h.OnFaceDetected()
	if h.OnFaceLost() {
		t.Fatal("miss streak was not reset by a detection")
	}
}

func TestStrides(t *testing.T) {
	h := NewHandler(testConfig())
	if h.SkipRecognitionFrame(4) {
		t.Fatal("frame 4 skipped with stride 2")
	}
	if !h.SkipRecognitionFrame(5) {
		t.Fatal("frame 5 not skipped with stride 2")
	}
	if h.SkipRegistrationFrame(6) {
		t.Fatal("frame 6 skipped with stride 3")
	}
	if !h.SkipRegistrationFrame(7) {
		t.Fatal("frame 7 not skipped with stride 3")
	}
}

type fakeRegistrar struct {
	fail  bool
	calls int
}

func (f *fakeRegistrar) Register(name string) (string, error) {
	f.calls++
	if f.fail {
		return "", errors.New("no face")
	}
	return name, nil
}

func TestRegistrationCompletes(t *testing.T) {
	h := NewHandler(testConfig())
	h.StartRegistration("ada")
	if !h.Registering() {
		t.Fatal("not registering after StartRegistration")
	}

	reg := &fakeRegistrar{}
	completed := false
	for i := 0; i < 4; i++ {
		if h.HandleRegistration(reg, func() { completed = true }) != (i == 3) {
			t.Fatalf("completion reported at sample %d", i+1)
		}
	}
	if !completed {
		t.Fatal("onComplete not invoked")
	}
	if h.Registering() {
		t.Fatal("still registering after completion")
	}
}

func TestRegistrationFailedSamplesDontCount(t *testing.T) {
	h := NewHandler(testConfig())
	h.StartRegistration("ada")

	reg := &fakeRegistrar{fail: true}
	for i := 0; i < 10; i++ {
		if h.HandleRegistration(reg, nil) {
			t.Fatal("registration completed from failed samples")
		}
	}
	if !h.Registering() {
		t.Fatal("registration disarmed by failures")
	}
}

func TestGeneratedRegistrationName(t *testing.T) {
	h := NewHandler(testConfig())
	h.StartRegistration("")
	if !strings.HasPrefix(h.RegisterName(), "person-") {
		t.Fatalf("generated name %q missing person- prefix", h.RegisterName())
	}
}

func TestCancelRegistration(t *testing.T) {
	h := NewHandler(testConfig())
	h.StartRegistration("ada")
	h.CancelRegistration()
	if h.Registering() || h.RegisterName() != "" {
		t.Fatal("cancel did not disarm registration")
	}
}
