package display

import (
	"testing"
	"time"
)

type recordingRenderer struct {
	rendered []string
}

func (r *recordingRenderer) Render(emotion string) {
	r.rendered = append(r.rendered, emotion)
}

func newTestManager(delay time.Duration) (*Manager, *recordingRenderer) {
	r := &recordingRenderer{}
	return NewManager(r, Config{ChangeDelay: delay}), r
}

func TestStartsNeutral(t *testing.T) {
	m, r := newTestManager(time.Hour)
	if m.Current() != EmotionNeutral {
		t.Fatalf("initial emotion = %q", m.Current())
	}
	if len(r.rendered) != 1 || r.rendered[0] != EmotionNeutral {
		t.Fatalf("initial render = %v", r.rendered)
	}
}

func TestChangeWaitsForDelay(t *testing.T) {
	m, r := newTestManager(20 * time.Millisecond)

	m.ShowEmotion(EmotionHappy, false)
	m.Update()
	if m.Current() != EmotionNeutral {
		t.Fatal("emotion changed before the settling delay")
	}

	time.Sleep(30 * time.Millisecond)
	m.Update()
	if m.Current() != EmotionHappy {
		t.Fatalf("emotion = %q after delay, want happy", m.Current())
	}
	if len(r.rendered) != 2 {
		t.Fatalf("rendered %v", r.rendered)
	}
}

func TestForceAppliesImmediately(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	m.ShowEmotion(EmotionShocked, true)
	if m.Current() != EmotionShocked {
		t.Fatalf("emotion = %q after forced change", m.Current())
	}
}

func TestNewerRequestReplacesPending(t *testing.T) {
	m, r := newTestManager(10 * time.Millisecond)

	m.ShowEmotion(EmotionHappy, false)
	m.ShowEmotion(EmotionCurious, false)
	time.Sleep(20 * time.Millisecond)
	m.Update()

	if m.Current() != EmotionCurious {
		t.Fatalf("emotion = %q, want curious", m.Current())
	}
	for _, e := range r.rendered {
		if e == EmotionHappy {
			t.Fatal("replaced pending emotion still reached the screen")
		}
	}
}

func TestRequestingCurrentCancelsPending(t *testing.T) {
	m, _ := newTestManager(10 * time.Millisecond)

	m.ShowEmotion(EmotionHappy, false)
	m.ShowEmotion(EmotionNeutral, false) // back to what's on screen
	time.Sleep(20 * time.Millisecond)
	m.Update()

	if m.Current() != EmotionNeutral {
		t.Fatalf("emotion = %q, want neutral", m.Current())
	}
}

func TestForceDiscardsPending(t *testing.T) {
	m, _ := newTestManager(10 * time.Millisecond)

	m.ShowEmotion(EmotionHappy, false)
	m.ShowEmotion(EmotionScared, true)
	time.Sleep(20 * time.Millisecond)
	m.Update()

	if m.Current() != EmotionScared {
		t.Fatalf("emotion = %q, want scared to stick", m.Current())
	}
}

func TestNilRendererTolerated(t *testing.T) {
	m := NewManager(nil, Config{ChangeDelay: 0})
	m.ShowEmotion(EmotionHappy, true)
	if m.Current() != EmotionHappy {
		t.Fatalf("emotion = %q", m.Current())
	}
}
