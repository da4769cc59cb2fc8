package vision

import (
	"image"
	"math"
	"testing"
)

func TestObservationGeometry(t *testing.T) {
	obs := Observation{Box: image.Rect(100, 50, 300, 250)}
	if got := obs.CenterX(); got != 200 {
		t.Fatalf("CenterX = %f, want 200", got)
	}
	if got := obs.Width(); got != 200 {
		t.Fatalf("Width = %d, want 200", got)
	}
	if got := obs.Area(); got != 40000 {
		t.Fatalf("Area = %d, want 40000", got)
	}
}

func TestEyeDistance(t *testing.T) {
	var obs Observation
	obs.Landmarks[LandmarkRightEye] = image.Pt(100, 100)
	obs.Landmarks[LandmarkLeftEye] = image.Pt(103, 104)
	if got := obs.EyeDistance(); math.Abs(got-5) > 1e-9 {
		t.Fatalf("EyeDistance = %f, want 5", got)
	}
}

func TestOffsetRatio(t *testing.T) {
	obs := Observation{Box: image.Rect(400, 0, 560, 160)} // center 480
	if got := obs.OffsetRatio(640); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("OffsetRatio = %f, want 0.25", got)
	}
	left := Observation{Box: image.Rect(0, 0, 160, 160)} // center 80
	if got := left.OffsetRatio(640); got >= 0 {
		t.Fatalf("OffsetRatio = %f, want negative for left of center", got)
	}
	if got := obs.OffsetRatio(0); got != 0 {
		t.Fatalf("OffsetRatio with zero width = %f, want 0", got)
	}
}

func TestSelectLargest(t *testing.T) {
	if _, ok := SelectLargest(nil); ok {
		t.Fatal("largest of nothing")
	}
	small := Observation{Box: image.Rect(0, 0, 50, 50)}
	big := Observation{Box: image.Rect(0, 0, 200, 200)}
	got, ok := SelectLargest([]Observation{small, big, small})
	if !ok || got.Area() != big.Area() {
		t.Fatal("largest face not selected")
	}
}

func TestFamiliar(t *testing.T) {
	if (Observation{}).Familiar() {
		t.Fatal("anonymous observation reported familiar")
	}
	if !(Observation{Name: "ada"}).Familiar() {
		t.Fatal("named observation not familiar")
	}
}
