// Package vision provides face detection and recognition for the robot:
// a YuNet detector and SFace embedder running on OpenCV DNN, backed by a
// small on-disk embedding database.
package vision

import (
	"image"
	"math"
)

// Landmark indices in an Observation. YuNet reports five facial points.
const (
	LandmarkRightEye = iota
	LandmarkLeftEye
	LandmarkNose
	LandmarkRightMouth
	LandmarkLeftMouth
)

// Observation is a single detected face, optionally identified.
// Name is empty for strangers.
type Observation struct {
	Box        image.Rectangle
	Landmarks  [5]image.Point
	Confidence float64

	Name       string
	Similarity float64
}

// CenterX returns the horizontal center of the face box in pixels.
func (o Observation) CenterX() float64 {
	return float64(o.Box.Min.X) + float64(o.Box.Dx())/2
}

// Width returns the face box width in pixels.
func (o Observation) Width() int {
	return o.Box.Dx()
}

// Area returns the face box area in square pixels.
func (o Observation) Area() int {
	return o.Box.Dx() * o.Box.Dy()
}

// EyeDistance returns the pixel distance between the two eye landmarks.
// It is a more stable proxy for subject distance than the box width.
func (o Observation) EyeDistance() float64 {
	dx := float64(o.Landmarks[LandmarkRightEye].X - o.Landmarks[LandmarkLeftEye].X)
	dy := float64(o.Landmarks[LandmarkRightEye].Y - o.Landmarks[LandmarkLeftEye].Y)
	return math.Hypot(dx, dy)
}

// Familiar reports whether the observation was matched to a known person.
func (o Observation) Familiar() bool {
	return o.Name != ""
}

// SelectLargest picks the face with the largest box area, or false when
// the slice is empty.
func SelectLargest(obs []Observation) (Observation, bool) {
	if len(obs) == 0 {
		return Observation{}, false
	}
	largest := obs[0]
	for _, o := range obs[1:] {
		if o.Area() > largest.Area() {
			largest = o
		}
	}
	return largest, true
}

// OffsetRatio returns the horizontal offset of the face center from the
// frame center as a fraction of the frame width. Negative is left of
// center, positive is right.
func (o Observation) OffsetRatio(frameWidth int) float64 {
	if frameWidth <= 0 {
		return 0
	}
	return (o.CenterX() - float64(frameWidth)/2) / float64(frameWidth)
}
