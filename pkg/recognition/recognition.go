// Package recognition turns noisy per-frame face classification into a
// stable familiar/stranger decision using mutually-inhibiting counters,
// and tracks face-registration sample collection.
package recognition

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/walle-robot/go-walle/internal/log"
)

// Labels the counters discriminate between.
const (
	LabelFamiliar = "familiar"
	LabelStranger = "stranger"
)

// Config holds the debounce and registration tuning.
type Config struct {
	// ConfirmThreshold is how many net consistent observations are needed
	// before a label counts as confirmed.
	ConfirmThreshold int

	// NoFaceResetCount is how many consecutive face-less frames are needed
	// before the face is considered genuinely lost.
	NoFaceResetCount int

	// SamplesPerPerson is how many embeddings to collect when registering.
	SamplesPerPerson int

	// SampleStride spreads registration sampling: only every Nth frame is
	// eligible, to encourage pose variety.
	SampleStride int

	// RecognitionStride runs recognition only every Nth frame.
	RecognitionStride int
}

// DefaultConfig returns the recommended recognition configuration.
func DefaultConfig() Config {
	return Config{
		ConfirmThreshold:  3,
		NoFaceResetCount:  30,
		SamplesPerPerson:  5,
		SampleStride:      3,
		RecognitionStride: 2,
	}
}

// Registrar collects face samples for a named person.
// Implemented by the vision pipeline.
type Registrar interface {
	// Register adds one embedding sample for name from the current camera
	// frame. It returns a progress message and whether a sample was taken.
	Register(name string) (string, error)
}

// Handler applies hysteresis to per-frame classification results.
type Handler struct {
	cfg Config

	counters    map[string]int
	activeLabel string
	noFaceCount int

	registering   bool
	registerName  string
	registerCount int
}

// NewHandler creates a Handler with all counters at zero.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		cfg: cfg,
		counters: map[string]int{
			LabelFamiliar: 0,
			LabelStranger: 0,
		},
	}
}

// UpdateCounter increments label's counter, saturating at the confirm
// threshold, and decrements every other counter (floored at zero) in the
// same call. The mutual inhibition means two labels can never be
// confirmed simultaneously.
func (h *Handler) UpdateCounter(label string) {
	for key := range h.counters {
		if key == label {
			if h.counters[key] < h.cfg.ConfirmThreshold {
				h.counters[key]++
			}
		} else if h.counters[key] > 0 {
			h.counters[key]--
		}
	}
}

// ResetCounters zeroes all counters.
func (h *Handler) ResetCounters() {
	for key := range h.counters {
		h.counters[key] = 0
	}
}

// decayCounters decrements every nonzero counter by one.
func (h *Handler) decayCounters() {
	for key := range h.counters {
		if h.counters[key] > 0 {
			h.counters[key]--
		}
	}
}

// Count returns label's current counter value.
func (h *Handler) Count(label string) int {
	return h.counters[label]
}

// Confirmed reports whether label has reached the confirm threshold.
func (h *Handler) Confirmed(label string) bool {
	return h.counters[label] >= h.cfg.ConfirmThreshold
}

// OnFaceLost records a face-less frame: all counters decay by one and the
// no-face counter advances. Once NoFaceResetCount face-less frames have
// accumulated the active label and counters are fully reset and true is
// returned, meaning the face is genuinely gone and not a one-frame blip.
func (h *Handler) OnFaceLost() bool {
	h.noFaceCount++
	h.decayCounters()

	if h.noFaceCount >= h.cfg.NoFaceResetCount {
		h.activeLabel = ""
		h.ResetCounters()
		h.noFaceCount = 0
		return true
	}
	return false
}

// OnFaceDetected resets the no-face counter. Recognition counters are
// left untouched.
func (h *Handler) OnFaceDetected() {
	h.noFaceCount = 0
}

// SetActiveLabel records which label currently drives the robot's emotion.
func (h *Handler) SetActiveLabel(label string) {
	h.activeLabel = label
}

// ActiveLabel returns the label currently driving the robot's emotion, or
// an empty string when none is set.
func (h *Handler) ActiveLabel() string {
	return h.activeLabel
}

// SkipRecognitionFrame reports whether frame should be skipped by the
// recognition stride.
func (h *Handler) SkipRecognitionFrame(frame int) bool {
	return frame%h.cfg.RecognitionStride != 0
}

// SkipRegistrationFrame reports whether frame should be skipped by the
// registration sampling stride.
func (h *Handler) SkipRegistrationFrame(frame int) bool {
	return frame%h.cfg.SampleStride != 0
}

// Registering reports whether sample collection is in progress.
func (h *Handler) Registering() bool {
	return h.registering
}

// RegisterName returns the name samples are being collected for.
func (h *Handler) RegisterName() string {
	return h.registerName
}

// StartRegistration arms sample collection. When name is empty a unique
// placeholder name is generated.
func (h *Handler) StartRegistration(name string) {
	if name == "" {
		name = fmt.Sprintf("person-%s", uuid.NewString()[:8])
	}
	h.registerName = name
	h.registering = true
	h.registerCount = 0
	log.Info("starting face registration", "name", name, "samples", h.cfg.SamplesPerPerson)
}

// HandleRegistration requests one sample from the registrar. On reaching
// the configured sample count it disarms registration and invokes
// onComplete. Returns true when registration finished on this call.
func (h *Handler) HandleRegistration(reg Registrar, onComplete func()) bool {
	msg, err := reg.Register(h.registerName)
	if err != nil {
		log.Debug("registration sample failed", "error", err)
		return false
	}
	h.registerCount++
	log.Debug("registration sample collected", "progress", msg)

	if h.registerCount >= h.cfg.SamplesPerPerson {
		log.Info("face registration complete", "name", h.registerName)
		h.registering = false
		h.registerName = ""
		h.registerCount = 0
		if onComplete != nil {
			onComplete()
		}
		return true
	}
	return false
}

// CancelRegistration disarms sample collection without completing it.
func (h *Handler) CancelRegistration() {
	h.registering = false
	h.registerName = ""
	h.registerCount = 0
}
