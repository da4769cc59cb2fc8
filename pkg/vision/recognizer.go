package vision

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/walle-robot/go-walle/internal/log"
)

// ErrNoFace is returned by Register when the captured frame contains
// no usable face.
var ErrNoFace = errors.New("vision: no face in frame")

// FrameSource delivers frames to the recognizer. *camera.Camera
// satisfies it; tests substitute a fake.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	Flush(n int)
	Width() int
}

// Recognizer runs the full face pipeline: grab a frame, detect faces,
// and optionally match them against the embedding database.
type Recognizer struct {
	source   FrameSource
	detector *YuNetDetector
	embedder *SFaceEmbedder
	db       *Database

	mu    sync.Mutex
	frame gocv.Mat
}

// NewRecognizer wires the pipeline together. The embedder may be nil,
// in which case Recognize degrades to detection only.
func NewRecognizer(source FrameSource, detector *YuNetDetector, embedder *SFaceEmbedder, db *Database) *Recognizer {
	return &Recognizer{
		source:   source,
		detector: detector,
		embedder: embedder,
		db:       db,
		frame:    gocv.NewMat(),
	}
}

// FrameWidth reports the width of frames produced by the source.
func (r *Recognizer) FrameWidth() int {
	return r.source.Width()
}

// Database exposes the backing embedding store.
func (r *Recognizer) Database() *Database {
	return r.db
}

// DetectOnly grabs a fresh frame and returns detected faces without
// identity matching. Stale buffered frames are flushed first so the
// observation reflects the present, not the past.
func (r *Recognizer) DetectOnly() ([]Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.grab(); err != nil {
		return nil, err
	}
	return r.detector.Detect(r.frame), nil
}

// Recognize grabs a frame, detects faces, and annotates each with the
// best database match (if any).
func (r *Recognizer) Recognize() ([]Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.grab(); err != nil {
		return nil, err
	}

	if r.embedder == nil || r.db == nil || r.db.PersonCount() == 0 {
		return r.detector.Detect(r.frame), nil
	}

	faces, rows := r.detector.DetectRaw(r.frame)
	defer faces.Close()

	obs := make([]Observation, 0, len(rows))
	for _, row := range rows {
		o := observationFromRow(faces, row)
		emb, err := r.embedder.Embed(r.frame, faces, row)
		if err != nil {
			log.Debug("embedding failed", "error", err)
		} else {
			o.Name, o.Similarity = r.db.Search(emb)
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// Register captures one sample for the named person: grab a frame, take
// the largest face, embed it, and store the embedding. Implements the
// Registrar contract used by the registration flow.
func (r *Recognizer) Register(name string) (string, error) {
	if r.embedder == nil || r.db == nil {
		return "", errors.New("vision: recognition disabled, cannot register")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.grab(); err != nil {
		return "", err
	}

	faces, rows := r.detector.DetectRaw(r.frame)
	defer faces.Close()

	bestRow := -1
	bestArea := 0
	for _, row := range rows {
		o := observationFromRow(faces, row)
		if o.Area() > bestArea {
			bestArea = o.Area()
			bestRow = row
		}
	}
	if bestRow < 0 {
		return "", ErrNoFace
	}

	emb, err := r.embedder.Embed(r.frame, faces, bestRow)
	if err != nil {
		return "", fmt.Errorf("embed registration sample: %w", err)
	}
	r.db.AddEmbedding(name, emb)
	log.Debug("registration sample stored", "name", name, "samples", r.db.EmbeddingCount(name))
	return name, nil
}

// Close releases the held frame buffer. The detector, embedder, and
// source are owned by the caller.
func (r *Recognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frame.Close()
}

func (r *Recognizer) grab() error {
	r.source.Flush(2)
	if !r.source.Read(&r.frame) || r.frame.Empty() {
		return errors.New("vision: camera read failed")
	}
	return nil
}
