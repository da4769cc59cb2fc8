package vision

import (
	"fmt"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// SFaceEmbedder turns an aligned face crop into an L2-normalized
// embedding vector using OpenCV's FaceRecognizerSF.
type SFaceEmbedder struct {
	rec gocv.FaceRecognizerSF
	mu  sync.Mutex // Protects inference
}

// NewSFace creates an SFace embedder from the configured ONNX model.
func NewSFace(cfg Config) (*SFaceEmbedder, error) {
	if _, err := os.Stat(cfg.EmbedderModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.EmbedderModelPath)
	}
	rec := gocv.NewFaceRecognizerSF(cfg.EmbedderModelPath, "")
	return &SFaceEmbedder{rec: rec}, nil
}

// Embed aligns the face described by one raw detector row against the
// frame, crops it and extracts a normalized embedding.
func (e *SFaceEmbedder) Embed(frame gocv.Mat, faces gocv.Mat, row int) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	faceRow := faces.RowRange(row, row+1)
	defer faceRow.Close()

	aligned := gocv.NewMat()
	defer aligned.Close()
	e.rec.AlignCrop(frame, faceRow, &aligned)
	if aligned.Empty() {
		return nil, fmt.Errorf("align crop produced empty image")
	}

	feature := gocv.NewMat()
	defer feature.Close()
	e.rec.Feature(aligned, &feature)
	if feature.Empty() {
		return nil, fmt.Errorf("feature extraction produced empty vector")
	}

	emb := make([]float32, feature.Cols())
	for i := range emb {
		emb[i] = feature.GetFloatAt(0, i)
	}
	normalize(emb)
	return emb, nil
}

// normalize scales the vector to unit length in place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// Close releases the embedder resources.
func (e *SFaceEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.Close()
	return nil
}
