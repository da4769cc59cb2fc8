package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YuNetDetector finds faces in frames using OpenCV's FaceDetectorYN.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	cfg      Config
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a YuNet face detector from the configured ONNX model.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.DetectorModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.DetectorModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.DetectorModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		float32(cfg.NMSThreshold),
		cfg.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{detector: detector, cfg: cfg}, nil
}

// Detect finds faces in the frame. Detections below the confidence
// threshold or smaller than MinFaceSize are discarded.
func (d *YuNetDetector) Detect(frame gocv.Mat) []Observation {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Empty() {
		return nil
	}

	d.detector.SetInputSize(image.Pt(frame.Cols(), frame.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(frame, &faces)

	// YuNet output format (15 columns per row):
	// 0-3: x, y, w, h (bounding box in pixels)
	// 4-13: 5 facial landmarks (x,y pairs)
	// 14: face score
	var out []Observation
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		score := float64(faces.GetFloatAt(r, 14))

		if score < d.cfg.ConfidenceThresh || w < d.cfg.MinFaceSize || h < d.cfg.MinFaceSize {
			continue
		}

		obs := Observation{
			Box:        image.Rect(x, y, x+w, y+h),
			Confidence: score,
		}
		for i := 0; i < 5; i++ {
			obs.Landmarks[i] = image.Pt(
				int(faces.GetFloatAt(r, 4+i*2)),
				int(faces.GetFloatAt(r, 5+i*2)),
			)
		}
		out = append(out, obs)
	}
	return out
}

// DetectRaw runs detection and hands back the raw result matrix along with
// the row indices that passed filtering. The caller owns the Mat and must
// Close it. The embedder needs the raw rows for AlignCrop.
func (d *YuNetDetector) DetectRaw(frame gocv.Mat) (gocv.Mat, []int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	faces := gocv.NewMat()
	if frame.Empty() {
		return faces, nil
	}

	d.detector.SetInputSize(image.Pt(frame.Cols(), frame.Rows()))
	d.detector.Detect(frame, &faces)

	var rows []int
	for r := 0; r < faces.Rows(); r++ {
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		score := float64(faces.GetFloatAt(r, 14))
		if score >= d.cfg.ConfidenceThresh && w >= d.cfg.MinFaceSize && h >= d.cfg.MinFaceSize {
			rows = append(rows, r)
		}
	}
	return faces, rows
}

// observationFromRow builds an Observation from one row of the raw
// detector output.
func observationFromRow(faces gocv.Mat, r int) Observation {
	x := int(faces.GetFloatAt(r, 0))
	y := int(faces.GetFloatAt(r, 1))
	w := int(faces.GetFloatAt(r, 2))
	h := int(faces.GetFloatAt(r, 3))

	obs := Observation{
		Box:        image.Rect(x, y, x+w, y+h),
		Confidence: float64(faces.GetFloatAt(r, 14)),
	}
	for i := 0; i < 5; i++ {
		obs.Landmarks[i] = image.Pt(
			int(faces.GetFloatAt(r, 4+i*2)),
			int(faces.GetFloatAt(r, 5+i*2)),
		)
	}
	return obs
}

// Close releases the detector resources.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
