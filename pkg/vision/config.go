package vision

// Config holds all tunable parameters for the face pipeline.
type Config struct {
	// Detector (YuNet)
	DetectorModelPath string  // Path to the YuNet ONNX model
	ConfidenceThresh  float64 // Minimum detection confidence
	NMSThreshold      float64 // Non-maximum-suppression threshold
	TopK              int     // Maximum candidate boxes
	InputWidth        int     // Model input width
	InputHeight       int     // Model input height
	MinFaceSize       int     // Discard detections smaller than this (pixels)

	// Embedder (SFace)
	EmbedderModelPath string // Path to the SFace ONNX model

	// Matching
	RecognitionThreshold float64 // Similarity above which a match counts, in [0,1]
	RecognitionMargin    float64 // Required gap between best and second-best person

	// Database
	DatabasePath string // Where known-face embeddings are persisted
}

// DefaultConfig returns production defaults for the face pipeline.
func DefaultConfig() Config {
	return Config{
		DetectorModelPath: "models/face_detection_yunet_2023mar.onnx",
		ConfidenceThresh:  0.75,
		NMSThreshold:      0.3,
		TopK:              5000,
		InputWidth:        320,
		InputHeight:       320,
		MinFaceSize:       60,

		EmbedderModelPath: "models/face_recognition_sface_2021dec.onnx",

		RecognitionThreshold: 0.6,
		RecognitionMargin:    0.0,

		DatabasePath: "data/faces.json",
	}
}
