// Package camera wraps a V4L2 capture device behind a small frame-source
// API used by the vision pipeline.
package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/walle-robot/go-walle/internal/log"
)

// Config holds capture device settings.
type Config struct {
	Device string
	Width  int
	Height int
	FPS    int
}

// DefaultConfig returns capture settings matching the robot's onboard
// camera module.
func DefaultConfig() Config {
	return Config{
		Device: "/dev/video0",
		Width:  640,
		Height: 480,
		FPS:    30,
	}
}

// Camera owns a gocv VideoCapture. All operations are serialized; the
// underlying V4L2 handle is not safe for concurrent use.
type Camera struct {
	mu    sync.Mutex
	cap   *gocv.VideoCapture
	cfg   Config
	width int
}

// Open opens the configured capture device and applies resolution and
// frame rate settings.
func Open(cfg Config) (*Camera, error) {
	cap, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", cfg.Device, err)
	}

	cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	// V4L2 buffers frames; a small queue keeps reads close to real time.
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	width := int(cap.Get(gocv.VideoCaptureFrameWidth))
	if width <= 0 {
		width = cfg.Width
	}

	log.Info("camera opened", "device", cfg.Device, "width", width, "fps", cfg.FPS)
	return &Camera{cap: cap, cfg: cfg, width: width}, nil
}

// Read grabs the next frame into dst. Returns false on read failure.
func (c *Camera) Read(dst *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cap.Read(dst)
}

// Flush discards n buffered frames so the next Read reflects the
// present scene rather than a stale buffer.
func (c *Camera) Flush(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.cap.Grab(1)
	}
}

// Width reports the actual frame width negotiated with the device.
func (c *Camera) Width() int {
	return c.width
}

// Close releases the capture device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return nil
	}
	err := c.cap.Close()
	c.cap = nil
	return err
}
