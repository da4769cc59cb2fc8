package motor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Trim holds per-side speed factors compensating for motor imbalance.
// A factor of 1.0 is neutral; values below 1.0 slow that side down.
type Trim struct {
	mu    sync.RWMutex
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// NewTrim returns a neutral calibration.
func NewTrim() *Trim {
	return &Trim{Left: 1.0, Right: 1.0}
}

// Set updates both factors, clamped to [0.5, 1.0].
func (t *Trim) Set(left, right float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Left = clampFactor(left)
	t.Right = clampFactor(right)
}

// Factors returns the current left and right factors.
func (t *Trim) Factors() (float64, float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Left, t.Right
}

// Apply scales a straight-drive speed by the weaker side's factor so
// both wheels can match it.
func (t *Trim) Apply(speed int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	factor := t.Left
	if t.Right < factor {
		factor = t.Right
	}
	out := int(float64(speed) * factor)
	if out < 1 && speed > 0 {
		out = 1
	}
	return out
}

// Save writes the calibration as JSON, creating the directory if needed.
func (t *Trim) Save(path string) error {
	t.mu.RLock()
	data, err := json.MarshalIndent(t, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode trim: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create trim dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trim: %w", err)
	}
	return nil
}

// LoadTrim reads a saved calibration. A missing file yields a neutral
// calibration without error.
func LoadTrim(path string) (*Trim, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewTrim(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read trim: %w", err)
	}
	t := NewTrim()
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("decode trim: %w", err)
	}
	t.Left = clampFactor(t.Left)
	t.Right = clampFactor(t.Right)
	return t, nil
}

func clampFactor(f float64) float64 {
	if f < 0.5 {
		return 0.5
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}
