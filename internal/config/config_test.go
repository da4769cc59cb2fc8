package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walle.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatal("missing file did not produce pure defaults")
	}
}

func TestEmptyFileMatchesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Camera.Width != Default().Camera.Width {
		t.Fatal("empty file changed camera defaults")
	}
}

func TestFileOverlaysDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
camera:
  device: /dev/video2
search:
  cycles: 4
interaction:
  awake_seconds: 12.5
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Camera.Device != "/dev/video2" {
		t.Fatalf("camera device = %q", cfg.Camera.Device)
	}
	if cfg.Search.Cycles != 4 {
		t.Fatalf("search cycles = %d", cfg.Search.Cycles)
	}
	if got := cfg.Interaction.AwakeDuration.Duration(); got != 12500*time.Millisecond {
		t.Fatalf("awake duration = %v", got)
	}
	// Fields the file does not mention stay at their defaults.
	if cfg.Camera.Width != Default().Camera.Width {
		t.Fatal("unrelated field lost its default")
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := Load(writeConfig(t, "typo_section:\n  x: 1\n"))
	if err == nil {
		t.Fatal("unknown top-level field accepted")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"zero width", "camera:\n  width: 0\n", "resolution"},
		{"confidence over one", "vision:\n  confidence: 1.5\n", "confidence"},
		{"zero cycles", "search:\n  cycles: 0\n", "cycles"},
		{"alpha over one", "behavior:\n  ema_alpha: 2\n", "alpha"},
		{"zero threshold", "ranging:\n  threshold_cm: 0\n", "threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("bad value accepted")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSecondsDuration(t *testing.T) {
	if got := Seconds(0.3).Duration(); got != 300*time.Millisecond {
		t.Fatalf("0.3s = %v", got)
	}
	if got := Seconds(0).Duration(); got != 0 {
		t.Fatalf("0s = %v", got)
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults fail validation: %v", err)
	}
}
