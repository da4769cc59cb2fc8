// Package config loads the robot's YAML configuration file and converts
// it into the per-subsystem config values the packages consume. The
// file is optional; every field defaults to the subsystem's tuned
// value, so an empty file and no file behave identically.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/walle-robot/go-walle/pkg/audio"
	"github.com/walle-robot/go-walle/pkg/behavior"
	"github.com/walle-robot/go-walle/pkg/camera"
	"github.com/walle-robot/go-walle/pkg/engine"
	"github.com/walle-robot/go-walle/pkg/interaction"
	"github.com/walle-robot/go-walle/pkg/motor"
	"github.com/walle-robot/go-walle/pkg/ranging"
	"github.com/walle-robot/go-walle/pkg/recognition"
	"github.com/walle-robot/go-walle/pkg/recorder"
	"github.com/walle-robot/go-walle/pkg/search"
	"github.com/walle-robot/go-walle/pkg/vision"
	"github.com/walle-robot/go-walle/pkg/voice"
)

// Seconds is a duration expressed as float seconds in YAML.
type Seconds float64

// Duration converts to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// Config is the YAML file schema. Construct with Default, then Load
// over it; treat as immutable afterwards.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Camera struct {
		Device string `yaml:"device"`
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
		FPS    int    `yaml:"fps"`
	} `yaml:"camera"`

	Vision struct {
		DetectorModel        string  `yaml:"detector_model"`
		EmbedderModel        string  `yaml:"embedder_model"`
		DatabasePath         string  `yaml:"database_path"`
		Confidence           float64 `yaml:"confidence"`
		MinFaceSize          int     `yaml:"min_face_size"`
		RecognitionThreshold float64 `yaml:"recognition_threshold"`
		RecognitionMargin    float64 `yaml:"recognition_margin"`
	} `yaml:"vision"`

	Recorder struct {
		MinAction   Seconds `yaml:"min_action_seconds"`
		RotateSpeed int     `yaml:"rotate_speed"`
	} `yaml:"recorder"`

	Recognition struct {
		ConfirmThreshold  int `yaml:"confirm_threshold"`
		NoFaceReset       int `yaml:"no_face_reset"`
		SamplesPerPerson  int `yaml:"samples_per_person"`
		SampleStride      int `yaml:"sample_stride"`
		RecognitionStride int `yaml:"recognition_stride"`
	} `yaml:"recognition"`

	Search struct {
		QuarterTurn     Seconds `yaml:"quarter_turn_seconds"`
		RotatePause     Seconds `yaml:"rotate_pause_seconds"`
		RotateSpeed     int     `yaml:"rotate_speed"`
		Cycles          int     `yaml:"cycles"`
		CenterTolerance float64 `yaml:"center_tolerance"`
		MaxCenterPasses int     `yaml:"max_center_passes"`
	} `yaml:"search"`

	Behavior struct {
		ApproachTimeout  Seconds `yaml:"approach_timeout_seconds"`
		CloseFaceWidth   int     `yaml:"close_face_width"`
		CloseEyeDistance float64 `yaml:"close_eye_distance"`
		Deadband         float64 `yaml:"deadband"`
		EMAAlpha         float64 `yaml:"ema_alpha"`
		Cooldown         Seconds `yaml:"cooldown_seconds"`
	} `yaml:"behavior"`

	Interaction struct {
		AwakeDuration   Seconds `yaml:"awake_seconds"`
		StrangerTimeout Seconds `yaml:"stranger_timeout_seconds"`
		SpinDuration    Seconds `yaml:"spin_seconds"`
		SpinSpeed       int     `yaml:"spin_speed"`
		SongFile        string  `yaml:"song_file"`
	} `yaml:"interaction"`

	Engine struct {
		FamiliarTimeout Seconds `yaml:"familiar_timeout_seconds"`
	} `yaml:"engine"`

	Motor struct {
		DefaultSpeed int    `yaml:"default_speed"`
		TrimPath     string `yaml:"trim_path"`
	} `yaml:"motor"`

	Ranging struct {
		ThresholdCM float64 `yaml:"threshold_cm"`
	} `yaml:"ranging"`

	Audio struct {
		SoundDir    string  `yaml:"sound_dir"`
		MinInterval Seconds `yaml:"min_interval_seconds"`
	} `yaml:"audio"`

	Voice struct {
		WakeWords []string `yaml:"wake_words"`
	} `yaml:"voice"`

	Web struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"web"`
}

// Default returns the configuration matching the per-package defaults.
func Default() Config {
	var c Config
	c.LogLevel = "info"

	cam := camera.DefaultConfig()
	c.Camera.Device = cam.Device
	c.Camera.Width = cam.Width
	c.Camera.Height = cam.Height
	c.Camera.FPS = cam.FPS

	vis := vision.DefaultConfig()
	c.Vision.DetectorModel = vis.DetectorModelPath
	c.Vision.EmbedderModel = vis.EmbedderModelPath
	c.Vision.DatabasePath = vis.DatabasePath
	c.Vision.Confidence = vis.ConfidenceThresh
	c.Vision.MinFaceSize = vis.MinFaceSize
	c.Vision.RecognitionThreshold = vis.RecognitionThreshold
	c.Vision.RecognitionMargin = vis.RecognitionMargin

	rec := recorder.DefaultConfig()
	c.Recorder.MinAction = Seconds(rec.MinDuration.Seconds())
	c.Recorder.RotateSpeed = rec.RotateSpeed

	rcg := recognition.DefaultConfig()
	c.Recognition.ConfirmThreshold = rcg.ConfirmThreshold
	c.Recognition.NoFaceReset = rcg.NoFaceResetCount
	c.Recognition.SamplesPerPerson = rcg.SamplesPerPerson
	c.Recognition.SampleStride = rcg.SampleStride
	c.Recognition.RecognitionStride = rcg.RecognitionStride

	srch := search.DefaultConfig()
	c.Search.QuarterTurn = Seconds(srch.QuarterTurn.Seconds())
	c.Search.RotatePause = Seconds(srch.RotatePause.Seconds())
	c.Search.RotateSpeed = srch.RotateSpeed
	c.Search.Cycles = srch.Cycles
	c.Search.CenterTolerance = srch.CenterTolerance
	c.Search.MaxCenterPasses = srch.MaxCenterPasses

	bhv := behavior.DefaultConfig()
	c.Behavior.ApproachTimeout = Seconds(bhv.ApproachTimeout.Seconds())
	c.Behavior.CloseFaceWidth = bhv.CloseFaceWidth
	c.Behavior.CloseEyeDistance = bhv.CloseEyeDistance
	c.Behavior.Deadband = bhv.Deadband
	c.Behavior.EMAAlpha = bhv.EMAAlpha
	c.Behavior.Cooldown = Seconds(bhv.Cooldown.Seconds())

	soc := interaction.DefaultConfig()
	c.Interaction.AwakeDuration = Seconds(soc.AwakeDuration.Seconds())
	c.Interaction.StrangerTimeout = Seconds(soc.StrangerTimeout.Seconds())
	c.Interaction.SpinDuration = Seconds(soc.SpinDuration.Seconds())
	c.Interaction.SpinSpeed = soc.SpinSpeed
	c.Interaction.SongFile = soc.SongFile

	eng := engine.DefaultConfig()
	c.Engine.FamiliarTimeout = Seconds(eng.FamiliarTimeout.Seconds())

	c.Motor.DefaultSpeed = motor.DefaultConfig().DefaultSpeed
	c.Motor.TrimPath = "data/trim.json"

	rng := ranging.DefaultConfig()
	c.Ranging.ThresholdCM = rng.ThresholdCM

	aud := audio.DefaultConfig()
	c.Audio.SoundDir = aud.SoundDir
	c.Audio.MinInterval = Seconds(aud.MinInterval.Seconds())

	c.Voice.WakeWords = voice.DefaultConfig().WakeWords

	c.Web.Enabled = true
	c.Web.Addr = ":8088"
	return c
}

// Load reads path over the defaults. A missing file yields pure
// defaults; unknown fields are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the subsystems cannot work with.
func (c Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.New("camera resolution must be positive")
	}
	if c.Vision.Confidence <= 0 || c.Vision.Confidence > 1 {
		return errors.New("vision confidence must be in (0, 1]")
	}
	if c.Vision.RecognitionThreshold <= 0 || c.Vision.RecognitionThreshold > 1 {
		return errors.New("recognition threshold must be in (0, 1]")
	}
	if c.Recognition.ConfirmThreshold <= 0 {
		return errors.New("confirm threshold must be positive")
	}
	if c.Recognition.SampleStride <= 0 || c.Recognition.RecognitionStride <= 0 {
		return errors.New("recognition strides must be positive")
	}
	if c.Search.Cycles <= 0 {
		return errors.New("search cycles must be positive")
	}
	if c.Behavior.EMAAlpha <= 0 || c.Behavior.EMAAlpha > 1 {
		return errors.New("ema alpha must be in (0, 1]")
	}
	if c.Ranging.ThresholdCM <= 0 {
		return errors.New("ranging threshold must be positive")
	}
	return nil
}
