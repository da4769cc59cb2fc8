package config

import (
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

// The conversion methods overlay file values onto each subsystem's
// defaults, so fields the file omits (or that the schema deliberately
// does not expose) keep their tuned values.

func (c Config) CameraConfig() camera.Config {
	cfg := camera.DefaultConfig()
	cfg.Device = c.Camera.Device
	cfg.Width = c.Camera.Width
	cfg.Height = c.Camera.Height
	cfg.FPS = c.Camera.FPS
	return cfg
}

func (c Config) VisionConfig() vision.Config {
	cfg := vision.DefaultConfig()
	cfg.DetectorModelPath = c.Vision.DetectorModel
	cfg.EmbedderModelPath = c.Vision.EmbedderModel
	cfg.DatabasePath = c.Vision.DatabasePath
	cfg.ConfidenceThresh = c.Vision.Confidence
	cfg.MinFaceSize = c.Vision.MinFaceSize
	cfg.RecognitionThreshold = c.Vision.RecognitionThreshold
	cfg.RecognitionMargin = c.Vision.RecognitionMargin
	return cfg
}

func (c Config) RecorderConfig() recorder.Config {
	cfg := recorder.DefaultConfig()
	cfg.MinDuration = c.Recorder.MinAction.Duration()
	cfg.RotateSpeed = c.Recorder.RotateSpeed
	return cfg
}

func (c Config) RecognitionConfig() recognition.Config {
	cfg := recognition.DefaultConfig()
	cfg.ConfirmThreshold = c.Recognition.ConfirmThreshold
	cfg.NoFaceResetCount = c.Recognition.NoFaceReset
	cfg.SamplesPerPerson = c.Recognition.SamplesPerPerson
	cfg.SampleStride = c.Recognition.SampleStride
	cfg.RecognitionStride = c.Recognition.RecognitionStride
	return cfg
}

func (c Config) SearchConfig() search.Config {
	cfg := search.DefaultConfig()
	cfg.QuarterTurn = c.Search.QuarterTurn.Duration()
	cfg.RotatePause = c.Search.RotatePause.Duration()
	cfg.RotateSpeed = c.Search.RotateSpeed
	cfg.Cycles = c.Search.Cycles
	cfg.CenterTolerance = c.Search.CenterTolerance
	cfg.MaxCenterPasses = c.Search.MaxCenterPasses
	return cfg
}

func (c Config) BehaviorConfig() behavior.Config {
	cfg := behavior.DefaultConfig()
	cfg.ApproachTimeout = c.Behavior.ApproachTimeout.Duration()
	cfg.CloseFaceWidth = c.Behavior.CloseFaceWidth
	cfg.CloseEyeDistance = c.Behavior.CloseEyeDistance
	cfg.Deadband = c.Behavior.Deadband
	cfg.EMAAlpha = c.Behavior.EMAAlpha
	cfg.Cooldown = c.Behavior.Cooldown.Duration()
	return cfg
}

func (c Config) InteractionConfig() interaction.Config {
	cfg := interaction.DefaultConfig()
	cfg.AwakeDuration = c.Interaction.AwakeDuration.Duration()
	cfg.StrangerTimeout = c.Interaction.StrangerTimeout.Duration()
	cfg.SpinDuration = c.Interaction.SpinDuration.Duration()
	cfg.SpinSpeed = c.Interaction.SpinSpeed
	cfg.SongFile = c.Interaction.SongFile
	return cfg
}

func (c Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.FamiliarTimeout = c.Engine.FamiliarTimeout.Duration()
	return cfg
}

func (c Config) MotorConfig() motor.Config {
	cfg := motor.DefaultConfig()
	cfg.DefaultSpeed = c.Motor.DefaultSpeed
	return cfg
}

func (c Config) RangingConfig() ranging.Config {
	cfg := ranging.DefaultConfig()
	cfg.ThresholdCM = c.Ranging.ThresholdCM
	return cfg
}

func (c Config) AudioConfig() audio.Config {
	cfg := audio.DefaultConfig()
	cfg.SoundDir = c.Audio.SoundDir
	cfg.MinInterval = c.Audio.MinInterval.Duration()
	return cfg
}

func (c Config) VoiceConfig() voice.Config {
	cfg := voice.DefaultConfig()
	if len(c.Voice.WakeWords) > 0 {
		cfg.WakeWords = c.Voice.WakeWords
	}
	return cfg
}
