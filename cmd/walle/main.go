// The walle command runs the robot: camera, face pipeline, drive,
// sensors, the behavior engine, the debug console, and the telemetry
// dashboard. Subsystems that fail to initialize are disabled rather
// than fatal; the robot runs with whatever hardware it has.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/walle-robot/go-walle/internal/config"
	"github.com/walle-robot/go-walle/internal/log"
	"github.com/walle-robot/go-walle/pkg/audio"
	"github.com/walle-robot/go-walle/pkg/behavior"
	"github.com/walle-robot/go-walle/pkg/camera"
	"github.com/walle-robot/go-walle/pkg/debug"
	"github.com/walle-robot/go-walle/pkg/display"
	"github.com/walle-robot/go-walle/pkg/engine"
	"github.com/walle-robot/go-walle/pkg/interaction"
	"github.com/walle-robot/go-walle/pkg/motor"
	"github.com/walle-robot/go-walle/pkg/ranging"
	"github.com/walle-robot/go-walle/pkg/recognition"
	"github.com/walle-robot/go-walle/pkg/recorder"
	"github.com/walle-robot/go-walle/pkg/search"
	"github.com/walle-robot/go-walle/pkg/vision"
	"github.com/walle-robot/go-walle/pkg/voice"
	"github.com/walle-robot/go-walle/pkg/web"
)

func main() {
	configPath := flag.String("config", "walle.yaml", "Path to config file")
	logLevel := flag.String("log-level", "", "Override log level (debug, info, warn, error)")
	noWeb := flag.Bool("no-web", false, "Disable the telemetry dashboard")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	log.Init(level)
	log.Info("walle starting", "config", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	// Vision pipeline: camera, detector, embedder, database. Any
	// failure disables vision; the robot still wakes and reacts to
	// touch and proximity.
	var recognizer *vision.Recognizer
	if cam, err := camera.Open(cfg.CameraConfig()); err != nil {
		log.Warn("camera unavailable, vision disabled", "error", err)
	} else {
		defer cam.Close()
		visCfg := cfg.VisionConfig()
		detector, err := vision.NewYuNet(visCfg)
		if err != nil {
			log.Warn("face detector unavailable, vision disabled", "error", err)
		} else {
			defer detector.Close()
			var embedder *vision.SFaceEmbedder
			if embedder, err = vision.NewSFace(visCfg); err != nil {
				log.Warn("face embedder unavailable, recognition disabled", "error", err)
				embedder = nil
			} else {
				defer embedder.Close()
			}
			db, err := vision.NewDatabase(visCfg)
			if err != nil {
				log.Warn("face database unavailable", "error", err)
			}
			recognizer = vision.NewRecognizer(cam, detector, embedder, db)
			defer recognizer.Close()
		}
	}

	// Drive. The board-specific Driver is injected here; without one
	// the robot runs on the simulated drive and logs its motions.
	trim, err := motor.LoadTrim(cfg.Motor.TrimPath)
	if err != nil {
		log.Warn("trim calibration unreadable, using neutral", "error", err)
		trim = motor.NewTrim()
	}
	drive := motor.NewController(motor.NewSimDriver(), cfg.MotorConfig(), trim)

	prox := ranging.NewArray(cfg.RangingConfig(),
		ranging.NewSimSensor("front", 100))

	var player audio.Player
	if p, err := audio.NewExecPlayer(cfg.AudioConfig()); err != nil {
		log.Warn("audio unavailable, using silent player", "error", err)
		player = audio.NewMock(cfg.AudioConfig().MinInterval)
	} else {
		player = p
	}

	disp := display.NewManager(display.ConsoleRenderer{}, display.DefaultConfig())
	touch := display.NewChanTouch()

	rec := recorder.New(cfg.RecorderConfig())
	recog := recognition.NewHandler(cfg.RecognitionConfig())
	sweep := search.NewController(cfg.SearchConfig())
	servo := behavior.NewController(cfg.BehaviorConfig(), drive, rec, disp, player)
	social := interaction.NewHandler(cfg.InteractionConfig(), drive, rec, disp, player)

	// No onboard speech engine is wired here; the listener still does
	// the matching for phrases injected through the debug console.
	listener := voice.NewListener(nil, cfg.VoiceConfig())

	deps := engine.Deps{
		Motor:       drive,
		Recorder:    rec,
		Recognition: recog,
		Sweep:       sweep,
		Servo:       servo,
		Social:      social,
		Proximity:   prox,
		Display:     disp,
		Touch:       touch,
		Player:      player,
		Listener:    listener,
	}
	if recognizer != nil {
		deps.Vision = recognizer
	}
	eng := engine.New(cfg.EngineConfig(), deps)
	listener.OnWake = eng.HandleWake
	listener.OnCommand = eng.HandleCommand

	if cfg.Web.Enabled && !*noWeb {
		server := web.NewServer(cfg.Web.Addr)
		server.Status = func() any { return eng.Snap() }
		if recognizer != nil && recognizer.Database() != nil {
			server.Persons = recognizer.Database().Persons
		}
		eng.OnTransition = func(from, to engine.State) {
			server.AddEvent("state", fmt.Sprintf("%s -> %s", from, to))
			server.PublishStatus(eng.Snap())
		}
		server.StartAsync()
		defer server.Shutdown()
	}

	console := debug.NewConsole(os.Stdin, debug.Actions{
		Wake:    eng.HandleWake,
		Command: eng.HandleCommand,
		Say:     listener.Handle,
		Touch: func(region string) {
			switch region {
			case "head":
				touch.Push(display.TouchHead)
			case "back":
				touch.Push(display.TouchBack)
			}
		},
		SetTrim: trim.Set,
		SaveTrim: func() error {
			return trim.Save(cfg.Motor.TrimPath)
		},
		Status: func() string {
			return fmt.Sprintf("%+v", eng.Snap())
		},
		Quit: cancel,
	})
	go console.Run(ctx)

	eng.Run(ctx)

	if recognizer != nil && recognizer.Database() != nil {
		if err := recognizer.Database().Save(); err != nil {
			log.Warn("face database save failed", "error", err)
		}
	}
	log.Info("walle stopped")
}
