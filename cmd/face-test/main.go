// The face-test command is a camera and detector smoke test: open the
// camera, run YuNet on a few frames, and print what it sees. With the
// embedder model present it also reports recognition matches.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/walle-robot/go-walle/internal/config"
	"github.com/walle-robot/go-walle/internal/log"
	"github.com/walle-robot/go-walle/pkg/camera"
	"github.com/walle-robot/go-walle/pkg/vision"
)

func main() {
	configPath := flag.String("config", "walle.yaml", "Path to config file")
	frames := flag.Int("frames", 10, "Frames to process")
	recognize := flag.Bool("recognize", false, "Run recognition, not just detection")
	flag.Parse()
	log.Init("debug")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	cam, err := camera.Open(cfg.CameraConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "camera: %v\n", err)
		os.Exit(1)
	}
	defer cam.Close()

	visCfg := cfg.VisionConfig()
	detector, err := vision.NewYuNet(visCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "detector: %v\n", err)
		os.Exit(1)
	}
	defer detector.Close()

	var embedder *vision.SFaceEmbedder
	var db *vision.Database
	if *recognize {
		if embedder, err = vision.NewSFace(visCfg); err != nil {
			fmt.Fprintf(os.Stderr, "embedder: %v\n", err)
			os.Exit(1)
		}
		defer embedder.Close()
		if db, err = vision.NewDatabase(visCfg); err != nil {
			fmt.Fprintf(os.Stderr, "database: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("known people: %v\n", db.Persons())
	}

	pipeline := vision.NewRecognizer(cam, detector, embedder, db)
	defer pipeline.Close()

	for i := 0; i < *frames; i++ {
		var obs []vision.Observation
		if *recognize {
			obs, err = pipeline.Recognize()
		} else {
			obs, err = pipeline.DetectOnly()
		}
		if err != nil {
			fmt.Printf("frame %d: %v\n", i, err)
			continue
		}
		fmt.Printf("frame %d: %d face(s)\n", i, len(obs))
		for _, o := range obs {
			name := o.Name
			if name == "" {
				name = "stranger"
			}
			fmt.Printf("  %s box=%v conf=%.2f sim=%.2f\n", name, o.Box, o.Confidence, o.Similarity)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
