// The sweep-test command dry-runs the search sweep on the simulated
// drive and prints the action history it records, then replays the
// return journey. Useful for checking turn timing without a camera.
package main

import (
	"flag"
	"fmt"

	"github.com/walle-robot/go-walle/internal/log"
	"github.com/walle-robot/go-walle/pkg/motor"
	"github.com/walle-robot/go-walle/pkg/recorder"
	"github.com/walle-robot/go-walle/pkg/search"
	"github.com/walle-robot/go-walle/pkg/vision"
)

func main() {
	cycles := flag.Int("cycles", 1, "Sweep oscillation cycles")
	replay := flag.Bool("replay", true, "Replay the return journey afterwards")
	flag.Parse()
	log.Init("debug")

	drive := motor.NewController(motor.NewSimDriver(), motor.DefaultConfig(), nil)
	rec := recorder.New(recorder.DefaultConfig())

	cfg := search.DefaultConfig()
	cfg.Cycles = *cycles
	sweep := search.NewController(cfg)

	noFace := func() (vision.Observation, bool) { return vision.Observation{}, false }
	for !sweep.Done() {
		sweep.RotateAndDetect(drive, rec, noFace)
	}
	fmt.Printf("sweep done: %d actions recorded\n", rec.ActionCount())

	if !*replay {
		return
	}
	if err := rec.StartReturning(); err != nil {
		fmt.Println("nothing to replay:", err)
		return
	}
	for !rec.ExecuteReturnAction(drive, nil) {
	}
	fmt.Println("return journey complete")
}
