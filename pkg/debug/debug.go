// Package debug is the robot's stdin console: a line-oriented command
// reader for driving the robot without voice or touch hardware, used
// during bring-up and bench runs.
package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/walle-robot/go-walle/internal/log"
)

// Actions are the hooks the console drives; any may be nil.
type Actions struct {
	// Wake and Command feed the engine's event queue.
	Wake    func()
	Command func(cmd string)
	// Say injects a phrase into the voice matcher as if heard.
	Say func(phrase string)
	// Touch simulates a touch on the named region ("head" or "back").
	Touch func(region string)
	// SetTrim adjusts the wheel trim factors; SaveTrim persists them.
	SetTrim  func(left, right float64)
	SaveTrim func() error
	// Status returns a printable snapshot.
	Status func() string
	// Quit shuts the robot down.
	Quit func()
}

// Console reads commands from r (normally os.Stdin).
type Console struct {
	r       io.Reader
	actions Actions
}

// NewConsole creates a console over r.
func NewConsole(r io.Reader, actions Actions) *Console {
	return &Console{r: r, actions: actions}
}

// Run reads lines until EOF or ctx cancellation. Run it in its own
// goroutine; stdin reads cannot be interrupted, so ctx is only checked
// between lines.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		c.handle(strings.TrimSpace(scanner.Text()))
	}
}

func (c *Console) handle(line string) {
	if line == "" {
		return
	}
	fields := strings.Fields(line)

	switch fields[0] {
	case "help", "?":
		fmt.Println("commands: wake | sing | spin | friends | back | say <phrase> | touch <head|back> | trim <left> <right> | trim-save | status | quit")

	case "wake":
		if c.actions.Wake != nil {
			c.actions.Wake()
		}

	case "sing", "spin", "friends", "back":
		if c.actions.Command != nil {
			c.actions.Command(fields[0])
		}

	case "say":
		if c.actions.Say != nil && len(fields) > 1 {
			c.actions.Say(strings.Join(fields[1:], " "))
		}

	case "touch":
		if c.actions.Touch != nil && len(fields) > 1 {
			c.actions.Touch(fields[1])
		}

	case "trim":
		if c.actions.SetTrim == nil || len(fields) != 3 {
			fmt.Println("usage: trim <left> <right>")
			return
		}
		left, errL := strconv.ParseFloat(fields[1], 64)
		right, errR := strconv.ParseFloat(fields[2], 64)
		if errL != nil || errR != nil {
			fmt.Println("usage: trim <left> <right>")
			return
		}
		c.actions.SetTrim(left, right)

	case "trim-save":
		if c.actions.SaveTrim != nil {
			if err := c.actions.SaveTrim(); err != nil {
				log.Warn("trim save failed", "error", err)
			}
		}

	case "status":
		if c.actions.Status != nil {
			fmt.Println(c.actions.Status())
		}

	case "quit", "exit":
		if c.actions.Quit != nil {
			c.actions.Quit()
		}

	default:
		fmt.Printf("unknown command %q (try help)\n", fields[0])
	}
}
