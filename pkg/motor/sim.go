package motor

import (
	"sync"

	"github.com/walle-robot/go-walle/internal/log"
)

// SimDriver is a no-hardware Driver used for bench runs and tests.
// It records the last command issued.
type SimDriver struct {
	mu        sync.Mutex
	LastCmd   string
	LastSpeed int
	Commands  []string
}

// NewSimDriver returns a simulated drive.
func NewSimDriver() *SimDriver {
	return &SimDriver{}
}

func (s *SimDriver) record(cmd string, speed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastCmd = cmd
	s.LastSpeed = speed
	s.Commands = append(s.Commands, cmd)
	log.Debug("sim motor", "cmd", cmd, "speed", speed)
}

func (s *SimDriver) Forward(speed int)   { s.record("forward", speed) }
func (s *SimDriver) Backward(speed int)  { s.record("backward", speed) }
func (s *SimDriver) TurnLeft(speed int)  { s.record("left", speed) }
func (s *SimDriver) TurnRight(speed int) { s.record("right", speed) }
func (s *SimDriver) Stop()               { s.record("stop", 0) }
func (s *SimDriver) Enabled() bool       { return true }

// History returns a copy of all commands issued so far.
func (s *SimDriver) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Commands))
	copy(out, s.Commands)
	return out
}
