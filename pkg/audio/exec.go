package audio

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/walle-robot/go-walle/internal/log"
)

// ExecPlayer plays audio by shelling out to aplay, the standard ALSA
// playback tool present on the robot's image.
type ExecPlayer struct {
	gate
	cfg Config

	mu   sync.Mutex
	cmds map[*exec.Cmd]struct{}
}

// NewExecPlayer creates an aplay-backed player. Returns an error when
// aplay is not on PATH so callers can fall back to the mock.
func NewExecPlayer(cfg Config) (*ExecPlayer, error) {
	if _, err := exec.LookPath("aplay"); err != nil {
		return nil, fmt.Errorf("aplay not available: %w", err)
	}
	p := &ExecPlayer{cfg: cfg, cmds: make(map[*exec.Cmd]struct{})}
	p.minGap = cfg.MinInterval
	return p, nil
}

// PlaySound plays a named effect from the sound directory.
func (p *ExecPlayer) PlaySound(name string, force bool) bool {
	if !p.allow(force) {
		return false
	}
	path := filepath.Join(p.cfg.SoundDir, name+".wav")
	if _, err := os.Stat(path); err != nil {
		log.Warn("sound file missing", "name", name, "path", path)
		return false
	}
	go func() {
		if err := p.play(path); err != nil {
			log.Warn("sound playback failed", "name", name, "error", err)
		}
	}()
	return true
}

// PlayFile plays an arbitrary audio file. Non-blocking calls mark music
// as active for the file's estimated length so effects stay quiet.
func (p *ExecPlayer) PlayFile(path string, blocking bool) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file: %w", err)
	}
	if blocking {
		return p.play(path)
	}
	// No cheap way to know the length up front; assume a song-scale
	// duration and clear the mark when playback actually ends.
	p.markMusic(5 * time.Minute)
	go func() {
		defer p.clearMusic()
		if err := p.play(path); err != nil {
			log.Warn("audio playback failed", "path", path, "error", err)
		}
	}()
	return nil
}

func (p *ExecPlayer) play(path string) error {
	cmd := exec.Command("aplay", "-q", path)
	p.mu.Lock()
	p.cmds[cmd] = struct{}{}
	p.mu.Unlock()

	err := cmd.Run()

	p.mu.Lock()
	delete(p.cmds, cmd)
	p.mu.Unlock()
	return err
}

// MusicPlaying reports whether long audio is active.
func (p *ExecPlayer) MusicPlaying() bool { return p.gate.musicPlaying() }

// StopAll kills every in-flight aplay process.
func (p *ExecPlayer) StopAll() {
	p.clearMusic()
	p.mu.Lock()
	defer p.mu.Unlock()
	for cmd := range p.cmds {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
}
