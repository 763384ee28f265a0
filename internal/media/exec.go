package media

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// FilePlaceholder is replaced by the asset path in command arguments.
const FilePlaceholder = "{file}"

const stopTimeout = 5 * time.Second

// CommandRecorder records by running an external capture program such as
// ffmpeg or arecord. Pause and resume suspend the process.
type CommandRecorder struct {
	Argv []string
}

// Start launches the capture program writing to path.
func (c CommandRecorder) Start(path string) (Recording, error) {
	p, err := startCommand(c.Argv, path)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CommandPlayer plays by running an external program such as ffplay or
// aplay. Duration is unknown and reported as zero.
type CommandPlayer struct {
	Argv []string
}

// Play launches the playback program reading path.
func (c CommandPlayer) Play(path string) (Playback, error) {
	p, err := startCommand(c.Argv, path)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// process wraps a running external program.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	mu      sync.Mutex
	started time.Time
	played  time.Duration
	paused  bool
}

func startCommand(argv []string, path string) (*process, error) {
	if len(argv) == 0 {
		return nil, errors.New("media: empty command")
	}
	args := make([]string, len(argv))
	for i, a := range argv {
		args[i] = strings.ReplaceAll(a, FilePlaceholder, path)
	}

	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("media: start %s: %w", args[0], err)
	}
	p := &process{cmd: cmd, done: make(chan struct{}), started: time.Now()}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *process) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return nil
	}
	if err := suspend(p.cmd.Process); err != nil {
		return err
	}
	p.played += time.Since(p.started)
	p.paused = true
	return nil
}

func (p *process) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return nil
	}
	if err := resume(p.cmd.Process); err != nil {
		return err
	}
	p.started = time.Now()
	p.paused = false
	return nil
}

// Stop interrupts the program so it can finalize its output, and kills it
// if it does not exit in time.
func (p *process) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	p.mu.Lock()
	if p.paused {
		_ = resume(p.cmd.Process)
		p.paused = false
	}
	p.mu.Unlock()

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = p.cmd.Process.Kill()
	}
	select {
	case <-p.done:
	case <-time.After(stopTimeout):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	return nil
}

func (p *process) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return p.played
	}
	return p.played + time.Since(p.started)
}

func (p *process) Duration() time.Duration { return 0 }

func (p *process) Done() <-chan struct{} { return p.done }
