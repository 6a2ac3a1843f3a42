package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// LaunchSpec is what a Launcher needs to start a process.
type LaunchSpec struct {
	Argv []string
	Dir  string
	Env  []string // appended to the inherited environment
}

// Launcher starts processes.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

// Process is a started child process.
type Process interface {
	// Stdout and Stderr are the read ends of the child's output pipes.
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until the child exits and returns its exit status. It may
	// be called more than once and always returns the same values. Wait
	// must only be called once both streams have been fully read, or after
	// Release.
	Wait() (int, error)
	// Kill terminates the child. It is idempotent and safe for concurrent use.
	Kill() error
	// Release abandons the output pipes and reaps the child in the
	// background. It is idempotent.
	Release()
}

// ExecLauncher starts processes with os/exec.
type ExecLauncher struct{}

// Launch starts argv with its stdout and stderr connected to pipes.
func (ExecLauncher) Launch(_ context.Context, spec LaunchSpec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("executing %s: %w", spec.Argv[0], err)
	}

	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	waitOnce sync.Once
	code     int
	waitErr  error

	killOnce sync.Once
	killErr  error

	releaseOnce sync.Once
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() (int, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		if err == nil {
			return
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.code = exitStatus(exitErr)
			return
		}
		p.waitErr = fmt.Errorf("waiting for %s: %w", p.cmd.Path, err)
	})
	return p.code, p.waitErr
}

func (p *execProcess) Kill() error {
	p.killOnce.Do(func() {
		p.killErr = killProcess(p.cmd)
	})
	return p.killErr
}

func (p *execProcess) Release() {
	p.releaseOnce.Do(func() {
		_ = p.stdout.Close()
		_ = p.stderr.Close()
		go func() { _, _ = p.Wait() }()
	})
}
