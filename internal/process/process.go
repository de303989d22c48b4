package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Host starts commands under a fixed binary prefix (e.g. "ping" or "sudo ping").
type Host struct {
	prefix []string
	logger *slog.Logger

	mu              sync.Mutex
	gracefulTimeout time.Duration // wait for a normal exit before SIGINT
	killTimeout     time.Duration // wait after SIGINT before SIGKILL
}

// NewHost creates a host for the given binary command string.
func NewHost(binary string, logger *slog.Logger) (*Host, error) {
	prefix, err := ParseCommand(binary)
	if err != nil {
		return nil, fmt.Errorf("parse binary %q: %w", binary, err)
	}
	if len(prefix) == 0 {
		return nil, fmt.Errorf("empty binary")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		prefix:          prefix,
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}, nil
}

// SetTimeouts overrides the reaping timeouts. Processes already running
// keep the timeouts they were started with.
func (h *Host) SetTimeouts(graceful, kill time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gracefulTimeout = graceful
	h.killTimeout = kill
}

// Timeouts returns the reaping timeouts new processes get.
func (h *Host) Timeouts() (graceful, kill time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gracefulTimeout, h.killTimeout
}

// Command returns the full argv for args.
func (h *Host) Command(args []string) []string {
	argv := make([]string, 0, len(h.prefix)+len(args))
	argv = append(argv, h.prefix...)
	return append(argv, args...)
}

// Spawn starts args under the host prefix and returns its merged output stream.
func (h *Host) Spawn(args []string) (io.ReadCloser, error) {
	return h.Start(args)
}

// Start starts args under the host prefix.
func (h *Host) Start(args []string) (*Process, error) {
	argv := h.Command(args)

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		h.logger.Error("Failed to start process", "error", err, "command", strings.Join(argv, " "))
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}
	// The child holds its own copy of the write end.
	_ = w.Close()

	graceful, kill := h.Timeouts()
	p := &Process{
		cmd:             cmd,
		output:          r,
		logger:          h.logger.With("pid", cmd.Process.Pid),
		done:            make(chan struct{}),
		gracefulTimeout: graceful,
		killTimeout:     kill,
	}
	go func() {
		p.exitCode = exitCodeFromError(cmd.Wait())
		close(p.done)
	}()

	p.logger.Info("Process started", "command", strings.Join(argv, " "))
	return p, nil
}

// Process is a running command with a readable merged output stream.
type Process struct {
	cmd             *exec.Cmd
	output          *os.File
	logger          *slog.Logger
	done            chan struct{}
	exitCode        int
	closeOnce       sync.Once
	gracefulTimeout time.Duration
	killTimeout     time.Duration
}

// Read reads from the merged stdout/stderr stream.
func (p *Process) Read(b []byte) (int, error) {
	return p.output.Read(b)
}

// Close closes the output stream and reaps the child in the background.
func (p *Process) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.output.Close()
		go p.reap()
	})
	return err
}

// Abort closes the output stream and kills the child without a grace period.
// Used for starts that are abandoned before any output was consumed.
func (p *Process) Abort() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.output.Close()
		p.logger.Warn("Aborting process")
		if killErr := p.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "error", killErr)
		}
		go func() {
			<-p.done
			p.logger.Debug("Process exited", "exit_code", p.exitCode)
		}()
	})
	return err
}

// reap waits for the child, escalating to SIGINT and then SIGKILL.
func (p *Process) reap() {
	select {
	case <-p.done:
		p.logger.Debug("Process exited", "exit_code", p.exitCode)
		return
	case <-time.After(p.gracefulTimeout):
	}

	p.logger.Info("Sending SIGINT to process")
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}

	select {
	case <-p.done:
		p.logger.Debug("Process exited", "exit_code", p.exitCode)
		return
	case <-time.After(p.killTimeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", p.killTimeout)
	if err := p.cmd.Process.Kill(); err != nil {
		// "os: process already finished" is OK - process exited between timeout and kill
		if !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "error", err)
		}
	}

	select {
	case <-p.done:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal")
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, 137 for SIGKILL, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
