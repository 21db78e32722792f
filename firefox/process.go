package firefox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
	"github.com/liuxd6825/foxshot/log"
)

// DefaultDrainTimeout bounds how long Shutdown waits for the output
// forwarders once the browser is gone. Helper processes may inherit the
// pipes and keep them open.
const DefaultDrainTimeout = 2 * time.Second

// ProcessState is the lifecycle stage of a launched browser.
type ProcessState int32

// Process states.
const (
	ProcessStarting ProcessState = iota
	ProcessRunning
	ProcessExited
	ProcessKilled
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStarting:
		return "starting"
	case ProcessRunning:
		return "running"
	case ProcessExited:
		return "exited"
	case ProcessKilled:
		return "killed"
	default:
		return fmt.Sprintf("ProcessState(%d)", int32(s))
	}
}

// LaunchOptions describe how to start the browser.
type LaunchOptions struct {
	ExecutablePath string
	Profile        *Profile
	// Args are appended after the fixed Marionette arguments.
	Args []string
	// Env is added on top of the current environment, as KEY=value pairs.
	Env          []string
	Logger       *log.Logger
	DrainTimeout time.Duration
}

// Process is a running browser and the goroutines forwarding its output.
type Process struct {
	cmd    *exec.Cmd
	logger *log.Logger

	state   atomic.Int32
	done    chan struct{}
	waitErr error

	stdout, stderr *os.File
	forwarders     errgroup.Group
	drainTimeout   time.Duration
	drainOnce      sync.Once
}

// Args returns the command line used for a profile directory.
func Args(profileDir string, extra ...string) []string {
	args := []string{"--marionette", "--headless", "--no-remote", "--profile", profileDir}
	return append(args, extra...)
}

// Launch starts the browser on opts.Profile. The browser's stdout and stderr
// are logged line by line under the firefox:stdout and firefox:stderr
// categories until it exits.
func Launch(ctx context.Context, opts LaunchOptions) (_ *Process, rerr error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNullLogger()
	}
	if opts.ExecutablePath == "" {
		return nil, errext.WithHint(
			errext.WithExitCodeIfNone(errors.New("no firefox executable found"), exitcodes.BrowserLaunchFailed),
			"install Firefox or point FIREFOX_BIN at its binary",
		)
	}
	if opts.Profile == nil {
		return nil, errors.New("a profile is required to launch firefox")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launching firefox: %w", err)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	// The child holds its own copies of the write ends.
	defer func() {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		if rerr != nil {
			_ = stdoutR.Close()
			_ = stderrR.Close()
		}
	}()

	cmd := exec.Command(opts.ExecutablePath, Args(opts.Profile.Dir(), opts.Args...)...) //nolint:gosec
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	killAfterParent(cmd)

	p := &Process{
		cmd:          cmd,
		logger:       logger,
		done:         make(chan struct{}),
		stdout:       stdoutR,
		stderr:       stderrR,
		drainTimeout: opts.DrainTimeout,
	}
	if p.drainTimeout <= 0 {
		p.drainTimeout = DefaultDrainTimeout
	}
	p.state.Store(int32(ProcessStarting))

	logger.Debugf("firefox", "starting %s %s", opts.ExecutablePath, strings.Join(cmd.Args[1:], " "))
	if err := cmd.Start(); err != nil {
		return nil, errext.WithHint(
			errext.WithExitCodeIfNone(fmt.Errorf("launching firefox %q: %w", opts.ExecutablePath, err),
				exitcodes.BrowserLaunchFailed),
			"check that FIREFOX_BIN points to an executable Firefox binary",
		)
	}
	p.state.Store(int32(ProcessRunning))
	logger.Infof("firefox", "started pid %d with profile %s", cmd.Process.Pid, opts.Profile.Dir())

	p.forwarders.Go(func() error { return p.forward(stdoutR, "firefox:stdout", "FIREFOX STDOUT> ") })
	p.forwarders.Go(func() error { return p.forward(stderrR, "firefox:stderr", "FIREFOX STDERR> ") })
	go p.wait()

	return p, nil
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// State returns the current lifecycle stage.
func (p *Process) State() ProcessState {
	return ProcessState(p.state.Load())
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitErr returns what waiting on the process reported. It's only
// meaningful after Done is closed.
func (p *Process) ExitErr() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.waitErr = err
	p.state.CompareAndSwap(int32(ProcessRunning), int32(ProcessExited))
	close(p.done)

	if err != nil && p.State() != ProcessKilled {
		p.logger.Debugf("firefox", "pid %d exited: %v", p.cmd.Process.Pid, err)
		return
	}
	p.logger.Debugf("firefox", "pid %d exited (%s)", p.cmd.Process.Pid, p.State())
}

// Kill terminates the process right away.
func (p *Process) Kill() error {
	p.state.Store(int32(ProcessKilled))
	if err := p.cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			p.state.Store(int32(ProcessExited))
			return nil
		}
		return fmt.Errorf("killing firefox pid %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

// Shutdown waits up to grace for the process to exit by itself, kills it if
// it doesn't, and then stops the output forwarders. A missed grace period is
// only logged. It's safe to call more than once.
func (p *Process) Shutdown(grace time.Duration) error {
	var kerr error
	if !p.waitExit(grace) {
		p.logger.Warnf("firefox", "%v; killing pid %d",
			errext.NewTimeoutError("waiting for firefox to quit", grace, ""), p.Pid())
		kerr = p.Kill()
		<-p.done
	}

	p.drainOnce.Do(p.drain)
	return kerr
}

func (p *Process) waitExit(grace time.Duration) bool {
	select {
	case <-p.done:
		return true
	default:
	}
	if grace <= 0 {
		return false
	}

	p.logger.Infof("firefox", "waiting up to %s for firefox to quit", grace)
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// drain gives the forwarders a bounded amount of time to reach EOF and then
// closes the read ends so they stop for sure.
func (p *Process) drain() {
	drained := make(chan error, 1)
	go func() { drained <- p.forwarders.Wait() }()

	var err error
	timer := time.NewTimer(p.drainTimeout)
	defer timer.Stop()
	select {
	case err = <-drained:
		_ = p.stdout.Close()
		_ = p.stderr.Close()
	case <-timer.C:
		p.logger.Debugf("firefox", "output still open after %s, closing it", p.drainTimeout)
		_ = p.stdout.Close()
		_ = p.stderr.Close()
		err = <-drained
	}
	if err != nil {
		p.logger.Warnf("firefox", "forwarding browser output: %v", err)
	}
}

func (p *Process) forward(r io.Reader, category, prefix string) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			p.logger.Infof(category, "%s%s", prefix, line)
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			return nil
		default:
			return fmt.Errorf("%s: %w", category, err)
		}
	}
}
