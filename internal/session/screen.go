package session

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/example/mcdeploy/internal/logging"
	"github.com/go-logr/logr"
)

// Screen controls sessions through GNU screen.
type Screen struct {
	Log    logr.Logger
	Runner Runner
	// Sleep waits for d unless ctx ends first.
	Sleep func(ctx context.Context, d time.Duration)
}

// NewScreen returns a Screen controller using runner (os/exec when nil).
func NewScreen(log logr.Logger, runner Runner) *Screen {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Screen{Log: log, Runner: runner, Sleep: sleepContext}
}

// IsRunning lists screen sessions and looks for name in the output. Any
// failure to query screen is logged and reported as not running.
func (s *Screen) IsRunning(ctx context.Context, name string) bool {
	out, err := s.Runner.Run(ctx, "", "screen", "-list")
	if err != nil {
		// screen -list exits non-zero when there are no sessions; the output still answers the question.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || len(out) == 0 {
			logging.Warn(s.Log, "unable to query screen sessions; assuming not running", "session", name, "error", err.Error())
			return false
		}
	}
	return strings.Contains(string(out), name)
}

// Start launches a new detached session. It does not look for an existing
// session with the same name first.
func (s *Screen) Start(ctx context.Context, name string, launch LaunchSpec) error {
	if len(launch.Argv) == 0 {
		return errEmptyLaunch
	}
	args := append([]string{"-dmS", name}, launch.Argv...)
	out, err := s.Runner.Run(ctx, launch.Dir, "screen", args...)
	if err != nil {
		return fmt.Errorf("start session %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	s.Log.Info("session started", "session", name, "dir", launch.Dir, "command", launch.String())
	return nil
}

// Stop sends stopText to the session's first window and then waits timeout
// for the server to shut down. Termination is not verified.
func (s *Screen) Stop(ctx context.Context, name, stopText string, timeout time.Duration) (StopResult, error) {
	if !s.IsRunning(ctx, name) {
		s.Log.Info("no session found; server already stopped", "session", name)
		return StopAlreadyStopped, nil
	}
	if stopText == "" {
		stopText = DefaultStopText
	}
	out, err := s.Runner.Run(ctx, "", "screen", "-S", name, "-p", "0", "-X", "stuff", stopText)
	if err != nil {
		return StopFailed, fmt.Errorf("send stop to session %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	s.Log.Info("stop sent; waiting for shutdown", "session", name, "grace", timeout.String())
	if timeout > 0 {
		sleep := s.Sleep
		if sleep == nil {
			sleep = sleepContext
		}
		sleep(ctx, timeout)
	}
	return StopSignalSent, nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
