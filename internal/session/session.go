// Package session supervises the long-running server inside a detached,
// named terminal-multiplexer session.
package session

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/mattn/go-shellwords"
)

// Defaults used when the project config leaves the corresponding value empty.
const (
	DefaultName        = "minecraft"
	DefaultStopText    = "stop\r"
	DefaultStopTimeout = 5 * time.Second
)

// Handle is the observed state of a named session. It is never persisted.
type Handle struct {
	Name    string
	Running bool
}

// StopResult tells the caller what Stop did.
type StopResult int

const (
	// StopAlreadyStopped means no session was found and nothing was sent.
	StopAlreadyStopped StopResult = iota
	// StopSignalSent means the stop text was delivered and the grace period elapsed.
	StopSignalSent
	// StopManual means the platform cannot control sessions; the operator was told what to do.
	StopManual
	// StopFailed means a session was found but the stop text could not be delivered.
	StopFailed
)

func (r StopResult) String() string {
	switch r {
	case StopAlreadyStopped:
		return "already stopped"
	case StopSignalSent:
		return "stop sent"
	case StopManual:
		return "manual stop required"
	case StopFailed:
		return "stop failed"
	default:
		return "unknown"
	}
}

// LaunchSpec is the command run inside a new session.
type LaunchSpec struct {
	Dir  string
	Argv []string
}

// String renders the launch command for humans.
func (l LaunchSpec) String() string {
	return strings.Join(l.Argv, " ")
}

// Controller inspects, starts and stops named sessions.
type Controller interface {
	IsRunning(ctx context.Context, name string) bool
	Start(ctx context.Context, name string, launch LaunchSpec) error
	Stop(ctx context.Context, name, stopText string, timeout time.Duration) (StopResult, error)
}

// State returns the handle for name as observed through c.
func State(ctx context.Context, c Controller, name string) Handle {
	return Handle{Name: name, Running: c.IsRunning(ctx, name)}
}

// Detect returns a screen-backed controller when screen is available on this
// platform, otherwise a controller that asks the operator to act manually.
func Detect(log logr.Logger, runner Runner) Controller {
	if runtime.GOOS == "windows" {
		return Manual{Log: log}
	}
	if _, err := exec.LookPath("screen"); err != nil {
		log.V(1).Info("screen not found on PATH; session control is manual")
		return Manual{Log: log}
	}
	return NewScreen(log, runner)
}

// JavaLaunch builds the default server command line.
func JavaLaunch(dir, jar, memoryMin, memoryMax string) LaunchSpec {
	return LaunchSpec{
		Dir:  dir,
		Argv: []string{"java", "-Xmx" + memoryMax, "-Xms" + memoryMin, "-jar", jar, "nogui"},
	}
}

// ParseLaunch splits a configured launch command using shell quoting rules.
func ParseLaunch(dir, raw string) (LaunchSpec, error) {
	args, err := shellwords.Parse(raw)
	if err != nil {
		return LaunchSpec{}, err
	}
	if len(args) == 0 {
		return LaunchSpec{}, errEmptyLaunch
	}
	return LaunchSpec{Dir: dir, Argv: args}, nil
}
