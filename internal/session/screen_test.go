package session

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

type call struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	calls   []call
	respond func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{dir: dir, name: name, args: append([]string(nil), args...)})
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(name, args)
}

func listing(out string, err error) func(string, []string) ([]byte, error) {
	return func(name string, args []string) ([]byte, error) {
		if len(args) > 0 && args[0] == "-list" {
			return []byte(out), err
		}
		return nil, nil
	}
}

func newTestScreen(r Runner) (*Screen, *[]time.Duration) {
	var slept []time.Duration
	s := NewScreen(logr.Discard(), r)
	s.Sleep = func(ctx context.Context, d time.Duration) { slept = append(slept, d) }
	return s, &slept
}

func TestIsRunningMatchesSessionName(t *testing.T) {
	r := &fakeRunner{respond: listing("There is a screen on:\n\t4242.minecraft\t(Detached)\n", nil)}
	s, _ := newTestScreen(r)
	if !s.IsRunning(context.Background(), "minecraft") {
		t.Fatalf("expected session to be running")
	}
	if s.IsRunning(context.Background(), "lobby") {
		t.Fatalf("unexpected match for other session")
	}
}

func TestIsRunningInspectsOutputOnNonZeroExit(t *testing.T) {
	r := &fakeRunner{respond: listing("No Sockets found in /run/screen/S-dev.\n", &exec.ExitError{})}
	s, _ := newTestScreen(r)
	if s.IsRunning(context.Background(), "minecraft") {
		t.Fatalf("expected not running")
	}
}

func TestIsRunningFailsOpen(t *testing.T) {
	r := &fakeRunner{respond: listing("", errors.New("exec: \"screen\": executable file not found"))}
	s, _ := newTestScreen(r)
	if s.IsRunning(context.Background(), "minecraft") {
		t.Fatalf("query failure must report not running")
	}
}

func TestStopWithoutSessionReturnsImmediately(t *testing.T) {
	r := &fakeRunner{respond: listing("No Sockets found.\n", &exec.ExitError{})}
	s, slept := newTestScreen(r)
	res, err := s.Stop(context.Background(), "minecraft", DefaultStopText, DefaultStopTimeout)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if res != StopAlreadyStopped {
		t.Fatalf("result=%v, want already stopped", res)
	}
	if res.String() != "already stopped" {
		t.Fatalf("result string=%q", res.String())
	}
	if len(*slept) != 0 {
		t.Fatalf("stop must not wait when no session exists, slept %v", *slept)
	}
	if len(r.calls) != 1 {
		t.Fatalf("expected only the listing call, got %+v", r.calls)
	}
}

func TestStopSendsTextThenWaits(t *testing.T) {
	r := &fakeRunner{respond: listing("\t4242.minecraft\t(Detached)\n", nil)}
	s, slept := newTestScreen(r)
	res, err := s.Stop(context.Background(), "minecraft", "", 5*time.Second)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if res != StopSignalSent {
		t.Fatalf("result=%v", res)
	}
	want := call{name: "screen", args: []string{"-S", "minecraft", "-p", "0", "-X", "stuff", "stop\r"}}
	if len(r.calls) != 2 || !reflect.DeepEqual(r.calls[1], want) {
		t.Fatalf("calls=%+v", r.calls)
	}
	if !reflect.DeepEqual(*slept, []time.Duration{5 * time.Second}) {
		t.Fatalf("slept=%v", *slept)
	}
}

func TestStopPropagatesSendFailure(t *testing.T) {
	r := &fakeRunner{respond: func(name string, args []string) ([]byte, error) {
		if args[0] == "-list" {
			return []byte("1.minecraft"), nil
		}
		return []byte("No screen session found."), errors.New("exit status 1")
	}}
	s, slept := newTestScreen(r)
	res, err := s.Stop(context.Background(), "minecraft", "stop\r", time.Second)
	if err == nil {
		t.Fatalf("expected error")
	}
	if res != StopFailed {
		t.Fatalf("res=%v, want %v", res, StopFailed)
	}
	if len(*slept) != 0 {
		t.Fatalf("must not wait after a failed send")
	}
}

func TestStartLaunchesDetachedSession(t *testing.T) {
	r := &fakeRunner{}
	s, _ := newTestScreen(r)
	launch := JavaLaunch("/srv/paper", "paper.jar", "2G", "4G")
	if err := s.Start(context.Background(), "minecraft", launch); err != nil {
		t.Fatalf("start: %v", err)
	}
	want := call{
		dir:  "/srv/paper",
		name: "screen",
		args: []string{"-dmS", "minecraft", "java", "-Xmx4G", "-Xms2G", "-jar", "paper.jar", "nogui"},
	}
	if len(r.calls) != 1 || !reflect.DeepEqual(r.calls[0], want) {
		t.Fatalf("calls=%+v", r.calls)
	}
}

func TestStartRejectsEmptyLaunch(t *testing.T) {
	s, _ := newTestScreen(&fakeRunner{})
	if err := s.Start(context.Background(), "minecraft", LaunchSpec{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseLaunchHonoursQuoting(t *testing.T) {
	spec, err := ParseLaunch("/srv", `java -Dname="my server" -jar paper.jar`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"java", "-Dname=my server", "-jar", "paper.jar"}
	if !reflect.DeepEqual(spec.Argv, want) {
		t.Fatalf("argv=%q", spec.Argv)
	}
	if _, err := ParseLaunch("/srv", "   "); err == nil {
		t.Fatalf("expected error for empty command")
	}
}

func TestManualControllerNeverActs(t *testing.T) {
	m := Manual{Log: logr.Discard()}
	if m.IsRunning(context.Background(), "minecraft") {
		t.Fatalf("manual controller cannot observe sessions")
	}
	res, err := m.Stop(context.Background(), "minecraft", DefaultStopText, time.Hour)
	if err != nil || res != StopManual {
		t.Fatalf("stop=%v, %v", res, err)
	}
	if err := m.Start(context.Background(), "minecraft", JavaLaunch("/srv", "paper.jar", "1G", "1G")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := State(context.Background(), m, "minecraft"); got.Running || got.Name != "minecraft" {
		t.Fatalf("state=%+v", got)
	}
	if !strings.Contains(res.String(), "manual") {
		t.Fatalf("string=%q", res.String())
	}
}
