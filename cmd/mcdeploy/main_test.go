package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/mitchellh/go-homedir"

	"github.com/example/mcdeploy/internal/deploy"
	"github.com/example/mcdeploy/internal/release"
	"github.com/example/mcdeploy/internal/session"
	"github.com/example/mcdeploy/internal/transfer"
)

const testJar = "mc-remote-1.21.4-1.0.5.jar"

type testProject struct {
	dir     string
	plugins string
}

func newTestProject(t *testing.T, extraConfig string) testProject {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	dir := filepath.Join(base, "project")
	plugins := filepath.Join(base, "server", "plugins")
	for _, d := range []string{home, filepath.Join(dir, "build", "libs"), plugins} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	flagsPath := filepath.Join(base, "flags.yaml")
	writeTestFile(t, flagsPath, "{}\n")
	t.Setenv("MCDEPLOY_CONFIG", flagsPath)

	cfg := "server:\n  dir: " + filepath.Join(base, "server") + "\n  stopTimeout: 0s\n" + extraConfig
	writeTestFile(t, filepath.Join(dir, ".mcdeploy.yaml"), cfg)
	writeTestFile(t, filepath.Join(dir, "build", "libs", testJar), "new build")
	return testProject{dir: dir, plugins: plugins}
}

func writeTestFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, p testProject, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--project-dir", p.dir}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

type fakeController struct {
	running bool
	calls   []string
	onStart func()
}

func (c *fakeController) IsRunning(ctx context.Context, name string) bool {
	return c.running
}

func (c *fakeController) Start(ctx context.Context, name string, launch session.LaunchSpec) error {
	c.calls = append(c.calls, "start "+name+" "+launch.String())
	if c.onStart != nil {
		c.onStart()
	}
	c.running = true
	return nil
}

func (c *fakeController) Stop(ctx context.Context, name, stopText string, timeout time.Duration) (session.StopResult, error) {
	c.calls = append(c.calls, "stop "+name)
	if !c.running {
		return session.StopAlreadyStopped, nil
	}
	c.running = false
	return session.StopSignalSent, nil
}

func useController(t *testing.T, c session.Controller) {
	t.Helper()
	prev := newSessionController
	newSessionController = func(logr.Logger) session.Controller { return c }
	t.Cleanup(func() { newSessionController = prev })
}

type memoryDialer struct {
	files   map[string]map[string]string
	refused map[string]bool
}

func (d *memoryDialer) Dial(ctx context.Context, ep transfer.Endpoint) (transfer.Session, error) {
	if d.refused[ep.Addr] {
		return nil, errors.New("connection refused")
	}
	if d.files[ep.Addr] == nil {
		d.files[ep.Addr] = map[string]string{}
	}
	return &memorySession{files: d.files[ep.Addr]}, nil
}

type memorySession struct {
	files map[string]string
}

func (s *memorySession) ChangeDir(string) error { return nil }

func (s *memorySession) List() ([]string, error) {
	var names []string
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memorySession) Remove(name string) error {
	delete(s.files, name)
	return nil
}

func (s *memorySession) Upload(name string, r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.files[name] = string(body)
	return nil
}

func (s *memorySession) Close() error { return nil }

func useDialer(t *testing.T, d transfer.Dialer) {
	t.Helper()
	prev := newDialer
	newDialer = func() transfer.Dialer { return d }
	t.Cleanup(func() { newDialer = prev })
}

type memoryRepo struct {
	tags   map[string]bool
	pushed []string
}

func (r *memoryRepo) TagExists(ctx context.Context, name string) (bool, error) {
	return r.tags[name], nil
}

func (r *memoryRepo) CreateTag(ctx context.Context, name string) error {
	r.tags[name] = true
	return nil
}

func (r *memoryRepo) PushTag(ctx context.Context, remote, name string) error {
	r.pushed = append(r.pushed, remote+" "+name)
	return nil
}

func useRepo(t *testing.T, r release.Repo) {
	t.Helper()
	prev := newReleaseRepo
	newReleaseRepo = func(string) release.Repo { return r }
	t.Cleanup(func() { newReleaseRepo = prev })
}

func TestVersionCommandPrintsVersion(t *testing.T) {
	p := newTestProject(t, "")
	out, _, err := runCLI(t, p, "version")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out, "mcdeploy ") {
		t.Fatalf("expected version header, got: %q", out)
	}
}

func TestLiveStagesBetweenStopAndStart(t *testing.T) {
	p := newTestProject(t, "")
	writeTestFile(t, filepath.Join(p.plugins, "McRemote-old.jar"), "old")
	writeTestFile(t, filepath.Join(p.plugins, "mc-remote-1.21.4-1.0.4.jar"), "old")
	writeTestFile(t, filepath.Join(p.plugins, "other.jar"), "keep")

	ctrl := &fakeController{running: true}
	ctrl.onStart = func() {
		if _, err := os.Stat(filepath.Join(p.plugins, testJar)); err != nil {
			t.Errorf("artifact not staged before start: %v", err)
		}
	}
	useController(t, ctrl)

	if _, stderr, err := runCLI(t, p, "live", "--skip-build"); err != nil {
		t.Fatalf("live: %v (stderr=%s)", err, stderr)
	}
	if len(ctrl.calls) != 2 || ctrl.calls[0] != "stop minecraft" || !strings.HasPrefix(ctrl.calls[1], "start minecraft java -Xmx8G") {
		t.Fatalf("calls=%v", ctrl.calls)
	}
	entries, err := os.ReadDir(p.plugins)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if strings.Join(names, ",") != "mc-remote-1.21.4-1.0.5.jar,other.jar" {
		t.Fatalf("plugins=%v", names)
	}
}

func TestLiveMissingArtifactNeverTouchesServer(t *testing.T) {
	p := newTestProject(t, "")
	if err := os.Remove(filepath.Join(p.dir, "build", "libs", testJar)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ctrl := &fakeController{running: true}
	useController(t, ctrl)

	_, _, err := runCLI(t, p, "live", "--skip-build")
	if err == nil || !strings.HasPrefix(err.Error(), "build: ") {
		t.Fatalf("err=%v", err)
	}
	if len(ctrl.calls) != 0 {
		t.Fatalf("server was touched: %v", ctrl.calls)
	}
}

func TestStopServerWhenNotRunning(t *testing.T) {
	p := newTestProject(t, "")
	ctrl := &fakeController{}
	useController(t, ctrl)
	out, _, err := runCLI(t, p, "stop-server")
	if err != nil {
		t.Fatalf("stop-server: %v", err)
	}
	if !strings.Contains(out, "no running session") {
		t.Fatalf("out=%q", out)
	}
}

func TestDeployReportsEachTarget(t *testing.T) {
	p := newTestProject(t, "")
	writeTestFile(t, filepath.Join(p.dir, "ftp_settings.mk"), strings.Join([]string{
		"ftp1.FTP_USER := a",
		"ftp1.FTP_PASS := b",
		"ftp1.FTP_HOST := h:21",
		"ftp1.FTP_PATH := /x/",
		"ftp2.FTP_USER := c",
		"",
	}, "\n"))
	dialer := &memoryDialer{files: map[string]map[string]string{
		"h:21": {"mc-remote-1.21.4-1.0.4.jar": "old", "world.zip": "keep"},
	}}
	useDialer(t, dialer)

	out, stderr, err := runCLI(t, p, "deploy", "--skip-build")
	if err != nil {
		t.Fatalf("deploy: %v (stderr=%s)", err, stderr)
	}
	if !strings.Contains(out, "ftp1  succeeded") || !strings.Contains(out, "ftp2  skipped") {
		t.Fatalf("out=%q", out)
	}
	remote := dialer.files["h:21"]
	if len(remote) != 2 || remote[testJar] != "new build" || remote["world.zip"] != "keep" {
		t.Fatalf("remote=%v", remote)
	}

	out, _, err = runCLI(t, p, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "ftp1") || !strings.Contains(out, "ftp2") || !strings.Contains(out, "1.21.4-1.0.5") {
		t.Fatalf("history=%q", out)
	}
}

func TestDeployFailureIsReported(t *testing.T) {
	p := newTestProject(t, "")
	writeTestFile(t, filepath.Join(p.dir, "ftp_settings.mk"), strings.Join([]string{
		"down.FTP_USER := a",
		"down.FTP_PASS := b",
		"down.FTP_HOST := down:21",
		"down.FTP_PATH := /x/",
		"up.FTP_USER := a",
		"up.FTP_PASS := b",
		"up.FTP_HOST := up:21",
		"up.FTP_PATH := /x/",
		"",
	}, "\n"))
	dialer := &memoryDialer{files: map[string]map[string]string{}, refused: map[string]bool{"down:21": true}}
	useDialer(t, dialer)

	_, _, err := runCLI(t, p, "deploy", "--skip-build", "--no-history")
	if !errors.Is(err, deploy.ErrTargetsFailed) {
		t.Fatalf("err=%v, want ErrTargetsFailed", err)
	}
	if dialer.files["up:21"][testJar] != "new build" {
		t.Fatalf("later target was not attempted: %v", dialer.files)
	}
	if _, err := os.Stat(filepath.Join(p.dir, ".mcdeploy", "history.sqlite")); !os.IsNotExist(err) {
		t.Fatalf("history written despite --no-history: %v", err)
	}
	if msg := errorMessage(err); !strings.Contains(msg, "Hint:") {
		t.Fatalf("message=%q", msg)
	}
}

func TestTriggerTagsAndPushes(t *testing.T) {
	p := newTestProject(t, "release:\n  remote: upstream\n")
	repo := &memoryRepo{tags: map[string]bool{}}
	useRepo(t, repo)
	if _, _, err := runCLI(t, p, "trigger", "--plugin-version", "1.0.6"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !repo.tags["v1.21.4-1.0.6"] {
		t.Fatalf("tags=%v", repo.tags)
	}
	if len(repo.pushed) != 1 || repo.pushed[0] != "upstream v1.21.4-1.0.6" {
		t.Fatalf("pushed=%v", repo.pushed)
	}
}

func TestTriggerRefusesExistingTag(t *testing.T) {
	p := newTestProject(t, "")
	repo := &memoryRepo{tags: map[string]bool{"v1.21.4-1.0.5": true}}
	useRepo(t, repo)
	_, _, err := runCLI(t, p, "trigger")
	if !errors.Is(err, release.ErrTagExists) {
		t.Fatalf("err=%v, want ErrTagExists", err)
	}
	if len(repo.pushed) != 0 {
		t.Fatalf("push attempted: %v", repo.pushed)
	}
	if msg := errorMessage(err); !strings.Contains(msg, "pluginVersion") {
		t.Fatalf("message=%q", msg)
	}
}

func TestShowVersionUsesOverrides(t *testing.T) {
	p := newTestProject(t, "")
	out, _, err := runCLI(t, p, "show-version", "--mc-version", "1.21.5")
	if err != nil {
		t.Fatalf("show-version: %v", err)
	}
	for _, want := range []string{
		"MC Version: 1.21.5",
		"Plugin Version: 1.0.5",
		"Artifact: mc-remote-1.21.5-1.0.5.jar",
		"Release Tag: v1.21.5-1.0.5",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestTargetsListsCompleteness(t *testing.T) {
	p := newTestProject(t, "")
	writeTestFile(t, filepath.Join(p.dir, "ftp_settings.mk"), "ftp1.FTP_USER := a\nftp1.FTP_PASS := b\nftp1.FTP_HOST := h\nftp1.FTP_PATH := /x/\nftp2.FTP_HOST := other\n")
	out, _, err := runCLI(t, p, "targets")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if !strings.Contains(out, "complete") || !strings.Contains(out, "incomplete (FTP_USER, FTP_PASS, FTP_PATH)") {
		t.Fatalf("out=%q", out)
	}
}

func TestTargetDeployCommandsAreRegistered(t *testing.T) {
	root := newRootCommand()
	added := addTargetDeployCommands(root, &rootOptions{}, []string{"ftp1", "ftp1", "bad name", ""})
	if len(added) != 1 || added[0].Name() != "deploy-ftp1" {
		t.Fatalf("added=%v", added)
	}
	if cmd, _, err := root.Find([]string{"deploy-ftp1"}); err != nil || cmd.Name() != "deploy-ftp1" {
		t.Fatalf("find: cmd=%v err=%v", cmd, err)
	}
}

func TestRootShowsHelpWithoutArgs(t *testing.T) {
	p := newTestProject(t, "")
	out, _, err := runCLI(t, p)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Usage:") || !strings.Contains(out, "reload-plugin") {
		t.Fatalf("expected help output, got: %q", out)
	}
}

func TestRunServerWarnsWhenSessionExists(t *testing.T) {
	p := newTestProject(t, "")
	ctrl := &fakeController{running: true}
	useController(t, ctrl)
	out, _, err := runCLI(t, p, "run-server")
	if err != nil {
		t.Fatalf("run-server: %v", err)
	}
	if !strings.Contains(out, "already running") || !strings.Contains(out, "running  java") {
		t.Fatalf("out=%q", out)
	}
	if len(ctrl.calls) != 1 || !strings.HasPrefix(ctrl.calls[0], "start minecraft") {
		t.Fatalf("calls=%v", ctrl.calls)
	}
}

func TestRunServerManualControlSaysManual(t *testing.T) {
	p := newTestProject(t, "")
	useController(t, session.Manual{Log: logr.Discard()})
	out, _, err := runCLI(t, p, "run-server")
	if err != nil {
		t.Fatalf("run-server: %v", err)
	}
	if !strings.Contains(out, "minecraft  manual  start it yourself: java") {
		t.Fatalf("out=%q", out)
	}
	if strings.Contains(out, "running") {
		t.Fatalf("manual start reported as running: %q", out)
	}
}

func TestDeployContinuesWhenHistoryUnavailable(t *testing.T) {
	p := newTestProject(t, "deploy:\n  historyFile: blocker/history.sqlite\n")
	writeTestFile(t, filepath.Join(p.dir, "blocker"), "not a directory")
	writeTestFile(t, filepath.Join(p.dir, "ftp_settings.mk"), "ftp1.FTP_USER := a\nftp1.FTP_PASS := b\nftp1.FTP_HOST := h:21\nftp1.FTP_PATH := /x/\n")
	dialer := &memoryDialer{files: map[string]map[string]string{}}
	useDialer(t, dialer)

	out, stderr, err := runCLI(t, p, "deploy", "--skip-build")
	if err != nil {
		t.Fatalf("deploy: %v (stderr=%s)", err, stderr)
	}
	if !strings.Contains(out, "ftp1  succeeded") {
		t.Fatalf("out=%q", out)
	}
	if dialer.files["h:21"][testJar] != "new build" {
		t.Fatalf("remote=%v", dialer.files)
	}
	if !strings.Contains(stderr, "deploy history unavailable") {
		t.Fatalf("stderr=%q", stderr)
	}
}

func TestTargetsShowsCredentialSource(t *testing.T) {
	p := newTestProject(t, "")
	writeTestFile(t, filepath.Join(p.dir, "ftp_settings.mk"), strings.Join([]string{
		"vaulted.FTP_USER := deploy",
		"vaulted.FTP_PASS := secret://vault/mc/ftp#password",
		"plain.FTP_PASS := hunter2",
		"bare.FTP_HOST := h",
		"",
	}, "\n"))
	out, _, err := runCLI(t, p, "targets")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	rows := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			rows[fields[0]] = fields[len(fields)-1]
		}
	}
	if rows["TARGET"] != "CREDENTIALS" || rows["vaulted"] != "secret" || rows["plain"] != "inline" || rows["bare"] != "-" {
		t.Fatalf("out=%q", out)
	}
}
