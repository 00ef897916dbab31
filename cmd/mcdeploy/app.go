// app.go resolves the project, its config and the collaborators each command needs.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/example/mcdeploy/internal/appconfig"
	"github.com/example/mcdeploy/internal/artifact"
	"github.com/example/mcdeploy/internal/builder"
	"github.com/example/mcdeploy/internal/gitinfo"
	"github.com/example/mcdeploy/internal/logging"
	"github.com/example/mcdeploy/internal/release"
	"github.com/example/mcdeploy/internal/session"
	"github.com/example/mcdeploy/internal/settings"
	"github.com/example/mcdeploy/internal/transfer"
	"github.com/example/mcdeploy/internal/ui"
)

// Collaborators that touch the OS or the network. Tests replace them.
var (
	newSessionController = func(log logr.Logger) session.Controller {
		return session.Detect(log, session.ExecRunner{})
	}
	newDialer = func() transfer.Dialer {
		return transfer.NativeDialer{}
	}
	newReleaseRepo = func(dir string) release.Repo {
		return gitinfo.Git{Dir: dir}
	}
)

type app struct {
	root string
	cfg  appconfig.Config
	log  logr.Logger
	out  *ui.Printer
	cmd  *cobra.Command
}

func loadApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	log, err := logging.New(opts.logLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	root, err := projectRoot(opts.projectDir)
	if err != nil {
		return nil, err
	}
	repoPath := appconfig.DefaultRepoPath(root)
	if strings.TrimSpace(opts.configPath) != "" {
		repoPath, err = appconfig.ResolvePath(root, opts.configPath)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(repoPath); err != nil {
			return nil, fmt.Errorf("project config: %w", err)
		}
	}
	cfg, err := appconfig.Load(cmd.Context(), appconfig.DefaultGlobalPath(), repoPath)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(opts.mcVersion); v != "" {
		cfg.Plugin.MCVersion = v
	}
	if v := strings.TrimSpace(opts.pluginVersion); v != "" {
		cfg.Plugin.PluginVersion = v
	}
	if v := strings.TrimSpace(opts.settingsPath); v != "" {
		cfg.Deploy.SettingsFile = v
	}
	log.V(1).Info("project resolved", "root", root, "config", repoPath, "version", cfg.Version().String())
	return &app{
		root: root,
		cfg:  cfg,
		log:  log,
		out:  ui.NewPrinter(cmd.OutOrStdout()),
		cmd:  cmd,
	}, nil
}

func projectRoot(explicit string) (string, error) {
	if dir := strings.TrimSpace(explicit); dir != "" {
		return filepath.Abs(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if root := appconfig.FindRepoRoot(wd); root != "" {
		return root, nil
	}
	return wd, nil
}

func (a *app) path(p string) (string, error) {
	return appconfig.ResolvePath(a.root, p)
}

func (a *app) descriptor() (artifact.Descriptor, error) {
	return a.cfg.Artifact()
}

// build runs the build command unless skip is set, then locates the artifact.
func (a *app) build(ctx context.Context, skip bool) (artifact.Descriptor, error) {
	d, err := a.descriptor()
	if err != nil {
		return artifact.Descriptor{}, err
	}
	if !skip {
		argv, err := builder.ParseCommand(a.cfg.Plugin.BuildCommand)
		if err != nil {
			return artifact.Descriptor{}, err
		}
		b := builder.Builder{
			Argv:   argv,
			Dir:    a.root,
			Stdout: a.cmd.OutOrStdout(),
			Stderr: a.cmd.ErrOrStderr(),
			Log:    a.log,
		}
		if err := b.Build(ctx); err != nil {
			return artifact.Descriptor{}, err
		}
	}
	outDir, err := a.path(a.cfg.Plugin.OutputDir)
	if err != nil {
		return artifact.Descriptor{}, err
	}
	return builder.Locate(outDir, d)
}

func (a *app) targets() (*settings.TargetSet, error) {
	path, err := a.path(a.cfg.Deploy.SettingsFile)
	if err != nil {
		return nil, err
	}
	return settings.Load(path, a.log)
}

func (a *app) trigger() release.Trigger {
	return release.Trigger{
		Repo:   newReleaseRepo(a.root),
		Prefix: a.cfg.Release.TagPrefix,
		Remote: a.cfg.Release.Remote,
		Log:    a.log,
	}
}

// discoverTargetNames reads the settings file before flags are parsed so that
// a deploy-<target> command can be registered per target. Errors are ignored.
func discoverTargetNames() []string {
	root, err := projectRoot(os.Getenv("MCDEPLOY_PROJECT_DIR"))
	if err != nil {
		return nil
	}
	cfg, err := appconfig.Load(context.Background(), appconfig.DefaultGlobalPath(), appconfig.DefaultRepoPath(root))
	if err != nil {
		return nil
	}
	if v := strings.TrimSpace(os.Getenv("MCDEPLOY_SETTINGS")); v != "" {
		cfg.Deploy.SettingsFile = v
	}
	path, err := appconfig.ResolvePath(root, cfg.Deploy.SettingsFile)
	if err != nil {
		return nil
	}
	set, err := settings.Load(path, logr.Discard())
	if err != nil {
		return nil
	}
	return set.Names()
}
