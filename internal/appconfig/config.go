package appconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/example/mcdeploy/internal/artifact"
	"github.com/example/mcdeploy/internal/credentials"
	"github.com/example/mcdeploy/internal/session"
)

// PluginConfig describes the artifact the project builds.
type PluginConfig struct {
	BaseName      string `yaml:"baseName,omitempty"`
	LegacyName    string `yaml:"legacyName,omitempty"`
	MCVersion     string `yaml:"mcVersion,omitempty"`
	PluginVersion string `yaml:"pluginVersion,omitempty"`
	Extension     string `yaml:"extension,omitempty"`
	BuildCommand  string `yaml:"buildCommand,omitempty"`
	OutputDir     string `yaml:"outputDir,omitempty"`
}

// ServerConfig describes the local server and its session.
type ServerConfig struct {
	Dir         string `yaml:"dir,omitempty"`
	Jar         string `yaml:"jar,omitempty"`
	MemoryMin   string `yaml:"memoryMin,omitempty"`
	MemoryMax   string `yaml:"memoryMax,omitempty"`
	Session     string `yaml:"session,omitempty"`
	Launch      string `yaml:"launch,omitempty"`
	PluginsDir  string `yaml:"pluginsDir,omitempty"`
	StopTimeout string `yaml:"stopTimeout,omitempty"`
}

type ReleaseConfig struct {
	TagPrefix string `yaml:"tagPrefix,omitempty"`
	Remote    string `yaml:"remote,omitempty"`
}

type DeployConfig struct {
	SettingsFile string `yaml:"settingsFile,omitempty"`
	HistoryFile  string `yaml:"historyFile,omitempty"`
}

type Config struct {
	Plugin  PluginConfig       `yaml:"plugin,omitempty"`
	Server  ServerConfig       `yaml:"server,omitempty"`
	Release ReleaseConfig      `yaml:"release,omitempty"`
	Deploy  DeployConfig       `yaml:"deploy,omitempty"`
	Secrets credentials.Config `yaml:"secrets,omitempty"`
}

// Defaults mirrors the values the project has always shipped with.
func Defaults() Config {
	serverDir := filepath.Join("~", "MINECRAFT_SERVERS", "PaperMC")
	if home, err := homedir.Dir(); err == nil && strings.TrimSpace(home) != "" {
		serverDir = filepath.Join(home, "MINECRAFT_SERVERS", "PaperMC")
	}
	return Config{
		Plugin: PluginConfig{
			BaseName:      "mc-remote",
			LegacyName:    "McRemote",
			MCVersion:     "1.21.4",
			PluginVersion: "1.0.5",
			Extension:     "jar",
			BuildCommand:  "./gradlew build",
			OutputDir:     filepath.Join("build", "libs"),
		},
		Server: ServerConfig{
			Dir:         serverDir,
			Jar:         "paper.jar",
			MemoryMin:   "8G",
			MemoryMax:   "8G",
			Session:     session.DefaultName,
			StopTimeout: session.DefaultStopTimeout.String(),
		},
		Release: ReleaseConfig{TagPrefix: "v", Remote: "origin"},
		Deploy: DeployConfig{
			SettingsFile: "ftp_settings.mk",
			HistoryFile:  filepath.Join(".mcdeploy", "history.sqlite"),
		},
	}
}

func DefaultGlobalPath() string {
	home, err := homedir.Dir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ""
	}
	return filepath.Join(home, ".mcdeploy", "config.yaml")
}

func DefaultRepoPath(repoRoot string) string {
	repoRoot = strings.TrimSpace(repoRoot)
	if repoRoot == "" {
		return ""
	}
	return filepath.Join(repoRoot, ".mcdeploy.yaml")
}

// Load layers the global file, then the repo file, over Defaults. Missing files are ignored.
func Load(ctx context.Context, globalPath, repoPath string) (Config, error) {
	_ = ctx
	cfg := Defaults()
	if strings.TrimSpace(globalPath) != "" {
		if c, err := loadOne(globalPath); err != nil {
			return Config{}, fmt.Errorf("load global config: %w", err)
		} else {
			cfg = merge(cfg, c)
		}
	}
	if strings.TrimSpace(repoPath) != "" {
		if c, err := loadOne(repoPath); err != nil {
			return Config{}, fmt.Errorf("load repo config: %w", err)
		} else {
			cfg = merge(cfg, c)
		}
	}
	return cfg, nil
}

func loadOne(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return Config{}, nil
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func merge(a, b Config) Config {
	out := a
	out.Plugin = mergePlugin(a.Plugin, b.Plugin)
	out.Server = mergeServer(a.Server, b.Server)
	out.Release.TagPrefix = pick(a.Release.TagPrefix, b.Release.TagPrefix)
	out.Release.Remote = pick(a.Release.Remote, b.Release.Remote)
	out.Deploy.SettingsFile = pick(a.Deploy.SettingsFile, b.Deploy.SettingsFile)
	out.Deploy.HistoryFile = pick(a.Deploy.HistoryFile, b.Deploy.HistoryFile)
	out.Secrets = credentials.Merge(a.Secrets, b.Secrets)
	return out
}

func mergePlugin(a, b PluginConfig) PluginConfig {
	return PluginConfig{
		BaseName:      pick(a.BaseName, b.BaseName),
		LegacyName:    pick(a.LegacyName, b.LegacyName),
		MCVersion:     pick(a.MCVersion, b.MCVersion),
		PluginVersion: pick(a.PluginVersion, b.PluginVersion),
		Extension:     pick(a.Extension, b.Extension),
		BuildCommand:  pick(a.BuildCommand, b.BuildCommand),
		OutputDir:     pick(a.OutputDir, b.OutputDir),
	}
}

func mergeServer(a, b ServerConfig) ServerConfig {
	return ServerConfig{
		Dir:         pick(a.Dir, b.Dir),
		Jar:         pick(a.Jar, b.Jar),
		MemoryMin:   pick(a.MemoryMin, b.MemoryMin),
		MemoryMax:   pick(a.MemoryMax, b.MemoryMax),
		Session:     pick(a.Session, b.Session),
		Launch:      pick(a.Launch, b.Launch),
		PluginsDir:  pick(a.PluginsDir, b.PluginsDir),
		StopTimeout: pick(a.StopTimeout, b.StopTimeout),
	}
}

func pick(a, b string) string {
	if strings.TrimSpace(b) != "" {
		return b
	}
	return a
}

// Version returns the artifact version from the plugin section.
func (c Config) Version() artifact.Version {
	return artifact.Version{MC: c.Plugin.MCVersion, Plugin: c.Plugin.PluginVersion}
}

// Artifact returns the descriptor of the artifact the build produces.
func (c Config) Artifact() (artifact.Descriptor, error) {
	return artifact.New(c.Plugin.BaseName, c.Plugin.LegacyName, c.Version(), c.Plugin.Extension)
}

// ServerDir returns the server directory with ~ expanded.
func (c Config) ServerDir() (string, error) {
	return homedir.Expand(strings.TrimSpace(c.Server.Dir))
}

// PluginsDir defaults to <server dir>/plugins.
func (c Config) PluginsDir() (string, error) {
	if dir := strings.TrimSpace(c.Server.PluginsDir); dir != "" {
		return homedir.Expand(dir)
	}
	serverDir, err := c.ServerDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(serverDir, "plugins"), nil
}

// Launch returns the command started inside the server session.
func (c Config) Launch() (session.LaunchSpec, error) {
	dir, err := c.ServerDir()
	if err != nil {
		return session.LaunchSpec{}, err
	}
	if raw := strings.TrimSpace(c.Server.Launch); raw != "" {
		spec, err := session.ParseLaunch(dir, raw)
		if err != nil {
			return session.LaunchSpec{}, fmt.Errorf("parse server.launch: %w", err)
		}
		return spec, nil
	}
	return session.JavaLaunch(dir, c.Server.Jar, c.Server.MemoryMin, c.Server.MemoryMax), nil
}

// StopTimeout parses server.stopTimeout, defaulting to the session grace period.
func (c Config) StopTimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.Server.StopTimeout)
	if raw == "" {
		return session.DefaultStopTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse server.stopTimeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("server.stopTimeout must not be negative")
	}
	return d, nil
}

// SessionName returns the configured session name or the default.
func (c Config) SessionName() string {
	if name := strings.TrimSpace(c.Server.Session); name != "" {
		return name
	}
	return session.DefaultName
}

// ResolvePath expands ~ and anchors relative paths at root.
func ResolvePath(root, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) || strings.TrimSpace(root) == "" {
		return expanded, nil
	}
	return filepath.Join(root, expanded), nil
}
