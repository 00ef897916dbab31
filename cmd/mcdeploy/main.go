// main.go bootstraps mcdeploy: it builds the root Cobra command, binds flags to
// MCDEPLOY_* environment variables and executes with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/mcdeploy/internal/deploy"
	"github.com/example/mcdeploy/internal/release"
	"github.com/example/mcdeploy/internal/stage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel      string
	projectDir    string
	configPath    string
	settingsPath  string
	mcVersion     string
	pluginVersion string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{logLevel: "info"}
	cmd := &cobra.Command{
		Use:   "mcdeploy",
		Short: "Build, stage and ship a server plugin",
		Long: "mcdeploy drives the plugin development loop: it supervises the local server in a\n" +
			"detached screen session, stages fresh builds into its plugin directory, uploads\n" +
			"them to FTP/SFTP targets and tags releases for CI.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level (debug, info, warn, error)")
	pf.StringVarP(&opts.projectDir, "project-dir", "C", "", "Plugin project directory (default: repository root of the working directory)")
	pf.StringVar(&opts.configPath, "project-config", "", "Project config file (default: <project>/.mcdeploy.yaml)")
	pf.StringVar(&opts.settingsPath, "settings", "", "FTP settings file (default: <project>/ftp_settings.mk)")
	pf.StringVar(&opts.mcVersion, "mc-version", "", "Override the server version component of the artifact version")
	pf.StringVar(&opts.pluginVersion, "plugin-version", "", "Override the plugin version component of the artifact version")

	cmd.AddCommand(
		newReloadPluginCommand(opts),
		newRunServerCommand(opts),
		newStopServerCommand(opts),
		newRestartServerCommand(opts),
		newLiveCommand(opts),
		newDeployCommand(opts),
		newTriggerCommand(opts),
		newTagReleaseCommand(opts),
		newPushReleaseCommand(opts),
		newShowVersionCommand(opts),
		newTargetsCommand(opts),
		newHistoryCommand(opts),
		newVersionCommand(),
	)
	addTargetDeployCommands(cmd, opts, discoverTargetNames())
	cmd.Example = `  # Rebuild and hot-swap the plugin, restarting the local server
  mcdeploy live

  # Upload the current build to every configured FTP target
  mcdeploy deploy --skip-build

  # Tag v1.21.4-1.0.6 and push it to start the CI release
  mcdeploy trigger --plugin-version 1.0.6`
	decorateCommandHelp(cmd, "Global Flags")
	applyEnv := bindViper(append([]*cobra.Command{cmd}, cmd.Commands()...)...)
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return applyEnv()
	}
	return cmd
}

// bindViper lets MCDEPLOY_* environment variables and the optional flags file
// supply values for flags not given on the command line. The returned func
// runs before each command.
func bindViper(commands ...*cobra.Command) func() error {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("MCDEPLOY")
	v.AutomaticEnv()
	configFile := os.Getenv("MCDEPLOY_CONFIG")
	configureConfigFile(v, configFile)

	return func() error {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				return err
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			return err
		}
		for _, cmd := range commands {
			for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed || !v.IsSet(f.Name) {
						return
					}
					if val := fmt.Sprintf("%v", v.Get(f.Name)); val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
		return nil
	}
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("flags")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "mcdeploy"))
	}
	if home, err := homedir.Dir(); err == nil && home != "" {
		add(filepath.Join(home, ".config", "mcdeploy"))
		add(filepath.Join(home, ".mcdeploy"))
	}
	return dirs
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", errorMessage(err))
}

func errorMessage(err error) string {
	message := err.Error()
	switch {
	case errors.Is(err, release.ErrTagExists):
		message = fmt.Sprintf("%s\nHint: bump plugin.pluginVersion in .mcdeploy.yaml (or pass --plugin-version) before triggering another release.", err)
	case errors.Is(err, deploy.ErrTargetsFailed):
		message = fmt.Sprintf("%s\nHint: the per-target lines above show why each transfer failed; other targets were still attempted.", err)
	case errors.Is(err, stage.ErrDestinationMissing):
		message = fmt.Sprintf("%s\nHint: check server.dir / server.pluginsDir; the plugin directory is never created automatically.", err)
	case errors.Is(err, context.Canceled):
		message = "interrupted"
	}
	return message
}
