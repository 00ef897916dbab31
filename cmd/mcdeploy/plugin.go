// File: cmd/mcdeploy/plugin.go
// Brief: reload-plugin and live.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/mcdeploy/internal/artifact"
	"github.com/example/mcdeploy/internal/flow"
	"github.com/example/mcdeploy/internal/stage"
)

func newReloadPluginCommand(opts *rootOptions) *cobra.Command {
	var skipBuild bool
	cmd := &cobra.Command{
		Use:           "reload-plugin",
		Short:         "Build the plugin and stage it into the server's plugin directory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			var built artifact.Descriptor
			g := flow.New(a.log)
			g.MustAdd(a.buildStep(skipBuild, &built))
			g.MustAdd(a.stageStep(&built))
			return g.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "Use the artifact already in the build output directory")
	decorateCommandHelp(cmd, "Reload Flags")
	return cmd
}

func newLiveCommand(opts *rootOptions) *cobra.Command {
	var skipBuild bool
	cmd := &cobra.Command{
		Use:           "live",
		Short:         "Build, stop the server, stage the plugin and start the server again",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			ctrl := newSessionController(a.log)
			var built artifact.Descriptor
			g := flow.New(a.log)
			g.MustAdd(a.buildStep(skipBuild, &built))
			stop := a.stopStep(ctrl)
			stop.Needs = []string{"build"}
			g.MustAdd(stop)
			g.MustAdd(a.stageStep(&built))
			start := a.startStep(ctrl)
			start.Needs = []string{"stop", "stage"}
			g.MustAdd(start)
			return g.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "Use the artifact already in the build output directory")
	decorateCommandHelp(cmd, "Live Flags")
	return cmd
}

func (a *app) buildStep(skip bool, built *artifact.Descriptor) flow.Step {
	return flow.Step{
		Name: "build",
		Run: func(ctx context.Context) error {
			if skip {
				a.out.Step("Using existing build output")
			} else {
				a.out.Step("Building plugin")
			}
			d, err := a.build(ctx, skip)
			if err != nil {
				return err
			}
			*built = d
			a.out.Status(d.FileName(), 0, "ok", d.LocalPath)
			return nil
		},
	}
}

func (a *app) stageStep(built *artifact.Descriptor) flow.Step {
	return flow.Step{
		Name:  "stage",
		Needs: []string{"build"},
		Run: func(ctx context.Context) error {
			dest, err := a.cfg.PluginsDir()
			if err != nil {
				return err
			}
			a.out.Step("Staging into " + dest)
			report, err := stage.Stager{Log: a.log}.Stage(*built, dest)
			if err != nil {
				return err
			}
			for _, name := range report.Removed {
				a.out.Status(name, 0, "removed", "")
			}
			a.out.Status(report.Copied, 0, "ok", "copied")
			return nil
		},
	}
}
