// release.go wires the CI release trigger: trigger, tag-release, push-release and show-version.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/mcdeploy/internal/flow"
	"github.com/example/mcdeploy/internal/gitinfo"
)

func newTriggerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "trigger",
		Short:         "Tag the current version and push the tag to start the CI release",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			g := flow.New(a.log)
			g.MustAdd(a.tagStep())
			push := a.pushStep()
			push.Needs = []string{"tag"}
			g.MustAdd(push)
			return g.Run(cmd.Context())
		},
	}
	decorateCommandHelp(cmd, "Release Flags")
	return cmd
}

func newTagReleaseCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tag-release",
		Short:         "Create the release tag for the current version without pushing it",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			step := a.tagStep()
			return step.Run(cmd.Context())
		},
	}
	decorateCommandHelp(cmd, "Release Flags")
	return cmd
}

func newPushReleaseCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "push-release",
		Short:         "Push the existing release tag for the current version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			step := a.pushStep()
			return step.Run(cmd.Context())
		},
	}
	decorateCommandHelp(cmd, "Release Flags")
	return cmd
}

func (a *app) tagStep() flow.Step {
	return flow.Step{
		Name: "tag",
		Run: func(ctx context.Context) error {
			version := a.cfg.Version().String()
			tr := a.trigger()
			a.out.Step("Tagging " + tr.TagName(version))
			if err := tr.Tag(ctx, version); err != nil {
				return err
			}
			a.out.Status(tr.TagName(version), 0, "created", "")
			return nil
		},
	}
}

func (a *app) pushStep() flow.Step {
	return flow.Step{
		Name: "push",
		Run: func(ctx context.Context) error {
			version := a.cfg.Version().String()
			tr := a.trigger()
			a.out.Step("Pushing " + tr.TagName(version))
			if err := tr.Push(ctx, version); err != nil {
				return err
			}
			a.out.Status(tr.TagName(version), 0, "pushed", "")
			return nil
		},
	}
}

func newShowVersionCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show-version",
		Short:         "Print the resolved version components of the plugin",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			v := a.cfg.Version()
			if err := v.Validate(); err != nil {
				return err
			}
			d, err := a.descriptor()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "MC Version: %s\n", v.MC)
			fmt.Fprintf(out, "Plugin Version: %s\n", v.Plugin)
			fmt.Fprintf(out, "Version: %s\n", v)
			fmt.Fprintf(out, "Artifact: %s\n", d.FileName())
			fmt.Fprintf(out, "Release Tag: %s\n", a.trigger().TagName(v.String()))
			commit, dirty, err := gitinfo.Git{Dir: a.root}.Head(cmd.Context())
			if err != nil {
				a.log.V(1).Info("git state unavailable", "error", err.Error())
				return nil
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Fprintf(out, "Git Commit: %s (%s)\n", commit, state)
			return nil
		},
	}
	decorateCommandHelp(cmd, "Version Flags")
	return cmd
}
