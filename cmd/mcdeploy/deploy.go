// File: cmd/mcdeploy/deploy.go
// Brief: deploy, deploy-<target> and targets.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/mcdeploy/internal/artifact"
	"github.com/example/mcdeploy/internal/credentials"
	"github.com/example/mcdeploy/internal/deploy"
	"github.com/example/mcdeploy/internal/flow"
	"github.com/example/mcdeploy/internal/history"
	"github.com/example/mcdeploy/internal/logging"
	"github.com/example/mcdeploy/internal/settings"
)

type deployOptions struct {
	skipBuild bool
	noHistory bool
}

func (o *deployOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.skipBuild, "skip-build", false, "Use the artifact already in the build output directory")
	cmd.Flags().BoolVar(&o.noHistory, "no-history", false, "Do not record outcomes in the deploy history database")
}

func newDeployCommand(opts *rootOptions) *cobra.Command {
	dopts := &deployOptions{}
	cmd := &cobra.Command{
		Use:   "deploy [TARGET...]",
		Short: "Upload the plugin to configured FTP/SFTP targets",
		Long: "Upload the built plugin to each named target, or to every target in the settings\n" +
			"file when none are named. Incomplete targets are skipped; a failed transfer does\n" +
			"not stop the remaining targets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, opts, dopts, args)
		},
	}
	dopts.bind(cmd)
	decorateCommandHelp(cmd, "Deploy Flags")
	return cmd
}

// addTargetDeployCommands registers deploy-<name> for each known target.
func addTargetDeployCommands(root *cobra.Command, opts *rootOptions, names []string) []*cobra.Command {
	var out []*cobra.Command
	for _, name := range names {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t") {
			continue
		}
		if existing, _, err := root.Find([]string{"deploy-" + name}); err == nil && existing != root {
			continue
		}
		target := name
		dopts := &deployOptions{}
		cmd := &cobra.Command{
			Use:           "deploy-" + target,
			Short:         fmt.Sprintf("Upload the plugin to target %q", target),
			Args:          cobra.NoArgs,
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDeploy(cmd, opts, dopts, []string{target})
			},
		}
		dopts.bind(cmd)
		decorateCommandHelp(cmd, "Deploy Flags")
		root.AddCommand(cmd)
		out = append(out, cmd)
	}
	return out
}

func runDeploy(cmd *cobra.Command, opts *rootOptions, dopts *deployOptions, names []string) error {
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	set, err := a.targets()
	if err != nil {
		return err
	}
	if set.Len() == 0 && len(names) == 0 {
		a.out.Warnf("no deploy targets configured in %s", a.cfg.Deploy.SettingsFile)
		return nil
	}

	resolver, err := credentials.NewResolver(a.cfg.Secrets, a.root)
	if err != nil {
		return err
	}
	pipeline := &deploy.Pipeline{
		Dialer:  newDialer(),
		Secrets: resolver,
		Log:     a.log,
	}
	if !dopts.noHistory {
		path, err := a.path(a.cfg.Deploy.HistoryFile)
		if err != nil {
			return err
		}
		store, err := history.Open(path)
		if err != nil {
			logging.Warn(a.log, "deploy history unavailable; outcomes will not be recorded", "path", path, "error", err.Error())
		} else {
			defer store.Close()
			pipeline.Recorder = store
		}
	}

	var (
		built   artifact.Descriptor
		results deploy.Results
	)
	g := flow.New(a.log)
	g.MustAdd(a.buildStep(dopts.skipBuild, &built))
	g.MustAdd(flow.Step{
		Name:  "deploy",
		Needs: []string{"build"},
		Run: func(ctx context.Context) error {
			a.out.Step("Deploying " + built.FileName())
			results = pipeline.DeployAll(ctx, built, set, names)
			printResults(a, results)
			return results.Err()
		},
	})
	return g.Run(cmd.Context())
}

func printResults(a *app, results deploy.Results) {
	width := 0
	for _, r := range results {
		if len(r.Target) > width {
			width = len(r.Target)
		}
	}
	for _, r := range results {
		detail := r.Reason
		switch r.Status {
		case deploy.StatusSucceeded:
			detail = r.Summary()
		case deploy.StatusFailed:
			detail = r.Err.Error()
		}
		a.out.Status(r.Target, width, string(r.Status), detail)
	}
}

func newTargetsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "targets",
		Short:         "List deploy targets from the settings file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			set, err := a.targets()
			if err != nil {
				return err
			}
			if set.Len() == 0 {
				a.out.Infof("No deploy targets configured.")
				return nil
			}
			rows := [][]string{{"TARGET", "STATUS", "HOST", "PATH", "CREDENTIALS"}}
			for _, t := range set.Targets() {
				rows = append(rows, targetRow(t))
			}
			a.out.Table(rows)
			return nil
		},
	}
	decorateCommandHelp(cmd, "Targets Flags")
	return cmd
}

func targetRow(t settings.Target) []string {
	status := "complete"
	if missing := t.Missing(); len(missing) > 0 {
		status = "incomplete (" + strings.Join(missing, ", ") + ")"
	}
	return []string{t.Name, status, dashIfEmpty(t.Host), dashIfEmpty(t.RemotePath), credentialSource(t)}
}

// credentialSource tells whether a target's login comes from a secret
// provider or sits in the settings file.
func credentialSource(t settings.Target) string {
	switch {
	case credentials.IsRef(t.User) || credentials.IsRef(t.Secret):
		return "secret"
	case t.Secret != "":
		return "inline"
	default:
		return "-"
	}
}

func dashIfEmpty(val string) string {
	if val == "" {
		return "-"
	}
	return val
}
