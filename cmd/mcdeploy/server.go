// File: cmd/mcdeploy/server.go
// Brief: run-server, stop-server and restart-server.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/mcdeploy/internal/flow"
	"github.com/example/mcdeploy/internal/session"
)

func newRunServerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run-server",
		Short:         "Start the server in a detached screen session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			ctrl := newSessionController(a.log)
			g := flow.New(a.log)
			g.MustAdd(a.startStep(ctrl))
			return g.Run(cmd.Context())
		},
	}
	decorateCommandHelp(cmd, "Server Flags")
	return cmd
}

func newStopServerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stop-server",
		Short:         "Ask the server to stop and wait out the grace period",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			ctrl := newSessionController(a.log)
			g := flow.New(a.log)
			g.MustAdd(a.stopStep(ctrl))
			return g.Run(cmd.Context())
		},
	}
	decorateCommandHelp(cmd, "Server Flags")
	return cmd
}

func newRestartServerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "restart-server",
		Short:         "Stop the server session, then start it again",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			ctrl := newSessionController(a.log)
			g := flow.New(a.log)
			g.MustAdd(a.stopStep(ctrl))
			start := a.startStep(ctrl)
			start.Needs = []string{"stop"}
			g.MustAdd(start)
			return g.Run(cmd.Context())
		},
	}
	decorateCommandHelp(cmd, "Server Flags")
	return cmd
}

func (a *app) stopStep(ctrl session.Controller) flow.Step {
	return flow.Step{
		Name: "stop",
		Run: func(ctx context.Context) error {
			timeout, err := a.cfg.StopTimeout()
			if err != nil {
				return err
			}
			name := a.cfg.SessionName()
			a.out.Step("Stopping session " + name)
			res, err := ctrl.Stop(ctx, name, session.DefaultStopText, timeout)
			if err != nil {
				return err
			}
			switch res {
			case session.StopAlreadyStopped:
				a.out.Status(name, 0, "stopped", "no running session")
			case session.StopManual:
				a.out.Status(name, 0, "manual", "stop the server yourself, then continue")
			default:
				a.out.Status(name, 0, "ok", res.String())
			}
			return nil
		},
	}
}

func (a *app) startStep(ctrl session.Controller) flow.Step {
	return flow.Step{
		Name: "start",
		Run: func(ctx context.Context) error {
			launch, err := a.cfg.Launch()
			if err != nil {
				return err
			}
			name := a.cfg.SessionName()
			a.out.Step("Starting session " + name)
			if h := session.State(ctx, ctrl, name); h.Running {
				a.out.Warnf("session %s is already running; screen will start another with the same name", h.Name)
			}
			if err := ctrl.Start(ctx, name, launch); err != nil {
				return err
			}
			if _, manual := ctrl.(session.Manual); manual {
				a.out.Status(name, 0, "manual", "start it yourself: "+launch.String())
				return nil
			}
			a.out.Status(name, 0, "running", launch.String())
			return nil
		},
	}
}
