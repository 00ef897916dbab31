package main

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/mcdeploy/internal/history"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	limit := 20
	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show recent deploy outcomes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			path, err := a.path(a.cfg.Deploy.HistoryFile)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				a.out.Infof("No deploys recorded yet.")
				return nil
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				a.out.Infof("No deploys recorded yet.")
				return nil
			}
			rows := [][]string{{"ID", "TIME", "TARGET", "VERSION", "STATUS", "DETAIL"}}
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.At.Local().Format(time.DateTime),
					e.Target,
					e.Version,
					string(e.Status),
					dashIfEmpty(e.Detail),
				})
			}
			a.out.Table(rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", limit, "Maximum number of entries to show (0 for all)")
	decorateCommandHelp(cmd, "History Flags")
	return cmd
}
