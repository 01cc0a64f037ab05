package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gonut/nut/internal/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <target> <ups> [variable]",
		Short: "Show stored snapshots written by poll",
		Long: `History reads the snapshot store configured for poll. With a variable
it prints that variable's stored values, newest first. Without one it
prints the latest snapshot of the UPS.`,
		Example: `  nut history localhost dummy-sim
  nut history localhost dummy-sim battery.charge --limit 5`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(a.cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			target, ups := args[0], args[1]
			if len(args) == 2 {
				snap, err := st.Latest(cmd.Context(), target, ups)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no snapshots stored for %s/%s", target, ups)
				}
				if err != nil {
					return err
				}
				printSnapshot(a, snap)
				return nil
			}

			readings, err := st.History(cmd.Context(), target, ups, args[2], limit)
			if err != nil {
				return err
			}
			if len(readings) == 0 {
				return fmt.Errorf("no readings stored for %s on %s/%s", args[2], target, ups)
			}
			for _, r := range readings {
				fmt.Fprintf(a.out, "%s  %s\n", r.PolledAt.Format(time.RFC3339), r.Value)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of readings to show (0 for all)")
	return cmd
}

func printSnapshot(a *app, snap store.Snapshot) {
	header := color.New(color.Bold).Sprintf("%s/%s", snap.Target, snap.UPS)
	fmt.Fprintf(a.out, "%s at %s\n", header, snap.PolledAt.Format(time.RFC3339))
	for _, name := range slices.Sorted(maps.Keys(snap.Values)) {
		fmt.Fprintf(a.out, "  %s: %s\n", name, snap.Values[name])
	}
}
