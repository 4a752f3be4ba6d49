package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/radieske/vrf-wager-platform/internal/shared/cache"
	"github.com/radieske/vrf-wager-platform/internal/wager/reconcile"
)

func newReconcileCmd(c *cli) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile [wager-id]",
		Short: "Resume one recorded wager, or sweep every stale one once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			resumers := make(map[string]reconcile.Resumer, len(a.Orchestrators))
			for name, o := range a.Orchestrators {
				resumers[name] = o
			}
			if grace == 0 {
				grace = a.Policy.ReconcileGrace
			}
			s := &reconcile.Sweeper{
				Store:       a.Store,
				Locker:      cache.NewLocker(a.Redis, "wager:reconcile:", a.Policy.LiveBudget()+time.Minute),
				Resumers:    resumers,
				DLQ:         a.Publisher,
				Grace:       grace,
				RetryAfter:  a.Policy.ReconcileRetryAfter,
				MaxAttempts: a.Policy.ReconcileMaxAttempts,
				Log:         c.log,
			}

			if len(args) == 1 {
				w, err := a.Store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				res, err := s.One(ctx, w)
				if res != nil {
					g, gerr := a.Catalog.Game(res.Game)
					if gerr == nil {
						printWager(cmd.OutOrStdout(), g, res)
					}
				}
				return err
			}

			rep, err := s.RunOnce(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "stale=%d resumed=%d orphaned=%d skipped=%d errors=%d\n",
				rep.Stale, rep.Resumed, rep.Orphaned, rep.Skipped, rep.Errors)
			return err
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "only sweep wagers idle for longer than this (default WAGER_RECONCILE_GRACE)")
	return cmd
}
