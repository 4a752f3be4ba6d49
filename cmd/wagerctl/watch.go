package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radieske/vrf-wager-platform/internal/shared/cache"
)

func newWatchCmd(c *cli) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow wager transitions broadcast on Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.noRecord {
				return errNeedsRecord
			}
			ctx := cmd.Context()
			rdb, err := cache.ConnectRedis(ctx, c.cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer rdb.Close()

			out := cmd.OutOrStdout()
			return cache.Subscribe(ctx, rdb, c.cfg.RedisPubSubChannel, c.log, func(u cache.Update) {
				if id != "" && u.WagerID != id {
					return
				}
				line := fmt.Sprintf("%s  %-8s %s  %s -> %s", u.At.Format("15:04:05.000"), u.Game, u.WagerID, orStart(string(u.From)), u.To)
				if u.Payload != nil {
					if b, err := json.Marshal(u.Payload); err == nil {
						line += "  " + string(b)
					}
				}
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().StringVar(&id, "wager", "", "only show this wager")
	return cmd
}
