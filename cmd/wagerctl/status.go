package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <wager-id>",
		Short: "Show a recorded wager and its transition history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.Store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(w)
			}
			g, err := a.Catalog.Game(w.Game)
			if err != nil {
				return err
			}
			printWager(cmd.OutOrStdout(), g, w)
			for _, tr := range w.History {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %-20s -> %s\n", tr.At.Format("2006-01-02T15:04:05.000Z07:00"), orStart(string(tr.From)), tr.To)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the wager as JSON")
	return cmd
}

func orStart(s string) string {
	if s == "" {
		return "(start)"
	}
	return s
}
