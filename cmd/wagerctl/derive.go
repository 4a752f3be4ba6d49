package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager/derive"
)

func newDeriveCmd(c *cli) *cobra.Command {
	var game, seed string
	var verify bool
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the game-wide accounts and the accounts of one attempt seed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c.noRecord = true
			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()
			o, err := a.Orchestrator(game)
			if err != nil {
				return err
			}

			var s ledger.PublicKey
			if seed != "" {
				s, err = derive.ParseSeed(seed)
			} else {
				s, err = derive.NewSeed()
			}
			if err != nil {
				return err
			}
			addrs, err := o.Deriver().Derive(s)
			if err != nil {
				return err
			}
			st := o.Static()
			p := o.Game().Profile()

			rows := []struct {
				name string
				pk   ledger.PublicKey
			}{
				{"config_agent (" + p.ConfigSeed + ")", st.Config},
				{"vault (" + p.VaultSeed + ")", st.Vault},
				{"treasury (" + p.TreasurySeed + ")", st.Treasury},
				{"network_state", st.NetworkState},
				{"seed", s},
				{"randomness", addrs.RandomnessRef},
				{"bet", addrs.WagerAccountRef},
			}
			out := cmd.OutOrStdout()
			for i, r := range rows {
				line := fmt.Sprintf("%-36s %s", r.name, r.pk)
				// contas da tentativa só existem depois do place_bet
				if verify && i < 4 {
					acc, err := a.RPC.GetAccountInfo(ctx, r.pk, ledger.CommitmentConfirmed)
					switch {
					case err != nil:
						line += "  lookup failed: " + err.Error()
					case acc == nil:
						line += "  NOT FOUND"
					default:
						line += fmt.Sprintf("  FOUND owner=%s lamports=%d data=%d", acc.Owner, acc.Lamports, len(acc.Data))
					}
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&game, "game", "dice", "game from the catalog")
	cmd.Flags().StringVar(&seed, "seed", "", "attempt seed (base58 or base64); a fresh one by default")
	cmd.Flags().BoolVar(&verify, "verify", false, "check on the ledger that the game-wide accounts exist")
	return cmd
}
