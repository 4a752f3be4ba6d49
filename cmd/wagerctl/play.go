package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/radieske/vrf-wager-platform/internal/games"
	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
	"github.com/radieske/vrf-wager-platform/internal/wager/derive"
	"github.com/radieske/vrf-wager-platform/internal/wager/orchestrator"
)

func newPlayCmd(c *cli) *cobra.Command {
	var game, stake, params, walletPath, seed string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Place one wager and follow it to a terminal state",
		Example: `  wagerctl play --game dice --stake 0.1 --params '{"left":1,"right":50,"parity":"even"}'
  wagerctl play --game scratch --stake 0.05 --params '{"cells":[0,4,8]}' --no-record`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			lamports, err := games.ParseSOL(stake)
			if err != nil {
				return err
			}
			wallet, err := ledger.LoadKeypairFile(walletPath)
			if err != nil {
				return err
			}
			req := orchestrator.PlayRequest{Wallet: wallet, Stake: lamports}
			if params != "" {
				req.Params = json.RawMessage(params)
			}
			if seed != "" {
				if req.Seed, err = derive.ParseSeed(seed); err != nil {
					return err
				}
			}

			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()
			o, err := a.Orchestrator(game)
			if err != nil {
				return err
			}

			w, err := o.Play(ctx, req)
			printWager(cmd.OutOrStdout(), o.Game(), w)
			if errors.Is(err, wager.ErrAbandoned) {
				fmt.Fprintln(cmd.OutOrStdout(), "interrupted: run `wagerctl reconcile "+w.ID+"` to finish it")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&game, "game", "dice", "game from the catalog")
	cmd.Flags().StringVar(&stake, "stake", "", "stake in SOL, e.g. 0.25")
	cmd.Flags().StringVar(&params, "params", "", "game parameters as JSON")
	cmd.Flags().StringVar(&walletPath, "wallet", "player.json", "player keypair file")
	cmd.Flags().StringVar(&seed, "seed", "", "attempt seed (base58); a fresh one by default")
	_ = cmd.MarkFlagRequired("stake")
	return cmd
}

func printWager(out io.Writer, g games.Game, w *wager.Wager) {
	if w == nil {
		return
	}
	states := make([]string, 0, len(w.History))
	for _, s := range w.States() {
		states = append(states, string(s))
	}
	fmt.Fprintf(out, "wager    %s\n", w.ID)
	fmt.Fprintf(out, "game     %s\n", w.Game)
	fmt.Fprintf(out, "stake    %s SOL\n", games.FormatLamports(w.Stake))
	if len(states) > 0 {
		fmt.Fprintf(out, "states   %s\n", strings.Join(states, " -> "))
	}
	switch {
	case w.Outcome != nil && w.Outcome.Kind == wager.KindRefund:
		fmt.Fprintf(out, "refunded %s SOL (%s)\n", games.FormatLamports(w.Outcome.Returned()), w.SettleSig)
	case w.Outcome != nil:
		fmt.Fprintf(out, "result   %s\n", g.Summarize(w.Outcome))
		fmt.Fprintf(out, "net      %s SOL (%s)\n", games.FormatSigned(w.Outcome.Returned(), w.Stake), w.SettleSig)
	case w.Failure != nil:
		fmt.Fprintf(out, "failed   %s at %s: %s\n", w.Failure.Reason, w.Failure.Step, w.Failure.Error)
		if w.Failure.Reason.NeedsReconciliation() {
			fmt.Fprintln(out, "         stake may still be held on the ledger")
		}
	}
}
