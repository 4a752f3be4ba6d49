package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/app"
	"github.com/radieske/vrf-wager-platform/internal/shared/config"
	"github.com/radieske/vrf-wager-platform/internal/shared/logger"
)

var errNeedsRecord = errors.New("this command reads the wager store; drop --no-record")

// cli guarda o que todos os subcomandos compartilham
type cli struct {
	cfg      config.Config
	log      *zap.Logger
	noRecord bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "wagerctl",
		Short:        "Place and inspect VRF-settled wagers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if os.Getenv("SERVICE_NAME") == "" {
				_ = os.Setenv("SERVICE_NAME", "wagerctl")
			}
			c.cfg = config.Load()
			log, err := logger.New(c.cfg.ServiceName, c.cfg.Env, c.cfg.LogLevel)
			if err != nil {
				return err
			}
			c.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVar(&c.noRecord, "no-record", false, "do not persist or publish transitions (no Postgres/Kafka/Redis)")

	root.AddCommand(
		newPlayCmd(c),
		newDeriveCmd(c),
		newStatusCmd(c),
		newReconcileCmd(c),
		newWatchCmd(c),
	)
	return root
}

// open monta o app; needsStore falha cedo quando --no-record desliga o store
func (c *cli) open(ctx context.Context, needsStore bool) (*app.App, error) {
	if needsStore && c.noRecord {
		return nil, errNeedsRecord
	}
	a, err := app.New(ctx, c.cfg, c.log, app.Options{Record: !c.noRecord})
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return a, nil
}
