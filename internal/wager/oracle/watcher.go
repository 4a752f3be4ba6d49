package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/shared/retry"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// Timing são os tempos da espera em dois níveis
type Timing struct {
	AccountPoll     time.Duration
	AccountTimeout  time.Duration
	FastPathTimeout time.Duration
	FulfillPoll     time.Duration
	FulfillTimeout  time.Duration
}

// Watcher espera o oracle preencher a randomness de uma tentativa
type Watcher struct {
	Ledger   AccountSource
	Notifier Notifier // opcional; nil pula o fast path
	Timing   Timing
	Log      *zap.Logger
}

func NewWatcher(src AccountSource, n Notifier, t Timing, log *zap.Logger) *Watcher {
	return &Watcher{Ledger: src, Notifier: n, Timing: t, Log: log}
}

// Await: espera a conta existir, tenta o fast path e cai no polling manual.
// Orçamento esgotado devolve wager.ErrTimeout; ctx cancelado devolve o erro do ctx.
func (w *Watcher) Await(ctx context.Context, ref ledger.PublicKey) (*Randomness, error) {
	log := w.Log.With(zap.String("randomness", ref.String()))

	// 1. a conta precisa existir antes de qualquer espera por fulfillment
	var current *Randomness
	err := retry.Poll(ctx, w.Timing.AccountPoll, w.Timing.AccountTimeout, func(ctx context.Context) (bool, error) {
		r, exists, err := w.Check(ctx, ref)
		if err != nil {
			log.Debug("randomness account lookup failed", zap.Error(err))
			return false, nil
		}
		current = r
		return exists, nil
	})
	if err := w.budgetErr(ctx, err, "randomness account never appeared"); err != nil {
		return nil, err
	}
	if current != nil && current.Fulfilled {
		return current, nil
	}

	// 2. fast path
	if w.Notifier != nil {
		fctx, cancel := context.WithTimeout(ctx, w.Timing.FastPathTimeout)
		r, err := w.fastPath(fctx, ref)
		cancel()
		if err == nil && r != nil && r.Fulfilled {
			log.Debug("randomness fulfilled via fast path")
			return r, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Info("fast path did not confirm fulfillment, polling", zap.Error(err))
	}

	// 3. polling manual
	err = retry.Poll(ctx, w.Timing.FulfillPoll, w.Timing.FulfillTimeout, func(ctx context.Context) (bool, error) {
		r, exists, err := w.Check(ctx, ref)
		if err != nil {
			log.Debug("randomness lookup failed", zap.Error(err))
			return false, nil
		}
		if exists && r.Fulfilled {
			current = r
			return true, nil
		}
		return false, nil
	})
	if err := w.budgetErr(ctx, err, "randomness not fulfilled"); err != nil {
		return nil, err
	}
	return current, nil
}

// fastPath espera a notificação de fulfillment. Depois que a assinatura está ativa faz
// uma leitura: um fulfillment anterior à assinatura não gera notificação.
func (w *Watcher) fastPath(ctx context.Context, ref ledger.PublicKey) (*Randomness, error) {
	updates, err := w.Notifier.Subscribe(ctx, ref)
	if err != nil {
		return nil, err
	}
	if r, exists, err := w.Check(ctx, ref); err == nil && exists && r.Fulfilled {
		return r, nil
	}
	for r := range updates {
		if r != nil && r.Fulfilled {
			return r, nil
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, ledger.ErrSubscriptionClosed
}

// Check faz uma única leitura: (registro, existe, erro)
func (w *Watcher) Check(ctx context.Context, ref ledger.PublicKey) (*Randomness, bool, error) {
	acc, err := w.Ledger.GetAccountInfo(ctx, ref, ledger.CommitmentConfirmed)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", wager.ErrTransientNetwork, err)
	}
	if acc == nil {
		return nil, false, nil
	}
	r, err := DecodeRandomness(acc.Data)
	if err != nil {
		// conta existe mas ainda não é legível; trata como pendente
		return &Randomness{}, true, nil
	}
	return r, true, nil
}

func (w *Watcher) budgetErr(ctx context.Context, err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, retry.ErrPollTimeout):
		return fmt.Errorf("%w: %s", wager.ErrTimeout, what)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}
