package oracle

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
)

// Notifier é o fast path. Subscribe só retorna com a assinatura ativa no ledger; o canal
// entrega cada novo estado da randomness e fecha quando a assinatura ou o ctx acabam.
type Notifier interface {
	Subscribe(ctx context.Context, ref ledger.PublicKey) (<-chan *Randomness, error)
}

// WSNotifier usa accountSubscribe no pubsub do ledger
type WSNotifier struct {
	WS  *ledger.WSClient
	Log *zap.Logger
}

func NewWSNotifier(ws *ledger.WSClient, log *zap.Logger) *WSNotifier {
	return &WSNotifier{WS: ws, Log: log}
}

func (n *WSNotifier) Subscribe(ctx context.Context, ref ledger.PublicKey) (<-chan *Randomness, error) {
	updates, err := n.WS.SubscribeAccount(ctx, ref, ledger.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	out := make(chan *Randomness)
	go func() {
		defer close(out)
		for acc := range updates {
			r, err := DecodeRandomness(acc.Data)
			if err != nil {
				n.Log.Debug("ignoring undecodable randomness update", zap.String("account", ref.String()), zap.Error(err))
				continue
			}
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
