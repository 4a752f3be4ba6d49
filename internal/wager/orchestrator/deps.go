package orchestrator

import (
	"context"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
	"github.com/radieske/vrf-wager-platform/internal/wager/oracle"
	"github.com/radieske/vrf-wager-platform/internal/wager/result"
	"github.com/radieske/vrf-wager-platform/internal/wager/signer"
)

// Ledger é o que o orquestrador usa do ledger client
type Ledger interface {
	GetLatestBlockhash(ctx context.Context, commitment ledger.Commitment) (ledger.Hash, error)
	SendTransaction(ctx context.Context, raw []byte) (string, error)
	GetTransaction(ctx context.Context, sig string, commitment ledger.Commitment) (*ledger.TransactionResult, error)
	GetAccountInfo(ctx context.Context, pk ledger.PublicKey, commitment ledger.Commitment) (*ledger.Account, error)
}

// OperatorSigner são as três operações do operador; nenhuma é repetida
type OperatorSigner interface {
	RequestRandomness(ctx context.Context, r signer.RandomnessRequest) (signer.Reply, error)
	Resolve(ctx context.Context, r signer.SettleRequest) (signer.Reply, error)
	Refund(ctx context.Context, r signer.SettleRequest) (signer.Reply, error)
}

// Fulfillment espera (Await) ou consulta uma vez (Check) a randomness
type Fulfillment interface {
	Await(ctx context.Context, ref ledger.PublicKey) (*oracle.Randomness, error)
	Check(ctx context.Context, ref ledger.PublicKey) (*oracle.Randomness, bool, error)
}

type ResultParser interface {
	Parse(ctx context.Context, sig string) (result.Result, error)
}

// Observer recebe cada transição depois de aplicada; erro só é logado
type Observer interface {
	OnTransition(ctx context.Context, w *wager.Wager, tr wager.Transition) error
}

// ObserverFunc adapta uma função a Observer
type ObserverFunc func(ctx context.Context, w *wager.Wager, tr wager.Transition) error

func (f ObserverFunc) OnTransition(ctx context.Context, w *wager.Wager, tr wager.Transition) error {
	return f(ctx, w, tr)
}
