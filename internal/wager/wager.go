package wager

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
)

type State string

const (
	StatePlaced              State = "PLACED"
	StateRandomnessRequested State = "RANDOMNESS_REQUESTED"
	StateFulfilled           State = "FULFILLED"
	StateTimedOut            State = "TIMED_OUT"
	StateResolved            State = "RESOLVED"
	StateRefunded            State = "REFUNDED"
	StateFailed              State = "FAILED"
)

// estado vazio representa (start)
var edges = map[State][]State{
	"":                       {StatePlaced, StateFailed},
	StatePlaced:              {StateRandomnessRequested, StateFailed},
	StateRandomnessRequested: {StateFulfilled, StateTimedOut, StateFailed},
	StateFulfilled:           {StateResolved, StateFailed},
	StateTimedOut:            {StateRefunded, StateFailed},
}

func (s State) Terminal() bool {
	return s == StateResolved || s == StateRefunded || s == StateFailed
}

// CanAdvance informa se existe aresta from -> to
func CanAdvance(from, to State) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Addresses são as contas derivadas da seed da tentativa
type Addresses struct {
	RandomnessRef   ledger.PublicKey `json:"randomness_ref"`
	WagerAccountRef ledger.PublicKey `json:"wager_account_ref"`
}

type OutcomeKind string

const (
	KindOutcome OutcomeKind = "OUTCOME"
	KindRefund  OutcomeKind = "REFUND"
)

// Outcome é o registro lido do log estruturado da transação final
type Outcome struct {
	Kind         OutcomeKind                `json:"kind"`
	Tag          string                     `json:"tag"`
	Signature    string                     `json:"signature"`
	PayoutNet    uint64                     `json:"payout_net"`
	BetAmount    uint64                     `json:"bet_amount,omitempty"`
	Compensation uint64                     `json:"compensation,omitempty"`
	Fields       map[string]json.RawMessage `json:"fields,omitempty"`
}

// Returned é o total devolvido ao jogador: payout no resolve, stake+compensação no refund
func (o *Outcome) Returned() uint64 {
	if o == nil {
		return 0
	}
	if o.Kind == KindRefund {
		return o.BetAmount + o.Compensation
	}
	return o.PayoutNet
}

// Transition é uma entrada do histórico
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Failure é o detalhe de uma aposta FAILED
type Failure struct {
	Step   string        `json:"step"`
	Reason FailureReason `json:"reason"`
	Error  string        `json:"error"`
}

// Wager é a tentativa de aposta; só o orquestrador muta
type Wager struct {
	ID     string             `json:"id"` // base58 da seed
	Game   string             `json:"game"`
	Player ledger.PublicKey   `json:"player"`
	Stake  uint64             `json:"stake"`
	Params json.RawMessage    `json:"params,omitempty"`
	Seed   ledger.PublicKey   `json:"seed"`
	Addresses

	State   State        `json:"state"`
	History []Transition `json:"history"`
	Outcome *Outcome     `json:"outcome,omitempty"`
	Failure *Failure     `json:"failure,omitempty"`

	PlaceSig   string `json:"place_sig,omitempty"`
	RequestSig string `json:"request_sig,omitempty"`
	SettleSig  string `json:"settle_sig,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New cria a aposta em memória, ainda sem estado (start)
func New(game string, player, seed ledger.PublicKey, stake uint64, params json.RawMessage, addrs Addresses, at time.Time) *Wager {
	return &Wager{
		ID:        seed.String(),
		Game:      game,
		Player:    player,
		Stake:     stake,
		Params:    params,
		Seed:      seed,
		Addresses: addrs,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func (w *Wager) Terminal() bool { return w.State.Terminal() }

// Advance aplica a transição se a aresta existir
func (w *Wager) Advance(to State, at time.Time) (Transition, error) {
	if !CanAdvance(w.State, to) {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, w.State, to)
	}
	tr := Transition{From: w.State, To: to, At: at}
	w.State = to
	w.History = append(w.History, tr)
	w.UpdatedAt = at
	return tr, nil
}

// Fail leva a aposta a FAILED guardando passo, motivo e erro
func (w *Wager) Fail(step string, reason FailureReason, err error, at time.Time) (Transition, error) {
	tr, aerr := w.Advance(StateFailed, at)
	if aerr != nil {
		return Transition{}, aerr
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	w.Failure = &Failure{Step: step, Reason: reason, Error: msg}
	return tr, nil
}

// States devolve a sequência de estados observados
func (w *Wager) States() []State {
	out := make([]State, 0, len(w.History))
	for _, t := range w.History {
		out = append(out, t.To)
	}
	return out
}

// Clone devolve uma cópia para observadores fora do fluxo
func (w *Wager) Clone() *Wager {
	c := *w
	c.History = append([]Transition(nil), w.History...)
	if w.Outcome != nil {
		o := *w.Outcome
		c.Outcome = &o
	}
	if w.Failure != nil {
		f := *w.Failure
		c.Failure = &f
	}
	return &c
}
