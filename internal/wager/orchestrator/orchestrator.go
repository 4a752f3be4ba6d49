package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/games"
	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/shared/config"
	"github.com/radieske/vrf-wager-platform/internal/shared/retry"
	"github.com/radieske/vrf-wager-platform/internal/wager"
	"github.com/radieske/vrf-wager-platform/internal/wager/derive"
	"github.com/radieske/vrf-wager-platform/internal/wager/oracle"
	"github.com/radieske/vrf-wager-platform/internal/wager/result"
	"github.com/radieske/vrf-wager-platform/internal/wager/signer"
)

// Passos registrados em StepError / Failure
const (
	StepPlaceStake        = "place_stake"
	StepRequestRandomness = "request_randomness"
	StepResolve           = "resolve"
	StepRefund            = "refund"
)

const observerTimeout = 5 * time.Second

type Deps struct {
	Game       games.Game
	Ledger     Ledger
	Signer     OperatorSigner
	VRFProgram ledger.PublicKey
	Policy     config.Policy
	Log        *zap.Logger

	// opcionais: sem Oracle/Parser, são montados a partir do Ledger e da Policy
	Notifier  oracle.Notifier
	Oracle    Fulfillment
	Parser    ResultParser
	Observers []Observer
	Now       func() time.Time
}

// Orchestrator leva uma aposta de um jogo do stake até um estado terminal
type Orchestrator struct {
	game      games.Game
	deriver   derive.Deriver
	static    derive.StaticAccounts
	vrf       ledger.PublicKey
	ledger    Ledger
	signer    OperatorSigner
	oracle    Fulfillment
	parser    ResultParser
	policy    config.Policy
	observers []Observer
	log       *zap.Logger
	now       func() time.Time

	treasuryMu  sync.Mutex
	vrfTreasury *ledger.PublicKey
}

func New(d Deps) (*Orchestrator, error) {
	if d.Game == nil || d.Ledger == nil || d.Signer == nil {
		return nil, errors.New("orchestrator: game, ledger and signer are required")
	}
	if err := d.Policy.Validate(); err != nil {
		return nil, err
	}
	p := d.Game.Profile()
	program, err := p.Program()
	if err != nil {
		return nil, err
	}
	deriver := derive.New(d.VRFProgram, program)
	static, err := deriver.Static(p.VaultSeed, p.TreasurySeed, p.ConfigSeed)
	if err != nil {
		return nil, err
	}

	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("game", p.Name))

	o := &Orchestrator{
		game:      d.Game,
		deriver:   deriver,
		static:    static,
		vrf:       d.VRFProgram,
		ledger:    d.Ledger,
		signer:    d.Signer,
		oracle:    d.Oracle,
		parser:    d.Parser,
		policy:    d.Policy,
		observers: d.Observers,
		log:       log,
		now:       d.Now,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.oracle == nil {
		o.oracle = oracle.NewWatcher(d.Ledger, d.Notifier, oracle.Timing{
			AccountPoll:     d.Policy.AccountPoll,
			AccountTimeout:  d.Policy.AccountTimeout,
			FastPathTimeout: d.Policy.FastPathTimeout,
			FulfillPoll:     d.Policy.FulfillPoll,
			FulfillTimeout:  d.Policy.FulfillTimeout,
		}, log)
	}
	if o.parser == nil {
		o.parser = result.NewParser(d.Ledger, result.Tags{Outcome: p.OutcomeTag, Refund: p.RefundTag}, d.Policy.ParseBackoff(), log)
	}
	return o, nil
}

func (o *Orchestrator) Game() games.Game { return o.game }
func (o *Orchestrator) Static() derive.StaticAccounts { return o.static }
func (o *Orchestrator) Deriver() derive.Deriver { return o.deriver }
func (o *Orchestrator) AddObserver(obs Observer) { o.observers = append(o.observers, obs) }

// PlayRequest é a ação confirmada pelo jogador. Seed zero gera uma nova.
type PlayRequest struct {
	Wallet ledger.Wallet
	Stake  uint64
	Params json.RawMessage
	Seed   ledger.PublicKey
}

// Play executa a tentativa inteira. Retorna nil em RESOLVED/REFUNDED, *wager.StepError em FAILED
// e wager.ErrAbandoned quando o ctx é cancelado (o estado no ledger fica como estava).
// Erros de validação retornam antes de qualquer interação com o ledger, com wager nil.
func (o *Orchestrator) Play(ctx context.Context, req PlayRequest) (*wager.Wager, error) {
	p := o.game.Profile()
	if req.Wallet == nil {
		return nil, wager.Validation("wallet is required")
	}
	if err := p.CheckStake(req.Stake); err != nil {
		return nil, err
	}
	if err := o.game.ValidateParams(req.Params); err != nil {
		return nil, err
	}

	seed := req.Seed
	if seed.IsZero() {
		s, err := derive.NewSeed()
		if err != nil {
			return nil, err
		}
		seed = s
	}
	addrs, err := o.deriver.Derive(seed)
	if err != nil {
		return nil, err
	}

	w := wager.New(p.Name, req.Wallet.PublicKey(), seed, req.Stake, req.Params, addrs, o.now())
	log := o.wagerLog(w)
	log.Info("wager started",
		zap.String("player", w.Player.String()),
		zap.Uint64("stake", w.Stake),
		zap.String("randomness", addrs.RandomnessRef.String()),
		zap.String("bet", addrs.WagerAccountRef.String()))

	if err := o.placeStake(ctx, w, req.Wallet); err != nil {
		return w, err
	}
	return o.drive(ctx, w)
}

// Resume continua uma aposta persistida e não terminal (reconciliação)
func (o *Orchestrator) Resume(ctx context.Context, w *wager.Wager) (*wager.Wager, error) {
	if w.Game != o.game.Profile().Name {
		return w, fmt.Errorf("%w: wager of game %s on %s orchestrator", wager.ErrValidation, w.Game, o.game.Profile().Name)
	}
	if w.Terminal() {
		return w, nil
	}
	log := o.wagerLog(w)
	log.Info("resuming wager", zap.String("state", string(w.State)))

	switch w.State {
	case wager.StatePlaced:
		// o request pode ter chegado ao ledger sem a transição ter sido registrada
		_, exists, err := o.oracle.Check(ctx, w.RandomnessRef)
		if err != nil {
			return w, err
		}
		if exists {
			if err := o.advance(ctx, w, wager.StateRandomnessRequested); err != nil {
				return w, err
			}
			return o.settleAfterCheck(ctx, w)
		}
		return o.drive(ctx, w)
	case wager.StateRandomnessRequested:
		return o.settleAfterCheck(ctx, w)
	case wager.StateFulfilled, wager.StateTimedOut:
		if err := o.checkUnsettled(ctx, w); err != nil {
			return w, err
		}
		if w.State == wager.StateFulfilled {
			return o.resolve(ctx, w)
		}
		return o.refund(ctx, w)
	}
	return w, fmt.Errorf("%w: cannot resume from %q", wager.ErrIllegalTransition, w.State)
}

// checkUnsettled confirma que a conta da aposta ainda existe antes de um novo resolve/refund.
// Conta fechada significa que o settle já chegou ao ledger sem a transição ter sido
// registrada; a aposta fica como está para inspeção manual.
func (o *Orchestrator) checkUnsettled(ctx context.Context, w *wager.Wager) error {
	acc, err := o.ledger.GetAccountInfo(ctx, w.WagerAccountRef, ledger.CommitmentConfirmed)
	if err != nil {
		if ctx.Err() != nil {
			return o.abandonErr(ctx.Err())
		}
		return fmt.Errorf("%w: bet account %s: %v", wager.ErrTransientNetwork, w.WagerAccountRef, err)
	}
	if acc == nil {
		o.wagerLog(w).Warn("bet account already closed, settlement not recorded",
			zap.String("state", string(w.State)),
			zap.String("bet", w.WagerAccountRef.String()))
		return fmt.Errorf("%w: bet account %s closed while wager is %s", wager.ErrSettlementUnrecorded, w.WagerAccountRef, w.State)
	}
	return nil
}

// drive segue de PLACED até o fim no fluxo ao vivo
func (o *Orchestrator) drive(ctx context.Context, w *wager.Wager) (*wager.Wager, error) {
	if err := o.requestRandomness(ctx, w); err != nil {
		return w, err
	}

	_, err := o.oracle.Await(ctx, w.RandomnessRef)
	switch {
	case err == nil:
		if err := o.advance(ctx, w, wager.StateFulfilled); err != nil {
			return w, err
		}
		return o.resolve(ctx, w)
	case ctx.Err() != nil:
		return o.abandon(w, ctx.Err())
	default:
		o.wagerLog(w).Warn("randomness not fulfilled, refunding", zap.Error(err))
		if err := o.advance(ctx, w, wager.StateTimedOut); err != nil {
			return w, err
		}
		return o.refund(ctx, w)
	}
}

// settleAfterCheck: uma única leitura decide entre resolve e refund
func (o *Orchestrator) settleAfterCheck(ctx context.Context, w *wager.Wager) (*wager.Wager, error) {
	r, _, err := o.oracle.Check(ctx, w.RandomnessRef)
	if err != nil {
		return w, err
	}
	if r != nil && r.Fulfilled {
		if err := o.advance(ctx, w, wager.StateFulfilled); err != nil {
			return w, err
		}
		return o.resolve(ctx, w)
	}
	if err := o.advance(ctx, w, wager.StateTimedOut); err != nil {
		return w, err
	}
	return o.refund(ctx, w)
}

func (o *Orchestrator) placeStake(ctx context.Context, w *wager.Wager, wallet ledger.Wallet) error {
	fail := func(err error) error { return o.fail(ctx, w, StepPlaceStake, wager.ReasonPlaceStakeRejected, err) }

	ix, err := games.PlaceBetInstruction(o.game, w.Player, w.Addresses, o.static.Vault, w.Stake, w.Params)
	if err != nil {
		return fail(err)
	}
	blockhash, err := o.ledger.GetLatestBlockhash(ctx, ledger.CommitmentConfirmed)
	if err != nil {
		if ctx.Err() != nil {
			return o.abandonErr(ctx.Err())
		}
		return fail(fmt.Errorf("latest blockhash: %w", err))
	}
	tx, err := ledger.NewTransaction(w.Player, blockhash, ix)
	if err != nil {
		return fail(err)
	}
	if err := wallet.SignTransaction(ctx, tx); err != nil {
		return fail(fmt.Errorf("wallet sign: %w", err))
	}
	raw, err := tx.Serialize()
	if err != nil {
		return fail(err)
	}
	sig, err := o.ledger.SendTransaction(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			return o.abandonErr(ctx.Err())
		}
		return fail(fmt.Errorf("submit place_bet: %w", err))
	}
	w.PlaceSig = sig
	o.wagerLog(w).Debug("place_bet submitted", zap.String("signature", sig))

	var rejected error
	err = retry.Poll(ctx, o.policy.ConfirmPoll, o.policy.ConfirmTimeout, func(ctx context.Context) (bool, error) {
		res, err := o.ledger.GetTransaction(ctx, sig, ledger.CommitmentConfirmed)
		if err != nil {
			return false, nil
		}
		if res == nil {
			return false, nil
		}
		if res.Failed() {
			rejected = fmt.Errorf("place_bet %s failed: %s", sig, res.Err)
			return false, rejected
		}
		return true, nil
	})
	switch {
	case err == nil:
		return o.advance(ctx, w, wager.StatePlaced)
	case rejected != nil:
		return fail(rejected)
	case ctx.Err() != nil:
		return o.abandonErr(ctx.Err())
	}

	// sem confirmação no prazo: a existência da conta da aposta decide
	acc, aerr := o.ledger.GetAccountInfo(ctx, w.WagerAccountRef, ledger.CommitmentConfirmed)
	if aerr == nil && acc != nil {
		return o.advance(ctx, w, wager.StatePlaced)
	}
	return fail(fmt.Errorf("%w: place_bet %s not confirmed", wager.ErrTimeout, sig))
}

func (o *Orchestrator) requestRandomness(ctx context.Context, w *wager.Wager) error {
	fail := func(err error) error { return o.fail(ctx, w, StepRequestRandomness, wager.ReasonRequestRejected, err) }

	treasury, err := o.treasury(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return o.abandonErr(ctx.Err())
		}
		return fail(err)
	}
	reply, err := o.signer.RequestRandomness(ctx, signer.RandomnessRequest{
		Seed:         w.Seed,
		Randomness:   w.RandomnessRef,
		NetworkState: o.static.NetworkState,
		VRFTreasury:  treasury,
		VRFProgram:   o.vrf,
		Config:       o.static.Config,
	})
	if err != nil {
		if ctx.Err() != nil {
			return o.abandonErr(ctx.Err())
		}
		return fail(err)
	}
	w.RequestSig = reply.Signature
	return o.advance(ctx, w, wager.StateRandomnessRequested)
}

func (o *Orchestrator) resolve(ctx context.Context, w *wager.Wager) (*wager.Wager, error) {
	fail := func(err error) (*wager.Wager, error) {
		return w, o.fail(ctx, w, StepResolve, wager.ReasonResolveOrParseFailed, err)
	}
	reply, err := o.signer.Resolve(ctx, o.settleRequest(w))
	if err != nil {
		if ctx.Err() != nil {
			return o.abandon(w, ctx.Err())
		}
		return fail(err)
	}
	w.SettleSig = reply.Signature

	res, err := o.parser.Parse(ctx, reply.Signature)
	if err != nil {
		if ctx.Err() != nil {
			return o.abandon(w, ctx.Err())
		}
		return fail(err)
	}
	if res.Kind != wager.KindOutcome {
		return fail(fmt.Errorf("%w: resolve %s produced %s", wager.ErrUnexpectedResult, reply.Signature, res.Tag))
	}
	w.Outcome = res.ToOutcome()
	if err := o.advance(ctx, w, wager.StateResolved); err != nil {
		return w, err
	}
	return w, nil
}

func (o *Orchestrator) refund(ctx context.Context, w *wager.Wager) (*wager.Wager, error) {
	fail := func(err error) (*wager.Wager, error) {
		return w, o.fail(ctx, w, StepRefund, wager.ReasonRefundFailed, err)
	}
	reply, err := o.signer.Refund(ctx, o.settleRequest(w))
	if err != nil {
		if ctx.Err() != nil {
			return o.abandon(w, ctx.Err())
		}
		return fail(err)
	}
	w.SettleSig = reply.Signature

	res, err := o.parser.Parse(ctx, reply.Signature)
	if err != nil {
		if ctx.Err() != nil {
			return o.abandon(w, ctx.Err())
		}
		return fail(err)
	}
	if res.Kind != wager.KindRefund {
		return fail(fmt.Errorf("%w: refund %s produced %s", wager.ErrUnexpectedResult, reply.Signature, res.Tag))
	}
	w.Outcome = res.ToOutcome()
	if err := o.advance(ctx, w, wager.StateRefunded); err != nil {
		return w, err
	}
	return w, nil
}

func (o *Orchestrator) settleRequest(w *wager.Wager) signer.SettleRequest {
	return signer.SettleRequest{
		Player:     w.Player,
		Randomness: w.RandomnessRef,
		Wager:      w.WagerAccountRef,
		Vault:      o.static.Vault,
		Treasury:   o.static.Treasury,
		Config:     o.static.Config,
	}
}

// treasury busca o treasury do oracle no network state, uma vez por processo
func (o *Orchestrator) treasury(ctx context.Context) (ledger.PublicKey, error) {
	o.treasuryMu.Lock()
	defer o.treasuryMu.Unlock()
	if o.vrfTreasury != nil {
		return *o.vrfTreasury, nil
	}
	ns, err := oracle.FetchNetworkState(ctx, o.ledger, o.static.NetworkState)
	if err != nil {
		return ledger.PublicKey{}, err
	}
	o.vrfTreasury = &ns.Treasury
	return ns.Treasury, nil
}

func (o *Orchestrator) advance(ctx context.Context, w *wager.Wager, to wager.State) error {
	tr, err := w.Advance(to, o.now())
	if err != nil {
		return err
	}
	o.wagerLog(w).Info("wager transition", zap.String("from", string(tr.From)), zap.String("to", string(tr.To)))
	o.notify(ctx, w, tr)
	return nil
}

// fail registra FAILED e devolve o StepError correspondente
func (o *Orchestrator) fail(ctx context.Context, w *wager.Wager, step string, reason wager.FailureReason, cause error) error {
	se := &wager.StepError{Step: step, Reason: reason, Err: cause}
	tr, err := w.Fail(step, reason, cause, o.now())
	if err != nil {
		return errors.Join(se, err)
	}
	o.wagerLog(w).Error("wager failed",
		zap.String("from", string(tr.From)),
		zap.String("step", step),
		zap.String("reason", string(reason)),
		zap.Bool("needs_reconciliation", reason.NeedsReconciliation()),
		zap.Error(cause))
	o.notify(ctx, w, tr)
	return se
}

func (o *Orchestrator) abandon(w *wager.Wager, cause error) (*wager.Wager, error) {
	o.wagerLog(w).Warn("wager abandoned", zap.String("state", string(w.State)), zap.Error(cause))
	return w, o.abandonErr(cause)
}

func (o *Orchestrator) abandonErr(cause error) error {
	return fmt.Errorf("%w: %v", wager.ErrAbandoned, cause)
}

// notify roda mesmo com o ctx do jogador cancelado: a transição já aconteceu
func (o *Orchestrator) notify(ctx context.Context, w *wager.Wager, tr wager.Transition) {
	if len(o.observers) == 0 {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), observerTimeout)
	defer cancel()
	snap := w.Clone()
	for _, obs := range o.observers {
		if err := obs.OnTransition(nctx, snap, tr); err != nil {
			o.wagerLog(w).Warn("observer failed", zap.String("to", string(tr.To)), zap.Error(err))
		}
	}
}

func (o *Orchestrator) wagerLog(w *wager.Wager) *zap.Logger {
	return o.log.With(zap.String("wager_id", w.ID))
}
