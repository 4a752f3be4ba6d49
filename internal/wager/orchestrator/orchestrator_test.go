package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/games"
	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/shared/config"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

var vrfProgram = ledger.MustPublicKey("VRFzZoJdhFWL8rkvu87LpKM3RbcVezpMEc6X5GVDr7y")

// policy com os mesmos formatos da produção, em milissegundos
func testPolicy() config.Policy {
	return config.Policy{
		AccountPoll:       time.Millisecond,
		AccountTimeout:    200 * time.Millisecond,
		FastPathTimeout:   5 * time.Millisecond,
		FulfillPoll:       time.Millisecond,
		FulfillTimeout:    80 * time.Millisecond,
		ConfirmPoll:       time.Millisecond,
		ConfirmTimeout:    100 * time.Millisecond,
		ParseBase:         time.Millisecond,
		ParseMultiplier:   1.5,
		ParseCap:          4 * time.Millisecond,
		ParseAttempts:     5,
		ReconcileGrace:    time.Minute,
		ReconcileInterval: time.Second,
	}
}

// recorder guarda as transições vistas pelos observadores
type recorder struct {
	mu     sync.Mutex
	states []wager.State
}

func (r *recorder) OnTransition(_ context.Context, _ *wager.Wager, tr wager.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, tr.To)
	return nil
}

func (r *recorder) seen() []wager.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wager.State(nil), r.states...)
}

type fixture struct {
	sim    *sim
	orch   *Orchestrator
	rec    *recorder
	player *ledger.Keypair
}

func setup(t *testing.T, tweak func(*sim, *config.Policy)) *fixture {
	t.Helper()
	s := newSim()
	p := testPolicy()
	if tweak != nil {
		tweak(s, &p)
	}

	catalog, err := games.LoadCatalog("")
	require.NoError(t, err)
	dice, err := catalog.Game("dice")
	require.NoError(t, err)

	rec := &recorder{}
	o, err := New(Deps{
		Game:       dice,
		Ledger:     s,
		Signer:     s,
		VRFProgram: vrfProgram,
		Policy:     p,
		Log:        zap.NewNop(),
		Observers:  []Observer{rec},
	})
	require.NoError(t, err)
	s.networkState = o.Static().NetworkState

	player, err := ledger.GenerateKeypair()
	require.NoError(t, err)
	return &fixture{sim: s, orch: o, rec: rec, player: player}
}

func (f *fixture) play(ctx context.Context) (*wager.Wager, error) {
	return f.orch.Play(ctx, PlayRequest{
		Wallet: f.player,
		Stake:  1_000_000,
		Params: json.RawMessage(`{"left":10,"right":50,"parity":"even"}`),
	})
}

// assertMonotonic: sequência é subsequência ordenada do caminho resolve ou do caminho refund
func assertMonotonic(t *testing.T, states []wager.State) {
	t.Helper()
	resolved := []wager.State{wager.StatePlaced, wager.StateRandomnessRequested, wager.StateFulfilled, wager.StateResolved}
	refunded := []wager.State{wager.StatePlaced, wager.StateRandomnessRequested, wager.StateTimedOut, wager.StateRefunded}
	isSubseq := func(path []wager.State) bool {
		i := 0
		for _, s := range states {
			if s == wager.StateFailed {
				continue
			}
			for i < len(path) && path[i] != s {
				i++
			}
			if i == len(path) {
				return false
			}
			i++
		}
		return true
	}
	assert.True(t, isSubseq(resolved) || isSubseq(refunded), "non monotonic: %v", states)
	var sawResolved, sawRefunded bool
	for _, s := range states {
		sawResolved = sawResolved || s == wager.StateResolved
		sawRefunded = sawRefunded || s == wager.StateRefunded
	}
	assert.False(t, sawResolved && sawRefunded)
}

func TestHappyPathWin(t *testing.T) {
	f := setup(t, nil)
	w, err := f.play(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wager.StateResolved, w.State)
	require.NotNil(t, w.Outcome)
	assert.Equal(t, wager.KindOutcome, w.Outcome.Kind)
	assert.Greater(t, w.Outcome.PayoutNet, uint64(0))
	assert.Equal(t, []wager.State{wager.StatePlaced, wager.StateRandomnessRequested, wager.StateFulfilled, wager.StateResolved}, w.States())
	assert.Equal(t, w.States(), f.rec.seen())
	assertMonotonic(t, w.States())

	requests, resolves, refunds := f.sim.counts()
	assert.Equal(t, 1, requests)
	assert.Equal(t, 1, resolves)
	assert.Zero(t, refunds)
	assert.NotEmpty(t, w.PlaceSig)
	assert.NotEmpty(t, w.RequestSig)
	assert.Equal(t, w.Outcome.Signature, w.SettleSig)
	assert.Equal(t, f.player.PublicKey(), w.Player)
}

func TestOutOfRangeLoss(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.roll = 75 })
	w, err := f.play(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wager.StateResolved, w.State)
	assert.Zero(t, w.Outcome.PayoutNet)
	assert.JSONEq(t, "75", string(w.Outcome.Fields["number"]))
}

func TestOracleTimeoutRefundsExactlyOnce(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.fulfillAfter = -1 })
	w, err := f.play(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wager.StateRefunded, w.State)
	assert.Equal(t, []wager.State{wager.StatePlaced, wager.StateRandomnessRequested, wager.StateTimedOut, wager.StateRefunded}, w.States())
	require.NotNil(t, w.Outcome)
	assert.Equal(t, wager.KindRefund, w.Outcome.Kind)
	assert.GreaterOrEqual(t, w.Outcome.Returned(), w.Stake)

	_, resolves, refunds := f.sim.counts()
	assert.Equal(t, 1, refunds)
	assert.Zero(t, resolves)
	assertMonotonic(t, w.States())
}

func TestSignerRejectsResolve(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.rejectResolve = true })
	w, err := f.play(context.Background())

	var se *wager.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, wager.ReasonResolveOrParseFailed, se.Reason)
	assert.Equal(t, StepResolve, se.Step)
	assert.ErrorIs(t, err, wager.ErrSignerRejected)

	assert.Equal(t, wager.StateFailed, w.State)
	assert.NotContains(t, w.States(), wager.StateResolved)
	require.NotNil(t, w.Failure)
	assert.Contains(t, w.Failure.Error, "bet not fulfilled")
	_, _, refunds := f.sim.counts()
	assert.Zero(t, refunds)
}

func TestSignerRejectsRequest(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.rejectRequest = true })
	w, err := f.play(context.Background())

	var se *wager.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, wager.ReasonRequestRejected, se.Reason)
	assert.Equal(t, []wager.State{wager.StatePlaced, wager.StateFailed}, w.States())
	assert.True(t, w.Failure.Reason.NeedsReconciliation())

	requests, resolves, refunds := f.sim.counts()
	assert.Equal(t, 1, requests)
	assert.Zero(t, resolves+refunds)
}

func TestRefundRejected(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) {
		s.fulfillAfter = -1
		s.rejectRefund = true
	})
	w, err := f.play(context.Background())

	var se *wager.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, wager.ReasonRefundFailed, se.Reason)
	assert.Equal(t, wager.StateFailed, w.State)
	_, _, refunds := f.sim.counts()
	assert.Equal(t, 1, refunds)
}

func TestPlaceStakeRejected(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.placeFails = true })
	w, err := f.play(context.Background())

	var se *wager.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, wager.ReasonPlaceStakeRejected, se.Reason)
	assert.Equal(t, []wager.State{wager.StateFailed}, w.States())
	assert.False(t, w.Failure.Reason.NeedsReconciliation())
	requests, _, _ := f.sim.counts()
	assert.Zero(t, requests)
}

func TestPlaceStakeSubmitError(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.sendErr = errors.New("blockhash not found") })
	w, err := f.play(context.Background())
	var se *wager.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, wager.ReasonPlaceStakeRejected, se.Reason)
	assert.Equal(t, wager.StateFailed, w.State)
	assert.Equal(t, StepPlaceStake, w.Failure.Step)
}

func TestValidationHappensBeforeLedger(t *testing.T) {
	f := setup(t, nil)
	for _, req := range []PlayRequest{
		{Wallet: f.player, Stake: 1_000_000, Params: json.RawMessage(`{"left":0,"right":50,"parity":"even"}`)},
		{Wallet: f.player, Stake: 0, Params: json.RawMessage(`{"left":10,"right":50,"parity":"even"}`)},
		{Wallet: nil, Stake: 1_000_000, Params: json.RawMessage(`{"left":10,"right":50,"parity":"even"}`)},
	} {
		w, err := f.orch.Play(context.Background(), req)
		assert.Nil(t, w)
		assert.ErrorIs(t, err, wager.ErrValidation)
	}
	assert.Zero(t, f.sim.sends)
	assert.Empty(t, f.rec.seen())
}

func TestCancellationStopsPolling(t *testing.T) {
	f := setup(t, func(s *sim, p *config.Policy) {
		s.fulfillAfter = -1
		p.FulfillTimeout = time.Hour
		p.ReconcileGrace = 2 * time.Hour
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	w, err := f.play(ctx)
	assert.ErrorIs(t, err, wager.ErrAbandoned)
	require.NotNil(t, w)
	assert.Equal(t, wager.StateRandomnessRequested, w.State)
	_, resolves, refunds := f.sim.counts()
	assert.Zero(t, resolves+refunds)
}

func TestResolveYieldingRefundFails(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.resolveEmitsRefund = true })
	w, err := f.play(context.Background())
	assert.ErrorIs(t, err, wager.ErrUnexpectedResult)
	assert.Equal(t, wager.StateFailed, w.State)
	assert.Equal(t, wager.ReasonResolveOrParseFailed, w.Failure.Reason)
}

func TestResultLogLag(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.logLag = 3 })
	w, err := f.play(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wager.StateResolved, w.State)
}

func TestUnavailableResultFails(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.logLag = 1000 })
	w, err := f.play(context.Background())
	assert.ErrorIs(t, err, wager.ErrResultNotFound)
	assert.Equal(t, wager.ReasonResolveOrParseFailed, w.Failure.Reason)
}

func TestObserverErrorsDoNotChangeFlow(t *testing.T) {
	f := setup(t, nil)
	f.orch.AddObserver(ObserverFunc(func(context.Context, *wager.Wager, wager.Transition) error {
		return errors.New("db down")
	}))
	w, err := f.play(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wager.StateResolved, w.State)
}

func TestManyAttemptsAreIndependent(t *testing.T) {
	f := setup(t, nil)
	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := f.play(context.Background())
			errs[i] = err
			if w != nil {
				ids[i] = w.RandomnessRef.String()
			}
		}(i)
	}
	wg.Wait()
	seen := map[string]bool{}
	for i, id := range ids {
		require.NoError(t, errs[i])
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func resumable(t *testing.T, f *fixture, states ...wager.State) *wager.Wager {
	t.Helper()
	seed, err := ledger.GenerateKeypair()
	require.NoError(t, err)
	addrs, err := f.orch.Deriver().Derive(seed.PublicKey())
	require.NoError(t, err)
	w := wager.New("dice", f.player.PublicKey(), seed.PublicKey(), 1_000_000,
		json.RawMessage(`{"left":10,"right":50,"parity":"even"}`), addrs, time.Now().Add(-time.Hour))
	for _, s := range states {
		_, err := w.Advance(s, time.Now().Add(-time.Hour))
		require.NoError(t, err)
	}
	return w
}

func TestResumeRequestedAndFulfilled(t *testing.T) {
	f := setup(t, nil)
	w := resumable(t, f, wager.StatePlaced, wager.StateRandomnessRequested)
	f.sim.markRequested(w.RandomnessRef, time.Now().Add(-time.Hour))

	w, err := f.orch.Resume(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, wager.StateResolved, w.State)
}

func TestResumeRequestedNeverFulfilledRefunds(t *testing.T) {
	f := setup(t, func(s *sim, _ *config.Policy) { s.fulfillAfter = -1 })
	w := resumable(t, f, wager.StatePlaced, wager.StateRandomnessRequested)
	f.sim.markRequested(w.RandomnessRef, time.Now().Add(-time.Hour))

	w, err := f.orch.Resume(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, wager.StateRefunded, w.State)
	assert.Equal(t, wager.StateTimedOut, w.History[len(w.History)-2].To)
	_, _, refunds := f.sim.counts()
	assert.Equal(t, 1, refunds)
}

func TestResumePlacedWithoutRequest(t *testing.T) {
	f := setup(t, nil)
	w := resumable(t, f, wager.StatePlaced)

	w, err := f.orch.Resume(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, wager.StateResolved, w.State)
	requests, _, _ := f.sim.counts()
	assert.Equal(t, 1, requests)
}

func TestResumePlacedWithUnrecordedRequest(t *testing.T) {
	f := setup(t, nil)
	w := resumable(t, f, wager.StatePlaced)
	f.sim.markRequested(w.RandomnessRef, time.Now().Add(-time.Hour))

	w, err := f.orch.Resume(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, wager.StateResolved, w.State)
	requests, _, _ := f.sim.counts()
	assert.Zero(t, requests)
}

func TestResumeFulfilledResolvesOpenBet(t *testing.T) {
	f := setup(t, nil)
	w := resumable(t, f, wager.StatePlaced, wager.StateRandomnessRequested, wager.StateFulfilled)
	f.sim.openBet(w.WagerAccountRef)

	w, err := f.orch.Resume(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, wager.StateResolved, w.State)
	_, resolves, _ := f.sim.counts()
	assert.Equal(t, 1, resolves)
}

func TestResumeTimedOutRefundsOpenBet(t *testing.T) {
	f := setup(t, nil)
	w := resumable(t, f, wager.StatePlaced, wager.StateRandomnessRequested, wager.StateTimedOut)
	f.sim.openBet(w.WagerAccountRef)

	w, err := f.orch.Resume(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, wager.StateRefunded, w.State)
	_, _, refunds := f.sim.counts()
	assert.Equal(t, 1, refunds)
}

func TestResumeDoesNotSettleClosedBetAgain(t *testing.T) {
	for _, last := range []wager.State{wager.StateFulfilled, wager.StateTimedOut} {
		t.Run(string(last), func(t *testing.T) {
			f := setup(t, nil)
			w := resumable(t, f, wager.StatePlaced, wager.StateRandomnessRequested, last)

			got, err := f.orch.Resume(context.Background(), w)
			assert.ErrorIs(t, err, wager.ErrSettlementUnrecorded)
			assert.Equal(t, last, got.State)
			assert.Nil(t, got.Failure)
			_, resolves, refunds := f.sim.counts()
			assert.Zero(t, resolves)
			assert.Zero(t, refunds)
		})
	}
}

func TestResumeTerminalAndForeign(t *testing.T) {
	f := setup(t, nil)
	w := resumable(t, f, wager.StatePlaced, wager.StateFailed)
	got, err := f.orch.Resume(context.Background(), w)
	require.NoError(t, err)
	assert.Same(t, w, got)

	foreign := resumable(t, f, wager.StatePlaced)
	foreign.Game = "wheel"
	_, err = f.orch.Resume(context.Background(), foreign)
	assert.ErrorIs(t, err, wager.ErrValidation)
}
