package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
	"github.com/radieske/vrf-wager-platform/internal/wager/signer"
)

// sim simula ledger, oracle e operador de um jogo de dados
type sim struct {
	mu sync.Mutex

	networkState ledger.PublicKey
	treasury     ledger.PublicKey

	txs       map[string]*ledger.TransactionResult
	lag       map[string]int // leituras que ainda devolvem nil
	requested map[ledger.PublicKey]time.Time
	bets      map[ledger.PublicKey]bool // contas de aposta abertas; settle fecha
	seq       int

	// comportamento
	fulfillAfter       time.Duration // < 0 nunca preenche
	roll               int
	left, right        int
	even               bool
	stake              uint64
	compensation       uint64
	logLag             int
	placeFails         bool
	rejectRequest      bool
	rejectResolve      bool
	rejectRefund       bool
	resolveEmitsRefund bool
	sendErr            error

	sends, requestCalls, resolveCalls, refundCalls int
}

func newSim() *sim {
	return &sim{
		txs:          map[string]*ledger.TransactionResult{},
		lag:          map[string]int{},
		requested:    map[ledger.PublicKey]time.Time{},
		bets:         map[ledger.PublicKey]bool{},
		treasury:     ledger.PublicKey{7, 7, 7},
		fulfillAfter: 20 * time.Millisecond,
		roll:         30,
		left:         10,
		right:        50,
		even:         true,
		stake:        1_000_000,
		compensation: 5_000,
	}
}

func (s *sim) addTx(sig string, res *ledger.TransactionResult) {
	s.txs[sig] = res
	s.lag[sig] = s.logLag
}

func (s *sim) GetLatestBlockhash(context.Context, ledger.Commitment) (ledger.Hash, error) {
	return ledger.Hash{9, 9}, nil
}

func (s *sim) SendTransaction(_ context.Context, raw []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	if s.sendErr != nil {
		return "", s.sendErr
	}
	if len(raw) < 1+ledger.SignatureLength {
		return "", errors.New("short transaction")
	}
	sig := base58.Encode(raw[1 : 1+ledger.SignatureLength])
	res := &ledger.TransactionResult{Slot: 1, Logs: []string{"Program log: Instruction: PlaceBet"}}
	if s.placeFails {
		res.Err = json.RawMessage(`{"InstructionError":[0,{"Custom":6001}]}`)
	}
	s.txs[sig] = res
	return sig, nil
}

func (s *sim) GetTransaction(_ context.Context, sig string, _ ledger.Commitment) (*ledger.TransactionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.txs[sig]
	if !ok {
		return nil, nil
	}
	if s.lag[sig] > 0 {
		s.lag[sig]--
		return nil, nil
	}
	return res, nil
}

func (s *sim) GetAccountInfo(_ context.Context, pk ledger.PublicKey, _ ledger.Commitment) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pk == s.networkState {
		data := append([]byte{}, ledger.AccountDiscriminator("NetworkState")...)
		data = append(data, make([]byte, 32)...)
		data = append(data, s.treasury[:]...)
		return &ledger.Account{Lamports: 1, Data: data}, nil
	}
	if s.bets[pk] {
		return &ledger.Account{Lamports: s.stake, Data: ledger.AccountDiscriminator("Bet")}, nil
	}
	at, ok := s.requested[pk]
	if !ok {
		return nil, nil
	}
	fulfilled := s.fulfillAfter >= 0 && time.Since(at) >= s.fulfillAfter
	data := append([]byte{}, ledger.AccountDiscriminator("RandomnessV2")...)
	if !fulfilled {
		data = append(data, 0)
		data = append(data, make([]byte, 64)...)
	} else {
		data = append(data, 1)
		data = append(data, make([]byte, 64)...)
		rnd := make([]byte, 64)
		rnd[0] = byte(s.roll)
		data = append(data, rnd...)
	}
	return &ledger.Account{Lamports: 1, Data: data}, nil
}

// openBet coloca a conta da aposta no ledger
func (s *sim) openBet(ref ledger.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[ref] = true
}

// markRequested coloca a conta de randomness no ledger
func (s *sim) markRequested(ref ledger.PublicKey, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requested[ref] = at
}

func (s *sim) nextSig(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *sim) RequestRandomness(_ context.Context, r signer.RandomnessRequest) (signer.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestCalls++
	if s.rejectRequest {
		return signer.Reply{}, fmt.Errorf("%w: insufficient funds for oracle fee", wager.ErrSignerRejected)
	}
	if r.VRFTreasury != s.treasury {
		return signer.Reply{}, fmt.Errorf("%w: wrong treasury", wager.ErrSignerRejected)
	}
	s.requested[r.Randomness] = time.Now()
	sig := s.nextSig("request")
	s.addTx(sig, &ledger.TransactionResult{Logs: []string{"Program log: Instruction: RequestVrfAgent"}})
	return signer.Reply{Signature: sig}, nil
}

func (s *sim) Resolve(_ context.Context, r signer.SettleRequest) (signer.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveCalls++
	if s.rejectResolve {
		return signer.Reply{}, fmt.Errorf("%w: bet not fulfilled", wager.ErrSignerRejected)
	}
	delete(s.bets, r.Wager)
	sig := s.nextSig("resolve")
	if s.resolveEmitsRefund {
		s.addTx(sig, &ledger.TransactionResult{Logs: []string{s.refundLine(r.Player)}})
		return signer.Reply{Signature: sig}, nil
	}
	win := s.roll >= s.left && s.roll <= s.right && (s.roll%2 == 0) == s.even
	var payout uint64
	if win {
		payout = s.stake * 196 / 100
	}
	line := fmt.Sprintf(`Program log: DICE_RESULT: {"number":%d,"left":%d,"right":%d,"even":%t,"payout_net":%d}`,
		s.roll, s.left, s.right, s.even, payout)
	s.addTx(sig, &ledger.TransactionResult{Logs: []string{"Program log: Instruction: ResolveBet", line}})
	return signer.Reply{Signature: sig}, nil
}

func (s *sim) Refund(_ context.Context, r signer.SettleRequest) (signer.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refundCalls++
	if s.rejectRefund {
		return signer.Reply{}, fmt.Errorf("%w: vault locked", wager.ErrSignerRejected)
	}
	delete(s.bets, r.Wager)
	sig := s.nextSig("refund")
	s.addTx(sig, &ledger.TransactionResult{Logs: []string{s.refundLine(r.Player)}})
	return signer.Reply{Signature: sig}, nil
}

func (s *sim) refundLine(player ledger.PublicKey) string {
	return fmt.Sprintf(`Program log: REFUND_RESULT: {"player":"%s","bet_amount":%d,"compensation":%d}`,
		player, s.stake, s.compensation)
}

func (s *sim) counts() (requests, resolves, refunds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCalls, s.resolveCalls, s.refundCalls
}
