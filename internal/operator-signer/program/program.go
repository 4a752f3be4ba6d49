package program

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/shared/retry"
)

var ErrTransactionFailed = errors.New("transaction failed on ledger")

// Ledger é o que o signer usa do ledger client
type Ledger interface {
	GetLatestBlockhash(ctx context.Context, commitment ledger.Commitment) (ledger.Hash, error)
	SendTransaction(ctx context.Context, raw []byte) (string, error)
	GetTransaction(ctx context.Context, sig string, commitment ledger.Commitment) (*ledger.TransactionResult, error)
}

// RequestAccounts são as contas de request_vrf_agent
type RequestAccounts struct {
	Seed         ledger.PublicKey
	Randomness   ledger.PublicKey
	NetworkState ledger.PublicKey
	VRFTreasury  ledger.PublicKey
	VRFProgram   ledger.PublicKey
	Config       ledger.PublicKey
}

// SettleAccounts servem a resolve_bet e refund_bet_from_vault (refund ignora Treasury)
type SettleAccounts struct {
	Player     ledger.PublicKey
	Randomness ledger.PublicKey
	Wager      ledger.PublicKey
	Vault      ledger.PublicKey
	Treasury   ledger.PublicKey
	Config     ledger.PublicKey
}

// Receipt é a transação confirmada com seus logs
type Receipt struct {
	Signature string
	Logs      []string
}

// TxError é a execução rejeitada pelo programa; carrega os logs para diagnóstico
type TxError struct {
	Signature string
	Logs      []string
	Detail    string
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrTransactionFailed, e.Signature, e.Detail)
}

func (e *TxError) Unwrap() error { return ErrTransactionFailed }

// Program submete as instruções do operador ao programa do jogo
type Program struct {
	ID             ledger.PublicKey
	Operator       ledger.Signer
	Ledger         Ledger
	ConfirmPoll    time.Duration
	ConfirmTimeout time.Duration
	Log            *zap.Logger
}

func New(id ledger.PublicKey, operator ledger.Signer, l Ledger, log *zap.Logger) *Program {
	return &Program{
		ID:             id,
		Operator:       operator,
		Ledger:         l,
		ConfirmPoll:    700 * time.Millisecond,
		ConfirmTimeout: 60 * time.Second,
		Log:            log,
	}
}

func RequestVRFAgent(program, operator ledger.PublicKey, a RequestAccounts) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: program,
		Accounts: []ledger.AccountMeta{
			ledger.WritableSigner(operator),
			ledger.Writable(a.Randomness),
			ledger.Writable(a.NetworkState),
			ledger.Writable(a.VRFTreasury),
			ledger.Readonly(a.VRFProgram),
			ledger.Readonly(a.Config),
			ledger.Readonly(ledger.SystemProgramID),
		},
		Data: ledger.NewInstructionData("request_vrf_agent").Fixed(a.Seed.Bytes()).Bytes(),
	}
}

func ResolveBet(program, operator ledger.PublicKey, a SettleAccounts) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: program,
		Accounts: []ledger.AccountMeta{
			ledger.WritableSigner(operator),
			ledger.Readonly(a.Randomness),
			ledger.Writable(a.Wager),
			ledger.Writable(a.Vault),
			ledger.Writable(a.Treasury),
			ledger.Writable(a.Player),
			ledger.Readonly(a.Config),
			ledger.Readonly(ledger.SystemProgramID),
		},
		Data: ledger.NewInstructionData("resolve_bet").Bytes(),
	}
}

func RefundBetFromVault(program, operator ledger.PublicKey, a SettleAccounts) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: program,
		Accounts: []ledger.AccountMeta{
			ledger.WritableSigner(operator),
			ledger.Readonly(a.Randomness),
			ledger.Writable(a.Wager),
			ledger.Writable(a.Vault),
			ledger.Writable(a.Player),
			ledger.Readonly(a.Config),
			ledger.Readonly(ledger.SystemProgramID),
		},
		Data: ledger.NewInstructionData("refund_bet_from_vault").Bytes(),
	}
}

func (p *Program) RequestRandomness(ctx context.Context, a RequestAccounts) (Receipt, error) {
	return p.submit(ctx, "request_vrf_agent", RequestVRFAgent(p.ID, p.Operator.PublicKey(), a))
}

func (p *Program) Resolve(ctx context.Context, a SettleAccounts) (Receipt, error) {
	return p.submit(ctx, "resolve_bet", ResolveBet(p.ID, p.Operator.PublicKey(), a))
}

func (p *Program) Refund(ctx context.Context, a SettleAccounts) (Receipt, error) {
	return p.submit(ctx, "refund_bet_from_vault", RefundBetFromVault(p.ID, p.Operator.PublicKey(), a))
}

// submit assina com o operador, envia e só responde com a transação confirmada
func (p *Program) submit(ctx context.Context, method string, ix ledger.Instruction) (Receipt, error) {
	bh, err := p.Ledger.GetLatestBlockhash(ctx, ledger.CommitmentConfirmed)
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: blockhash: %w", method, err)
	}
	tx, err := ledger.NewTransaction(p.Operator.PublicKey(), bh, ix)
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", method, err)
	}
	if err := tx.Sign(p.Operator); err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", method, err)
	}
	raw, err := tx.Serialize()
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", method, err)
	}
	sig, err := p.Ledger.SendTransaction(ctx, raw)
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: send: %w", method, err)
	}
	if sig == "" {
		sig = tx.Signature()
	}
	p.Log.Info("transaction sent", zap.String("method", method), zap.String("signature", sig))

	var res *ledger.TransactionResult
	err = retry.Poll(ctx, p.ConfirmPoll, p.ConfirmTimeout, func(ctx context.Context) (bool, error) {
		r, err := p.Ledger.GetTransaction(ctx, sig, ledger.CommitmentConfirmed)
		if err != nil {
			p.Log.Debug("confirmation poll failed", zap.String("signature", sig), zap.Error(err))
			return false, nil
		}
		res = r
		return r != nil, nil
	})
	if err != nil {
		return Receipt{Signature: sig}, fmt.Errorf("%s: confirm %s: %w", method, sig, err)
	}
	if res.Failed() {
		return Receipt{Signature: sig, Logs: res.Logs}, &TxError{Signature: sig, Logs: res.Logs, Detail: string(res.Err)}
	}
	return Receipt{Signature: sig, Logs: res.Logs}, nil
}
