package result

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/shared/retry"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// TransactionSource é a parte do ledger client que o parser usa
type TransactionSource interface {
	GetTransaction(ctx context.Context, sig string, commitment ledger.Commitment) (*ledger.TransactionResult, error)
}

// Parser lê o resultado estruturado dos logs de uma transação
type Parser struct {
	Ledger  TransactionSource
	Tags    Tags
	Backoff retry.Backoff
	Log     *zap.Logger
}

func NewParser(src TransactionSource, tags Tags, b retry.Backoff, log *zap.Logger) *Parser {
	return &Parser{Ledger: src, Tags: tags, Backoff: b, Log: log}
}

// Parse tenta em finalized com backoff e, esgotadas as tentativas, uma vez em confirmed
func (p *Parser) Parse(ctx context.Context, sig string) (Result, error) {
	for i, d := range p.Backoff.Delays() {
		res, found, err := p.attempt(ctx, sig, ledger.CommitmentFinalized)
		if found || err != nil {
			return res, err
		}
		p.Log.Debug("result not available yet",
			zap.String("signature", sig), zap.Int("attempt", i+1), zap.Duration("next", d))
		if err := retry.Sleep(ctx, d); err != nil {
			return Result{}, err
		}
	}

	res, found, err := p.attempt(ctx, sig, ledger.CommitmentConfirmed)
	if found || err != nil {
		return res, err
	}
	return Result{}, fmt.Errorf("%w: transaction %s not available", wager.ErrResultNotFound, sig)
}

// attempt devolve found=true quando a transação existe (com ou sem tag)
func (p *Parser) attempt(ctx context.Context, sig string, commitment ledger.Commitment) (Result, bool, error) {
	tx, err := p.Ledger.GetTransaction(ctx, sig, commitment)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, false, ctx.Err()
		}
		// erro de rede durante o polling conta como "ainda não disponível"
		p.Log.Warn("get transaction failed", zap.String("signature", sig), zap.Error(err))
		return Result{}, false, nil
	}
	if tx == nil {
		return Result{}, false, nil
	}

	res, found, err := ScanLogs(tx.Logs, p.Tags)
	if err != nil {
		return Result{}, true, err
	}
	if !found {
		// transação finalizada sem nenhum tag: formato inesperado, não adianta tentar de novo
		msg := "no result tag in logs"
		if tx.Failed() {
			msg = fmt.Sprintf("transaction failed with %s", tx.Err)
		}
		return Result{}, true, fmt.Errorf("%w: %s: %s", wager.ErrResultNotFound, sig, msg)
	}
	res.Signature = sig
	return res, true, nil
}
