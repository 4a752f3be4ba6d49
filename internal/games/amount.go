package games

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// LamportsPerSOL é a unidade base do ledger
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOL = decimal.New(1, 9)

// ParseSOL converte "0.25" em lamports; frações abaixo de 1 lamport são rejeitadas
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, wager.Validation("amount %q: %v", s, err)
	}
	if !d.IsPositive() {
		return 0, wager.Validation("amount %q must be positive", s)
	}
	l := d.Mul(lamportsPerSOL)
	if !l.IsInteger() {
		return 0, wager.Validation("amount %q has sub-lamport precision", s)
	}
	bi := l.BigInt()
	if !bi.IsUint64() {
		return 0, wager.Validation("amount %q overflows", s)
	}
	return bi.Uint64(), nil
}

// FormatLamports devolve o valor em SOL sem zeros à direita
func FormatLamports(l uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(l), -9).String()
}

// FormatSigned formata diferenças (ganho líquido pode ser negativo)
func FormatSigned(returned, stake uint64) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(returned), -9).
		Sub(decimal.NewFromBigInt(new(big.Int).SetUint64(stake), -9))
	if d.IsPositive() {
		return fmt.Sprintf("+%s", d.String())
	}
	return d.String()
}
