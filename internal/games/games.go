package games

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// Game é o que varia entre os jogos: parâmetros da escolha e leitura do resultado
type Game interface {
	Profile() Profile
	// ValidateParams rejeita a escolha antes de qualquer interação com o ledger
	ValidateParams(raw json.RawMessage) error
	// PlaceBetArgs monta o payload da instrução place_bet
	PlaceBetArgs(stake uint64, raw json.RawMessage) ([]byte, error)
	// Summarize descreve o resultado para o jogador
	Summarize(o *wager.Outcome) string
}

// New escolhe a variante pelo nome do perfil
func New(p Profile) (Game, error) {
	switch p.Name {
	case "dice":
		return &Dice{profile: p}, nil
	case "wheel":
		return &Wheel{profile: p}, nil
	case "scratch":
		return &Scratch{profile: p}, nil
	case "slot":
		return &Slot{profile: p}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownGame, p.Name)
}

// PlaceBetInstruction monta a instrução assinada pelo jogador que trava o stake
func PlaceBetInstruction(g Game, player ledger.PublicKey, addrs wager.Addresses, vault ledger.PublicKey, stake uint64, raw json.RawMessage) (ledger.Instruction, error) {
	program, err := g.Profile().Program()
	if err != nil {
		return ledger.Instruction{}, err
	}
	data, err := g.PlaceBetArgs(stake, raw)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: program,
		Accounts: []ledger.AccountMeta{
			ledger.WritableSigner(player),
			ledger.Readonly(addrs.RandomnessRef),
			ledger.Writable(addrs.WagerAccountRef),
			ledger.Writable(vault),
			ledger.Readonly(ledger.SystemProgramID),
		},
		Data: data,
	}, nil
}

// decodeStrict aceita só os campos conhecidos
func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return wager.Validation("params: %v", err)
	}
	return nil
}

func emptyParams(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null" || s == "{}"
}

// field lê um campo numérico do resultado; ausente vale 0
func field[T any](o *wager.Outcome, key string) (T, bool) {
	var v T
	raw, ok := o.Fields[key]
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// settleLine é o fecho comum dos resumos
func settleLine(o *wager.Outcome) string {
	if o.Kind == wager.KindRefund {
		return fmt.Sprintf("refunded %s SOL (stake %s + compensation %s)",
			FormatLamports(o.Returned()), FormatLamports(o.BetAmount), FormatLamports(o.Compensation))
	}
	if o.PayoutNet == 0 {
		return "no payout"
	}
	return fmt.Sprintf("payout %s SOL", FormatLamports(o.PayoutNet))
}
