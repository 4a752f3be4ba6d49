package games

import (
	"encoding/json"
	"fmt"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// Wheel não tem escolha: o setor sorteado define o multiplicador
type Wheel struct{ profile Profile }

func (w *Wheel) Profile() Profile { return w.profile }

func (w *Wheel) ValidateParams(raw json.RawMessage) error {
	if !emptyParams(raw) {
		return wager.Validation("wheel takes no params")
	}
	return nil
}

// place_bet(amount: u64)
func (w *Wheel) PlaceBetArgs(stake uint64, raw json.RawMessage) ([]byte, error) {
	if err := w.ValidateParams(raw); err != nil {
		return nil, err
	}
	return ledger.NewInstructionData("place_bet").U64(stake).Bytes(), nil
}

func (w *Wheel) Summarize(o *wager.Outcome) string {
	if o == nil {
		return "wheel: no outcome"
	}
	if o.Kind == wager.KindRefund {
		return "wheel: " + settleLine(o)
	}
	n, _ := field[int](o, "number")
	bps, _ := field[int](o, "multiplier_bps")
	return fmt.Sprintf("wheel: sector %d x%.2f, %s", n, float64(bps)/10000, settleLine(o))
}
