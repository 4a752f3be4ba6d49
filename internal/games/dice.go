package games

import (
	"encoding/json"
	"fmt"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

const (
	DiceMin = 1
	DiceMax = 100
)

// DiceParams: intervalo fechado [left, right] e paridade
type DiceParams struct {
	Left   int    `json:"left"`
	Right  int    `json:"right"`
	Parity string `json:"parity"` // "even" | "odd"
}

type Dice struct{ profile Profile }

func (d *Dice) Profile() Profile { return d.profile }

func (d *Dice) parse(raw json.RawMessage) (DiceParams, error) {
	var p DiceParams
	if err := decodeStrict(raw, &p); err != nil {
		return p, err
	}
	if p.Left < DiceMin || p.Right > DiceMax || p.Left > p.Right {
		return p, wager.Validation("dice range [%d,%d] outside %d..%d", p.Left, p.Right, DiceMin, DiceMax)
	}
	if p.Parity != "even" && p.Parity != "odd" {
		return p, wager.Validation("dice parity %q must be even or odd", p.Parity)
	}
	return p, nil
}

func (d *Dice) ValidateParams(raw json.RawMessage) error {
	_, err := d.parse(raw)
	return err
}

// place_bet(amount: u64, left: u8, right: u8, even: bool)
func (d *Dice) PlaceBetArgs(stake uint64, raw json.RawMessage) ([]byte, error) {
	p, err := d.parse(raw)
	if err != nil {
		return nil, err
	}
	return ledger.NewInstructionData("place_bet").
		U64(stake).
		U8(uint8(p.Left)).
		U8(uint8(p.Right)).
		Bool(p.Parity == "even").
		Bytes(), nil
}

func (d *Dice) Summarize(o *wager.Outcome) string {
	if o == nil {
		return "dice: no outcome"
	}
	if o.Kind == wager.KindRefund {
		return "dice: " + settleLine(o)
	}
	n, _ := field[int](o, "number")
	l, _ := field[int](o, "left")
	r, _ := field[int](o, "right")
	return fmt.Sprintf("dice: rolled %d on [%d,%d], %s", n, l, r, settleLine(o))
}
