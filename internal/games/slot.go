package games

import (
	"encoding/json"
	"fmt"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// Slot segue o mesmo contrato do wheel; fica desabilitado até existir programa no ledger
type Slot struct{ profile Profile }

func (s *Slot) Profile() Profile { return s.profile }

func (s *Slot) ValidateParams(raw json.RawMessage) error {
	if !emptyParams(raw) {
		return wager.Validation("slot takes no params")
	}
	return nil
}

func (s *Slot) PlaceBetArgs(stake uint64, raw json.RawMessage) ([]byte, error) {
	if err := s.ValidateParams(raw); err != nil {
		return nil, err
	}
	return ledger.NewInstructionData("place_bet").U64(stake).Bytes(), nil
}

func (s *Slot) Summarize(o *wager.Outcome) string {
	if o == nil {
		return "slot: no outcome"
	}
	if o.Kind == wager.KindRefund {
		return "slot: " + settleLine(o)
	}
	reels, _ := field[[]int](o, "reels")
	return fmt.Sprintf("slot: reels %v, %s", reels, settleLine(o))
}
