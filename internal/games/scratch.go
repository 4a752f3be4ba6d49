package games

import (
	"encoding/json"
	"fmt"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

const ScratchCells = 9

// ScratchParams: três células distintas da grade 3x3 (0..8)
type ScratchParams struct {
	Cells []int `json:"cells"`
}

type Scratch struct{ profile Profile }

func (s *Scratch) Profile() Profile { return s.profile }

func (s *Scratch) parse(raw json.RawMessage) ([3]uint8, error) {
	var out [3]uint8
	var p ScratchParams
	if err := decodeStrict(raw, &p); err != nil {
		return out, err
	}
	if len(p.Cells) != 3 {
		return out, wager.Validation("scratch needs exactly 3 cells, got %d", len(p.Cells))
	}
	seen := map[int]bool{}
	for i, c := range p.Cells {
		if c < 0 || c >= ScratchCells {
			return out, wager.Validation("scratch cell %d outside 0..%d", c, ScratchCells-1)
		}
		if seen[c] {
			return out, wager.Validation("scratch cell %d repeated", c)
		}
		seen[c] = true
		out[i] = uint8(c)
	}
	return out, nil
}

func (s *Scratch) ValidateParams(raw json.RawMessage) error {
	_, err := s.parse(raw)
	return err
}

// place_bet(amount: u64, choices: [u8; 3])
func (s *Scratch) PlaceBetArgs(stake uint64, raw json.RawMessage) ([]byte, error) {
	cells, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	return ledger.NewInstructionData("place_bet").U64(stake).Fixed(cells[:]).Bytes(), nil
}

func (s *Scratch) Summarize(o *wager.Outcome) string {
	if o == nil {
		return "scratch: no outcome"
	}
	if o.Kind == wager.KindRefund {
		return "scratch: " + settleLine(o)
	}
	choices, _ := field[[]int](o, "choices")
	winning, _ := field[[]int](o, "winning")
	matches, _ := field[int](o, "matches")
	return fmt.Sprintf("scratch: picked %v, winning %v, %d matches, %s", choices, winning, matches, settleLine(o))
}
