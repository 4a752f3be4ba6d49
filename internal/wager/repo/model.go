package repo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// row é a aposta como persistida no Postgres
type row struct {
	ID              string
	Game            string
	Player          string
	Stake           string // NUMERIC(20,0): u64 não cabe em BIGINT
	Params          []byte
	Seed            string
	RandomnessRef   string
	WagerAccountRef string
	State           string
	Outcome         []byte
	Failure         []byte
	PlaceSig        string
	RequestSig      string
	SettleSig       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func toRow(w *wager.Wager) (row, error) {
	r := row{
		ID:              w.ID,
		Game:            w.Game,
		Player:          w.Player.String(),
		Stake:           strconv.FormatUint(w.Stake, 10),
		Seed:            w.Seed.String(),
		RandomnessRef:   w.RandomnessRef.String(),
		WagerAccountRef: w.WagerAccountRef.String(),
		State:           string(w.State),
		PlaceSig:        w.PlaceSig,
		RequestSig:      w.RequestSig,
		SettleSig:       w.SettleSig,
		CreatedAt:       w.CreatedAt.UTC(),
		UpdatedAt:       w.UpdatedAt.UTC(),
	}
	if len(w.Params) > 0 {
		r.Params = w.Params
	}
	var err error
	if w.Outcome != nil {
		if r.Outcome, err = json.Marshal(w.Outcome); err != nil {
			return row{}, fmt.Errorf("encode outcome: %w", err)
		}
	}
	if w.Failure != nil {
		if r.Failure, err = json.Marshal(w.Failure); err != nil {
			return row{}, fmt.Errorf("encode failure: %w", err)
		}
	}
	return r, nil
}

func fromRow(r row, history []wager.Transition) (*wager.Wager, error) {
	stake, err := strconv.ParseUint(r.Stake, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("wager %s stake: %w", r.ID, err)
	}
	w := &wager.Wager{
		ID:         r.ID,
		Game:       r.Game,
		Stake:      stake,
		State:      wager.State(r.State),
		History:    history,
		PlaceSig:   r.PlaceSig,
		RequestSig: r.RequestSig,
		SettleSig:  r.SettleSig,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	for _, k := range []struct {
		src string
		dst *ledger.PublicKey
	}{
		{r.Player, &w.Player},
		{r.Seed, &w.Seed},
		{r.RandomnessRef, &w.RandomnessRef},
		{r.WagerAccountRef, &w.WagerAccountRef},
	} {
		pk, err := ledger.ParsePublicKey(k.src)
		if err != nil {
			return nil, fmt.Errorf("wager %s: %w", r.ID, err)
		}
		*k.dst = pk
	}
	if len(r.Params) > 0 {
		w.Params = json.RawMessage(r.Params)
	}
	if len(r.Outcome) > 0 {
		w.Outcome = &wager.Outcome{}
		if err := json.Unmarshal(r.Outcome, w.Outcome); err != nil {
			return nil, fmt.Errorf("wager %s outcome: %w", r.ID, err)
		}
	}
	if len(r.Failure) > 0 {
		w.Failure = &wager.Failure{}
		if err := json.Unmarshal(r.Failure, w.Failure); err != nil {
			return nil, fmt.Errorf("wager %s failure: %w", r.ID, err)
		}
	}
	return w, nil
}
