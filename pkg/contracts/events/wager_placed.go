package events

import "time"

// Evento publicado em "wager_placed" quando o stake é confirmado no ledger
type WagerPlaced struct {
	EventID         string    `json:"event_id"`
	WagerID         string    `json:"wager_id"`
	Game            string    `json:"game"`
	Player          string    `json:"player"`
	StakeLamports   uint64    `json:"stake_lamports"`
	Stake           string    `json:"stake"` // SOL em decimal
	RandomnessRef   string    `json:"randomness_ref"`
	WagerAccountRef string    `json:"wager_account_ref"`
	PlaceSig        string    `json:"place_sig"`
	Ts              time.Time `json:"ts"`
}
