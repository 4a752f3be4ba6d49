package events

import "time"

// Evento publicado em "wager_failed"; o mesmo formato vai para a DLQ de órfãs
type WagerFailed struct {
	EventID             string    `json:"event_id"`
	WagerID             string    `json:"wager_id"`
	Game                string    `json:"game"`
	Player              string    `json:"player"`
	State               string    `json:"state"`
	Step                string    `json:"step,omitempty"`
	Reason              string    `json:"reason,omitempty"`
	Error               string    `json:"error,omitempty"`
	NeedsReconciliation bool      `json:"needs_reconciliation"`
	StakeLamports       uint64    `json:"stake_lamports"`
	Ts                  time.Time `json:"ts"`
}
