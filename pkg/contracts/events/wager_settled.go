package events

import "time"

// Evento publicado em "wager_settled" quando a aposta termina em RESOLVED ou REFUNDED
type WagerSettled struct {
	EventID          string    `json:"event_id"`
	WagerID          string    `json:"wager_id"`
	Game             string    `json:"game"`
	Player           string    `json:"player"`
	State            string    `json:"state"`
	Kind             string    `json:"kind"` // "OUTCOME" | "REFUND"
	StakeLamports    uint64    `json:"stake_lamports"`
	ReturnedLamports uint64    `json:"returned_lamports"`
	Net              string    `json:"net"` // SOL com sinal, "+0.96" / "-1"
	SettleSig        string    `json:"settle_sig"`
	Ts               time.Time `json:"ts"`
}
