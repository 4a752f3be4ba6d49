package topics

const (
	// Ciclo de vida da aposta
	WagerPlaced  = "wager_placed"
	WagerSettled = "wager_settled"
	WagerFailed  = "wager_failed"

	// DLQs
	WagerOrphansDLQ = "wager_orphans_dlq"
)
