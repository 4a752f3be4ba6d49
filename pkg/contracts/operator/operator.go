package operator

// Rotas do operator signer
const (
	PathRequest = "/agent/request"
	PathResolve = "/agent/resolve"
	PathRefund  = "/agent/refund"
	PathHealth  = "/health"
)

// RequestRandomnessRequest pede ao operador para abrir a requisição de randomness.
// SeedPubkey aceita base58 (chave) ou base64 de 32 bytes.
type RequestRandomnessRequest struct {
	SeedPubkey   string `json:"seedPubkey"`
	RandomPda    string `json:"randomPda"`
	NetworkState string `json:"networkState"`
	VRFTreasury  string `json:"vrfTreasury"`
	VRFProgram   string `json:"vrfProgram"`
	ConfigPda    string `json:"configPda"`
}

// ResolveRequest liquida a aposta após o fulfillment
type ResolveRequest struct {
	PlayerPubkey string `json:"playerPubkey"`
	RandomPda    string `json:"randomPda"`
	BetPda       string `json:"betPda"`
	VaultPda     string `json:"vaultPda"`
	TreasuryPda  string `json:"treasuryPda"`
	ConfigPda    string `json:"configPda"`
}

// RefundRequest devolve o stake a partir do vault
type RefundRequest struct {
	PlayerPubkey string `json:"playerPubkey"`
	RandomPda    string `json:"randomPda"`
	BetPda       string `json:"betPda"`
	VaultPda     string `json:"vaultPda"`
	ConfigPda    string `json:"configPda"`
}

// Response é a resposta comum das três operações
type Response struct {
	OK    bool     `json:"ok"`
	TxSig string   `json:"txSig,omitempty"`
	Logs  []string `json:"logs,omitempty"`
	Error string   `json:"error,omitempty"`
}

// HealthResponse identifica a chave do operador e o programa servido
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Agent   string `json:"agent"`
	Program string `json:"program"`
}
