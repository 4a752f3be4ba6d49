package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
	"github.com/radieske/vrf-wager-platform/pkg/contracts/operator"
)

// RandomnessRequest são as referências que o operador precisa para pedir randomness
type RandomnessRequest struct {
	Seed         ledger.PublicKey
	Randomness   ledger.PublicKey
	NetworkState ledger.PublicKey
	VRFTreasury  ledger.PublicKey
	VRFProgram   ledger.PublicKey
	Config       ledger.PublicKey
}

// SettleRequest serve para resolve e refund (refund ignora Treasury)
type SettleRequest struct {
	Player     ledger.PublicKey
	Randomness ledger.PublicKey
	Wager      ledger.PublicKey
	Vault      ledger.PublicKey
	Treasury   ledger.PublicKey
	Config     ledger.PublicKey
}

// Reply é o que o operador devolve: assinatura e logs da própria transação
type Reply struct {
	Signature string
	Logs      []string
}

// Client fala com o operator signer de um jogo. Nenhuma chamada é repetida automaticamente:
// as três operações mutam estado no ledger.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New usa um timeout folgado: o operador só responde depois de confirmar a transação
func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) RequestRandomness(ctx context.Context, r RandomnessRequest) (Reply, error) {
	return c.post(ctx, operator.PathRequest, operator.RequestRandomnessRequest{
		SeedPubkey:   r.Seed.String(),
		RandomPda:    r.Randomness.String(),
		NetworkState: r.NetworkState.String(),
		VRFTreasury:  r.VRFTreasury.String(),
		VRFProgram:   r.VRFProgram.String(),
		ConfigPda:    r.Config.String(),
	})
}

func (c *Client) Resolve(ctx context.Context, r SettleRequest) (Reply, error) {
	return c.post(ctx, operator.PathResolve, operator.ResolveRequest{
		PlayerPubkey: r.Player.String(),
		RandomPda:    r.Randomness.String(),
		BetPda:       r.Wager.String(),
		VaultPda:     r.Vault.String(),
		TreasuryPda:  r.Treasury.String(),
		ConfigPda:    r.Config.String(),
	})
}

func (c *Client) Refund(ctx context.Context, r SettleRequest) (Reply, error) {
	return c.post(ctx, operator.PathRefund, operator.RefundRequest{
		PlayerPubkey: r.Player.String(),
		RandomPda:    r.Randomness.String(),
		BetPda:       r.Wager.String(),
		VaultPda:     r.Vault.String(),
		ConfigPda:    r.Config.String(),
	})
}

// Health consulta o /health do operador
func (c *Client) Health(ctx context.Context) (operator.HealthResponse, error) {
	var out operator.HealthResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+operator.PathHealth, nil)
	if err != nil {
		return out, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return out, fmt.Errorf("signer health: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return out, fmt.Errorf("signer health http %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("signer health: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	res, err := c.HTTP.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("signer %s: %w", path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Reply{}, fmt.Errorf("signer %s: read: %w", path, err)
	}
	var out operator.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		if res.StatusCode >= 300 {
			return Reply{}, fmt.Errorf("signer %s http %d", path, res.StatusCode)
		}
		return Reply{}, fmt.Errorf("signer %s: decode: %w", path, err)
	}
	if !out.OK {
		return Reply{Logs: out.Logs}, fmt.Errorf("%w: %s: %s", wager.ErrSignerRejected, path, out.Error)
	}
	if out.TxSig == "" {
		return Reply{}, fmt.Errorf("%w: %s: empty signature", wager.ErrSignerRejected, path)
	}
	return Reply{Signature: out.TxSig, Logs: out.Logs}, nil
}
