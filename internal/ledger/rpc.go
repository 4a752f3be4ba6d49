package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Commitment é o nível de confirmação pedido ao ledger
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Account é a visão de uma conta no ledger
type Account struct {
	Lamports   uint64
	Owner      PublicKey
	Data       []byte
	Executable bool
}

// TransactionResult traz o que interessa de uma transação finalizada: logs e erro de execução
type TransactionResult struct {
	Slot uint64
	Logs []string
	Err  json.RawMessage
}

// Failed indica que a transação foi incluída mas a execução falhou
func (t *TransactionResult) Failed() bool {
	return len(t.Err) > 0 && string(t.Err) != "null"
}

// RPCError é o erro devolvido pelo nó no envelope JSON-RPC
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// RPCClient fala JSON-RPC com um nó do ledger
type RPCClient struct {
	URL  string
	HTTP *http.Client
	seq  atomic.Uint64
}

func NewRPCClient(url string) *RPCClient {
	return &RPCClient{
		URL:  url,
		HTTP: &http.Client{Timeout: 10 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, out any, params ...any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.seq.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("%s: rpc http %d", method, res.StatusCode)
	}
	var env rpcResponse
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode: %w", method, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%s: %w", method, env.Error)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Result, out)
}

// SendTransaction submete uma transação já assinada e devolve a assinatura
func (c *RPCClient) SendTransaction(ctx context.Context, raw []byte) (string, error) {
	var sig string
	err := c.call(ctx, "sendTransaction", &sig,
		base64.StdEncoding.EncodeToString(raw),
		map[string]any{"encoding": "base64", "preflightCommitment": CommitmentConfirmed},
	)
	return sig, err
}

// GetTransaction devolve nil quando o ledger ainda não conhece a transação
func (c *RPCClient) GetTransaction(ctx context.Context, sig string, commitment Commitment) (*TransactionResult, error) {
	var out *struct {
		Slot uint64 `json:"slot"`
		Meta *struct {
			Err         json.RawMessage `json:"err"`
			LogMessages []string        `json:"logMessages"`
		} `json:"meta"`
	}
	err := c.call(ctx, "getTransaction", &out, sig, map[string]any{
		"commitment":                     commitment,
		"encoding":                       "json",
		"maxSupportedTransactionVersion": 0,
	})
	if err != nil {
		return nil, err
	}
	if out == nil || out.Meta == nil {
		return nil, nil
	}
	return &TransactionResult{Slot: out.Slot, Logs: out.Meta.LogMessages, Err: out.Meta.Err}, nil
}

type accountValue struct {
	Lamports   uint64    `json:"lamports"`
	Owner      PublicKey `json:"owner"`
	Data       []string  `json:"data"`
	Executable bool      `json:"executable"`
}

func (v *accountValue) decode() (*Account, error) {
	acc := &Account{Lamports: v.Lamports, Owner: v.Owner, Executable: v.Executable}
	if len(v.Data) > 0 {
		if len(v.Data) > 1 && v.Data[1] != "base64" {
			return nil, fmt.Errorf("unexpected account encoding %q", v.Data[1])
		}
		data, err := base64.StdEncoding.DecodeString(v.Data[0])
		if err != nil {
			return nil, fmt.Errorf("decode account data: %w", err)
		}
		acc.Data = data
	}
	return acc, nil
}

// GetAccountInfo devolve nil quando a conta não existe
func (c *RPCClient) GetAccountInfo(ctx context.Context, pk PublicKey, commitment Commitment) (*Account, error) {
	var out struct {
		Value *accountValue `json:"value"`
	}
	err := c.call(ctx, "getAccountInfo", &out, pk.String(), map[string]any{
		"encoding":   "base64",
		"commitment": commitment,
	})
	if err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, nil
	}
	return out.Value.decode()
}

// GetLatestBlockhash devolve o contexto de confirmação para novas transações
func (c *RPCClient) GetLatestBlockhash(ctx context.Context, commitment Commitment) (Hash, error) {
	var out struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", &out, map[string]any{"commitment": commitment}); err != nil {
		return Hash{}, err
	}
	if out.Value.Blockhash == "" {
		return Hash{}, errors.New("getLatestBlockhash: empty blockhash")
	}
	return ParseHash(out.Value.Blockhash)
}

// Health usa getHealth; serve para o /healthz dos serviços
func (c *RPCClient) Health(ctx context.Context) error {
	return c.call(ctx, "getHealth", nil)
}
