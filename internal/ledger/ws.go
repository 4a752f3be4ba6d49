package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrSubscriptionClosed = errors.New("account subscription closed")

// WSClient assina notificações de conta pelo endpoint pubsub do ledger
type WSClient struct {
	URL    string
	Log    *zap.Logger
	Dialer *websocket.Dialer
}

func NewWSClient(url string, log *zap.Logger) *WSClient {
	return &WSClient{URL: url, Log: log, Dialer: websocket.DefaultDialer}
}

const subscribeRequestID = 1

type wsNotification struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Params struct {
		Result struct {
			Value *accountValue `json:"value"`
		} `json:"result"`
		Subscription uint64 `json:"subscription"`
	} `json:"params"`
}

// SubscribeAccount faz accountSubscribe e só retorna depois que o ledger confirma a assinatura.
// O canal entrega cada novo estado da conta e é fechado quando o ctx termina ou a conexão cai;
// nos dois casos a conexão é fechada.
func (c *WSClient) SubscribeAccount(ctx context.Context, pk PublicKey, commitment Commitment) (<-chan *Account, error) {
	conn, _, err := c.Dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// desbloqueia o ReadMessage pendente
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		case <-done:
		}
		_ = conn.Close()
	}()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      subscribeRequestID,
		Method:  "accountSubscribe",
		Params:  []any{pk.String(), map[string]any{"encoding": "base64", "commitment": commitment}},
	}
	if err := conn.WriteJSON(req); err != nil {
		close(done)
		return nil, fmt.Errorf("ws subscribe: %w", err)
	}
	if err := awaitConfirmation(ctx, conn); err != nil {
		close(done)
		return nil, err
	}

	out := make(chan *Account)
	go func() {
		defer close(out)
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					c.Log.Warn("ws read failed", zap.String("account", pk.String()), zap.Error(err))
				}
				return
			}
			var n wsNotification
			if err := json.Unmarshal(message, &n); err != nil {
				c.Log.Warn("invalid ws message", zap.Error(err))
				continue
			}
			if n.Error != nil {
				c.Log.Warn("ws subscription error", zap.Error(n.Error))
				return
			}
			if n.Method != "accountNotification" || n.Params.Result.Value == nil {
				continue
			}
			acc, err := n.Params.Result.Value.decode()
			if err != nil {
				c.Log.Warn("invalid account notification", zap.Error(err))
				continue
			}
			select {
			case out <- acc:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// awaitConfirmation lê até a resposta do accountSubscribe
func awaitConfirmation(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ws subscribe: %w", err)
		}
		var n wsNotification
		if err := json.Unmarshal(message, &n); err != nil {
			return fmt.Errorf("ws subscribe: decode reply: %w", err)
		}
		if n.ID == nil || *n.ID != subscribeRequestID {
			continue
		}
		if n.Error != nil {
			return fmt.Errorf("ws subscribe: %w", n.Error)
		}
		return nil
	}
}
