package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePubsub roda script numa conexão aceita e publica em closed se o cliente fechou a conexão
func fakePubsub(t *testing.T, script func(conn *websocket.Conn)) (*httptest.Server, <-chan bool) {
	t.Helper()
	closed := make(chan bool, 1)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil || req.Method != "accountSubscribe" {
			return
		}
		script(conn)

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err = conn.ReadMessage()
		var ne net.Error
		closed <- !(errors.As(err, &ne) && ne.Timeout())
	}))
	return srv, closed
}

func wsURL(srv *httptest.Server) string { return "ws" + strings.TrimPrefix(srv.URL, "http") }

func notification(data []byte) string {
	owner := PublicKey{9}.String()
	return `{"jsonrpc":"2.0","method":"accountNotification","params":{"subscription":7,"result":{"context":{"slot":3},` +
		`"value":{"lamports":5,"owner":"` + owner + `","data":["` + base64.StdEncoding.EncodeToString(data) + `","base64"],"executable":false}}}}`
}

func TestSubscribeAccountDeliversAndClosesOnError(t *testing.T) {
	srv, closed := fakePubsub(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":7,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(notification([]byte{1, 2, 3})))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"node restarting"}}`))
	})
	defer srv.Close()

	// ctx continua vivo: quem fecha a conexão é o próprio leitor
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	updates, err := NewWSClient(wsURL(srv), zap.NewNop()).SubscribeAccount(ctx, PublicKey{1}, CommitmentConfirmed)
	require.NoError(t, err)

	acc, ok := <-updates
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, acc.Data)
	assert.Equal(t, uint64(5), acc.Lamports)

	_, ok = <-updates
	assert.False(t, ok)
	assert.True(t, <-closed, "client should close the connection when the subscription ends")
}

func TestSubscribeAccountRejected(t *testing.T) {
	srv, closed := fakePubsub(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid pubkey"}}`))
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewWSClient(wsURL(srv), zap.NewNop()).SubscribeAccount(ctx, PublicKey{1}, CommitmentConfirmed)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
	assert.True(t, <-closed)
}

func TestSubscribeAccountStopsOnCancel(t *testing.T) {
	srv, closed := fakePubsub(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":7,"id":1}`))
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := NewWSClient(wsURL(srv), zap.NewNop()).SubscribeAccount(ctx, PublicKey{1}, CommitmentConfirmed)
	require.NoError(t, err)
	cancel()

	_, ok := <-updates
	assert.False(t, ok)
	assert.True(t, <-closed)
}
