package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/operator-signer/program"
	"github.com/radieske/vrf-wager-platform/internal/wager"
	"github.com/radieske/vrf-wager-platform/internal/wager/signer"
	"github.com/radieske/vrf-wager-platform/pkg/contracts/operator"
)

type fakeOperator struct {
	request *program.RequestAccounts
	settle  *program.SettleAccounts
	calls   int
	err     error
}

func (f *fakeOperator) RequestRandomness(_ context.Context, a program.RequestAccounts) (program.Receipt, error) {
	f.calls++
	f.request = &a
	return program.Receipt{Signature: "sig-request", Logs: []string{"Program log: requested"}}, f.err
}

func (f *fakeOperator) Resolve(_ context.Context, a program.SettleAccounts) (program.Receipt, error) {
	f.calls++
	f.settle = &a
	return program.Receipt{Signature: "sig-resolve", Logs: []string{`Program log: DICE_RESULT:{"payout_net":5}`}}, f.err
}

func (f *fakeOperator) Refund(_ context.Context, a program.SettleAccounts) (program.Receipt, error) {
	f.calls++
	f.settle = &a
	return program.Receipt{Signature: "sig-refund"}, f.err
}

func key(t *testing.T) ledger.PublicKey {
	t.Helper()
	kp, err := ledger.GenerateKeypair()
	require.NoError(t, err)
	return kp.PublicKey()
}

func setup(t *testing.T, op Operator) (*httptest.Server, ledger.PublicKey, ledger.PublicKey) {
	t.Helper()
	agent, prog := key(t), key(t)
	srv := httptest.NewServer(NewServer(zap.NewNop(), op, agent, prog).Router())
	t.Cleanup(srv.Close)
	return srv, agent, prog
}

func post(t *testing.T, url string, body string) (int, operator.Response) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	var out operator.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func TestMissingFieldsInOrder(t *testing.T) {
	op := &fakeOperator{}
	srv, _, _ := setup(t, op)

	code, out := post(t, srv.URL+operator.PathRequest, `{"randomPda":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, out.OK)
	assert.Equal(t, "missing seedPubkey", out.Error)

	_, out = post(t, srv.URL+operator.PathResolve, `{"playerPubkey":"a","randomPda":"b","betPda":"c","vaultPda":"d","configPda":"e"}`)
	assert.Equal(t, "missing treasuryPda", out.Error)

	_, out = post(t, srv.URL+operator.PathRefund, `{"playerPubkey":"a"}`)
	assert.Equal(t, "missing randomPda", out.Error)

	code, out = post(t, srv.URL+operator.PathRefund, `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad json", out.Error)
	assert.Zero(t, op.calls)
}

func TestInvalidKeysAndSeed(t *testing.T) {
	op := &fakeOperator{}
	srv, _, _ := setup(t, op)

	req := operator.RequestRandomnessRequest{
		SeedPubkey: "not-a-seed", RandomPda: key(t).String(), NetworkState: key(t).String(),
		VRFTreasury: key(t).String(), VRFProgram: key(t).String(), ConfigPda: "0OIl",
	}
	b, _ := json.Marshal(req)
	_, out := post(t, srv.URL+operator.PathRequest, string(b))
	assert.True(t, strings.HasPrefix(out.Error, "invalid configPda"), out.Error)

	req.ConfigPda = key(t).String()
	b, _ = json.Marshal(req)
	_, out = post(t, srv.URL+operator.PathRequest, string(b))
	assert.Contains(t, out.Error, "invalid seedPubkey format")
	assert.Zero(t, op.calls)
}

func TestRequestAcceptsBase64Seed(t *testing.T) {
	op := &fakeOperator{}
	srv, _, _ := setup(t, op)
	seed := key(t)

	b, _ := json.Marshal(operator.RequestRandomnessRequest{
		SeedPubkey: base64.StdEncoding.EncodeToString(seed.Bytes()), RandomPda: key(t).String(),
		NetworkState: key(t).String(), VRFTreasury: key(t).String(), VRFProgram: key(t).String(), ConfigPda: key(t).String(),
	})
	code, out := post(t, srv.URL+operator.PathRequest, string(b))
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, out.OK)
	assert.Equal(t, "sig-request", out.TxSig)
	require.NotNil(t, op.request)
	assert.Equal(t, seed, op.request.Seed)
}

func TestExecutionFailureCarriesLogs(t *testing.T) {
	op := &fakeOperator{err: &program.TxError{Signature: "sig-x", Logs: []string{"Program log: vault empty"}, Detail: "Custom"}}
	srv, _, _ := setup(t, op)

	b, _ := json.Marshal(operator.RefundRequest{
		PlayerPubkey: key(t).String(), RandomPda: key(t).String(), BetPda: key(t).String(),
		VaultPda: key(t).String(), ConfigPda: key(t).String(),
	})
	code, out := post(t, srv.URL+operator.PathRefund, string(b))
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, out.OK)
	assert.Equal(t, "sig-x", out.TxSig)
	assert.Equal(t, []string{"Program log: vault empty"}, out.Logs)
	assert.Contains(t, out.Error, "transaction failed on ledger")
}

func TestHealth(t *testing.T) {
	srv, agent, prog := setup(t, &fakeOperator{})

	h, err := signer.New(srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.OK)
	assert.Equal(t, agent.String(), h.Agent)
	assert.Equal(t, prog.String(), h.Program)
}

// o client do orquestrador e este servidor falam o mesmo contrato
func TestSignerClientRoundTrip(t *testing.T) {
	op := &fakeOperator{}
	srv, _, _ := setup(t, op)
	c := signer.New(srv.URL)
	ctx := context.Background()

	settle := signer.SettleRequest{Player: key(t), Randomness: key(t), Wager: key(t), Vault: key(t), Treasury: key(t), Config: key(t)}
	rep, err := c.Resolve(ctx, settle)
	require.NoError(t, err)
	assert.Equal(t, "sig-resolve", rep.Signature)
	require.NotNil(t, op.settle)
	assert.Equal(t, settle.Wager, op.settle.Wager)
	assert.Equal(t, settle.Treasury, op.settle.Treasury)

	rep, err = c.Refund(ctx, settle)
	require.NoError(t, err)
	assert.Equal(t, "sig-refund", rep.Signature)
	assert.True(t, op.settle.Treasury.IsZero(), "refund never sends the treasury")

	rr := signer.RandomnessRequest{Seed: key(t), Randomness: key(t), NetworkState: key(t), VRFTreasury: key(t), VRFProgram: key(t), Config: key(t)}
	_, err = c.RequestRandomness(ctx, rr)
	require.NoError(t, err)
	assert.Equal(t, rr.Seed, op.request.Seed)
	assert.Equal(t, rr.VRFTreasury, op.request.VRFTreasury)

	op.err = errors.New("simulation failed")
	_, err = c.Resolve(ctx, settle)
	assert.ErrorIs(t, err, wager.ErrSignerRejected)
	assert.ErrorContains(t, err, "simulation failed")
}
