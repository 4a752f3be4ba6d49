package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

func TestWagerCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWagerCollectors(reg)
	ctx := context.Background()
	start := time.Now()
	w := wager.New("dice", ledger.PublicKey{1}, ledger.PublicKey{2}, 10, nil, wager.Addresses{}, start)

	for _, s := range []wager.State{wager.StatePlaced, wager.StateRandomnessRequested, wager.StateTimedOut, wager.StateRefunded} {
		tr, err := w.Advance(s, start.Add(3*time.Second))
		require.NoError(t, err)
		require.NoError(t, c.OnTransition(ctx, w, tr))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Transitions.WithLabelValues("dice", "start", "PLACED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Transitions.WithLabelValues("dice", "TIMED_OUT", "REFUNDED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Refunds.WithLabelValues("dice")))
	assert.Equal(t, 0, testutil.CollectAndCount(c.Failures))
	assert.Equal(t, 1, testutil.CollectAndCount(c.SettleDuration))

	w2 := wager.New("wheel", ledger.PublicKey{3}, ledger.PublicKey{4}, 10, nil, wager.Addresses{}, start)
	tr, err := w2.Fail("place_stake", wager.ReasonPlaceStakeRejected, errors.New("no funds"), start)
	require.NoError(t, err)
	require.NoError(t, c.OnTransition(ctx, w2, tr))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Failures.WithLabelValues("wheel", "PLACE_STAKE_REJECTED")))
}

func TestHealthz(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewReconcileCollectors(reg).Sweeps.Inc()

	ok := Handler(reg, Check{Name: "db", Fn: func(context.Context) error { return nil }})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "wager_reconcile_sweeps_total 1")

	bad := Handler(reg, Check{Name: "redis", Fn: func(context.Context) error { return errors.New("down") }})
	rec = httptest.NewRecorder()
	bad.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis: down")
}
