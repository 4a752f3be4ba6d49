package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// WagerCollectors é o observer que transforma transições em métricas
type WagerCollectors struct {
	Transitions    *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	Refunds        *prometheus.CounterVec
	SettleDuration *prometheus.HistogramVec
}

func NewWagerCollectors(reg prometheus.Registerer) *WagerCollectors {
	c := &WagerCollectors{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_transitions_total",
			Help: "Wager state transitions",
		}, []string{"game", "from", "to"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_failures_total",
			Help: "Wagers that ended FAILED, by reason",
		}, []string{"game", "reason"}),
		Refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_refunds_total",
			Help: "Wagers refunded after the randomness timed out",
		}, []string{"game"}),
		SettleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wager_settle_duration_seconds",
			Help:    "Time from creation to terminal state",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
		}, []string{"game", "state"}),
	}
	reg.MustRegister(c.Transitions, c.Failures, c.Refunds, c.SettleDuration)
	return c
}

func (c *WagerCollectors) OnTransition(_ context.Context, w *wager.Wager, tr wager.Transition) error {
	from := string(tr.From)
	if from == "" {
		from = "start"
	}
	c.Transitions.WithLabelValues(w.Game, from, string(tr.To)).Inc()

	switch tr.To {
	case wager.StateFailed:
		reason := "unknown"
		if w.Failure != nil {
			reason = string(w.Failure.Reason)
		}
		c.Failures.WithLabelValues(w.Game, reason).Inc()
	case wager.StateRefunded:
		c.Refunds.WithLabelValues(w.Game).Inc()
	}
	if tr.To.Terminal() {
		c.SettleDuration.WithLabelValues(w.Game, string(tr.To)).Observe(tr.At.Sub(w.CreatedAt).Seconds())
	}
	return nil
}

// ReconcileCollectors acompanha a varredura de órfãs
type ReconcileCollectors struct {
	Sweeps  prometheus.Counter
	Resumed *prometheus.CounterVec
	Orphans prometheus.Counter
}

func NewReconcileCollectors(reg prometheus.Registerer) *ReconcileCollectors {
	c := &ReconcileCollectors{
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wager_reconcile_sweeps_total",
			Help: "Completed orphan sweeps",
		}),
		Resumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_reconcile_resumed_total",
			Help: "Stale wagers resumed by the reconciler, by final state",
		}, []string{"game", "state"}),
		Orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wager_orphans_total",
			Help: "Wagers sent to the orphan dead letter queue",
		}),
	}
	reg.MustRegister(c.Sweeps, c.Resumed, c.Orphans)
	return c
}
