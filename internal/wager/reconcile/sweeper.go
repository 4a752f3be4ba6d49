package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/shared/cache"
	"github.com/radieske/vrf-wager-platform/internal/shared/logger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

var (
	ErrNoResumer        = errors.New("no orchestrator for game")
	ErrClaimed          = errors.New("wager is being reconciled by another process")
	ErrRetriesExhausted = errors.New("reconcile retries exhausted")
)

type Store interface {
	// ListStale devolve apostas não terminais paradas desde olderThan, exceto as já enviadas
	// à DLQ e as com retentativa marcada para depois de now. Menos tentativas primeiro.
	ListStale(ctx context.Context, olderThan, now time.Time, limit int) ([]*wager.Wager, error)
	// RecordRetry conta uma tentativa falha, adia a próxima para retryAt e devolve o total
	RecordRetry(ctx context.Context, id string, retryAt time.Time) (int, error)
	// MarkDeadLettered tira a aposta da varredura automática
	MarkDeadLettered(ctx context.Context, id string, at time.Time) error
}

type Locker interface {
	Acquire(ctx context.Context, name string) (cache.Lock, error)
}

// Resumer é o orquestrador de um jogo
type Resumer interface {
	Resume(ctx context.Context, w *wager.Wager) (*wager.Wager, error)
}

type DeadLetter interface {
	PublishOrphan(ctx context.Context, w *wager.Wager, cause error) error
}

// Report resume uma varredura
type Report struct {
	Stale    int
	Skipped  int // claim de outro processo
	Resumed  int
	Orphaned int
	Errors   int
}

// Hooks alimentam métricas; todos opcionais
type Hooks struct {
	OnSweep   func(Report)
	OnResumed func(w *wager.Wager)
	OnOrphan  func(w *wager.Wager, cause error)
}

// Sweeper retoma apostas paradas há mais que Grace. Uma aposta que falha de forma
// transitória volta depois de RetryAfter; após MaxAttempts falhas vai para a DLQ.
type Sweeper struct {
	Store       Store
	Locker      Locker
	Resumers    map[string]Resumer
	DLQ         DeadLetter
	Grace       time.Duration
	Interval    time.Duration
	RetryAfter  time.Duration
	MaxAttempts int
	BatchSize   int
	Hooks       Hooks
	Log         *zap.Logger
	Now         func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sweeper) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func (s *Sweeper) retryAfter() time.Duration {
	if s.RetryAfter > 0 {
		return s.RetryAfter
	}
	return s.Grace
}

func (s *Sweeper) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return 5
}

func (s *Sweeper) batch() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return 100
}

// Run varre imediatamente e depois a cada Interval até o ctx terminar
func (s *Sweeper) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		return fmt.Errorf("%w: reconcile interval must be positive", wager.ErrValidation)
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log().Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// RunOnce processa um lote de apostas paradas
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	now := s.now()
	stale, err := s.Store.ListStale(ctx, now.Add(-s.Grace), now, s.batch())
	if err != nil {
		return rep, fmt.Errorf("list stale wagers: %w", err)
	}
	rep.Stale = len(stale)

	for _, w := range stale {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.handle(ctx, w, &rep); err != nil {
			return rep, err
		}
	}

	if rep.Stale > 0 {
		s.log().Info("sweep done",
			zap.Int("stale", rep.Stale),
			zap.Int("resumed", rep.Resumed),
			zap.Int("orphaned", rep.Orphaned),
			zap.Int("skipped", rep.Skipped),
			zap.Int("errors", rep.Errors))
	}
	if s.Hooks.OnSweep != nil {
		s.Hooks.OnSweep(rep)
	}
	return rep, nil
}

type outcome int

const (
	outcomeResumed outcome = iota
	outcomeSkipped
	outcomeOrphaned
	outcomeError
	outcomeStopped
)

// One retoma uma aposta específica (reconciliação manual)
func (s *Sweeper) One(ctx context.Context, w *wager.Wager) (*wager.Wager, error) {
	if w.Terminal() {
		return w, nil
	}
	res, oc, err := s.process(ctx, w)
	if oc == outcomeSkipped {
		return w, ErrClaimed
	}
	return res, err
}

// handle só devolve erro quando a varredura inteira deve parar
func (s *Sweeper) handle(ctx context.Context, w *wager.Wager, rep *Report) error {
	_, oc, err := s.process(ctx, w)
	switch oc {
	case outcomeResumed:
		rep.Resumed++
	case outcomeSkipped:
		rep.Skipped++
	case outcomeOrphaned:
		rep.Orphaned++
	case outcomeError:
		rep.Errors++
	case outcomeStopped:
		return err
	}
	return nil
}

func (s *Sweeper) process(ctx context.Context, w *wager.Wager) (*wager.Wager, outcome, error) {
	log := logger.ForWager(s.log(), w.ID, w.Game)

	lock, err := s.Locker.Acquire(ctx, w.ID)
	if err != nil {
		log.Warn("claim failed", zap.Error(err))
		return w, outcomeError, err
	}
	if lock == nil {
		log.Debug("wager claimed elsewhere")
		return w, outcomeSkipped, nil
	}
	defer func() {
		// o ctx pode já ter terminado; a liberação não depende dele
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := lock.Release(rctx); err != nil {
			log.Warn("release failed", zap.Error(err))
		}
	}()

	r, ok := s.Resumers[w.Game]
	if !ok {
		cause := fmt.Errorf("%w: %s", ErrNoResumer, w.Game)
		s.orphan(ctx, log, w, cause)
		return w, outcomeOrphaned, cause
	}

	from := w.State
	res, err := r.Resume(ctx, w)
	if res == nil {
		res = w
	}
	switch {
	case errors.Is(err, wager.ErrAbandoned) || ctx.Err() != nil:
		if ctx.Err() != nil {
			return res, outcomeStopped, ctx.Err()
		}
		return res, outcomeStopped, err
	case errors.Is(err, wager.ErrSettlementUnrecorded), res.State == wager.StateFailed:
		s.orphan(ctx, log, res, err)
		return res, outcomeOrphaned, err
	case err != nil:
		return s.retryLater(ctx, log, res, err)
	}
	log.Info("wager reconciled", zap.String("from", string(from)), zap.String("to", string(res.State)))
	if s.Hooks.OnResumed != nil {
		s.Hooks.OnResumed(res)
	}
	return res, outcomeResumed, nil
}

// retryLater agenda a próxima tentativa; esgotadas as tentativas a aposta vira órfã
func (s *Sweeper) retryLater(ctx context.Context, log *zap.Logger, w *wager.Wager, cause error) (*wager.Wager, outcome, error) {
	attempts, err := s.Store.RecordRetry(ctx, w.ID, s.now().Add(s.retryAfter()))
	if err != nil {
		log.Warn("record retry failed", zap.Error(err))
		return w, outcomeError, cause
	}
	if attempts >= s.maxAttempts() {
		cause = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, cause)
		s.orphan(ctx, log, w, cause)
		return w, outcomeOrphaned, cause
	}
	log.Warn("resume failed, retrying later",
		zap.String("state", string(w.State)),
		zap.Int("attempts", attempts),
		zap.Error(cause))
	return w, outcomeError, cause
}

// orphan publica na DLQ e tira a aposta da varredura. Se a publicação falha a aposta
// continua elegível e é publicada de novo na próxima varredura.
func (s *Sweeper) orphan(ctx context.Context, log *zap.Logger, w *wager.Wager, cause error) {
	if cause == nil && w.Failure != nil {
		cause = errors.New(w.Failure.Error)
	}
	log.Error("wager orphaned", zap.String("state", string(w.State)), zap.Error(cause))
	if s.DLQ != nil {
		if err := s.DLQ.PublishOrphan(ctx, w, cause); err != nil {
			log.Error("dlq publish failed", zap.Error(err))
			return
		}
	}
	if err := s.Store.MarkDeadLettered(ctx, w.ID, s.now()); err != nil {
		log.Warn("mark dead-lettered failed", zap.Error(err))
	}
	if s.Hooks.OnOrphan != nil {
		s.Hooks.OnOrphan(w, cause)
	}
}
