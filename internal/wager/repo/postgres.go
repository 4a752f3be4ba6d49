package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/vrf-wager-platform/internal/wager"
)

//go:embed schema.sql
var schema string

var ErrNotFound = errors.New("wager not found")

var terminalStates = []string{
	string(wager.StateResolved),
	string(wager.StateRefunded),
	string(wager.StateFailed),
}

// Postgres persiste o ciclo de vida das apostas e serve a varredura de órfãs
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria as tabelas se ainda não existirem
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// OnTransition grava o snapshot da aposta e a linha de histórico numa transação.
// Um snapshot mais antigo que o persistido não sobrescreve o estado.
func (p *Postgres) OnTransition(ctx context.Context, w *wager.Wager, tr wager.Transition) error {
	r, err := toRow(w)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wagers (id,game,player,stake,params,seed,randomness_ref,wager_account_ref,
			state,outcome,failure,place_sig,request_sig,settle_sig,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			state=EXCLUDED.state, outcome=EXCLUDED.outcome, failure=EXCLUDED.failure,
			place_sig=EXCLUDED.place_sig, request_sig=EXCLUDED.request_sig, settle_sig=EXCLUDED.settle_sig,
			updated_at=EXCLUDED.updated_at
		WHERE wagers.updated_at <= EXCLUDED.updated_at`,
		r.ID, r.Game, r.Player, r.Stake, nullJSON(r.Params), r.Seed, r.RandomnessRef, r.WagerAccountRef,
		r.State, nullJSON(r.Outcome), nullJSON(r.Failure), r.PlaceSig, r.RequestSig, r.SettleSig,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wager %s: %w", w.ID, err)
	}

	reason := ""
	if tr.To == wager.StateFailed && w.Failure != nil {
		reason = string(w.Failure.Reason)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO wager_transitions (wager_id, old_state, new_state, reason, created_at)
		VALUES ($1,$2,$3,$4,$5)`, w.ID, string(tr.From), string(tr.To), reason, tr.At.UTC())
	if err != nil {
		return fmt.Errorf("insert transition %s: %w", w.ID, err)
	}
	return tx.Commit()
}

const selectWager = `
	SELECT id,game,player,stake::text,params,seed,randomness_ref,wager_account_ref,
		state,outcome,failure,place_sig,request_sig,settle_sig,created_at,updated_at
	FROM wagers`

// Get carrega a aposta com o histórico
func (p *Postgres) Get(ctx context.Context, id string) (*wager.Wager, error) {
	r, err := scanRow(p.db.QueryRowContext(ctx, selectWager+` WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	history, err := p.history(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromRow(r, history)
}

// staleFilter exclui apostas já na DLQ e adiadas; as com menos tentativas vêm primeiro
const staleFilter = `
	WHERE state <> ALL($1) AND updated_at < $2
		AND dead_lettered_at IS NULL
		AND (reconcile_after IS NULL OR reconcile_after <= $3)
	ORDER BY reconcile_attempts, updated_at
	LIMIT $4`

// ListStale devolve apostas não terminais sem atualização desde olderThan e elegíveis em now
func (p *Postgres) ListStale(ctx context.Context, olderThan, now time.Time, limit int) ([]*wager.Wager, error) {
	rows, err := p.db.QueryContext(ctx, selectWager+staleFilter,
		pq.Array(terminalStates), olderThan.UTC(), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}
	defer rows.Close()

	var raw []row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*wager.Wager, 0, len(raw))
	for _, r := range raw {
		history, err := p.history(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		w, err := fromRow(r, history)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// RecordRetry conta uma tentativa de reconciliação falha e adia a próxima
func (p *Postgres) RecordRetry(ctx context.Context, id string, retryAt time.Time) (int, error) {
	var attempts int
	err := p.db.QueryRowContext(ctx, `
		UPDATE wagers SET reconcile_attempts = reconcile_attempts + 1, reconcile_after = $2
		WHERE id = $1
		RETURNING reconcile_attempts`, id, retryAt.UTC()).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("record retry %s: %w", id, err)
	}
	return attempts, nil
}

// MarkDeadLettered tira a aposta da varredura automática; wagerctl reconcile <id> ainda a retoma
func (p *Postgres) MarkDeadLettered(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `UPDATE wagers SET dead_lettered_at = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("mark dead-lettered %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) history(ctx context.Context, id string) ([]wager.Transition, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT old_state, new_state, created_at FROM wager_transitions
		WHERE wager_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", id, err)
	}
	defer rows.Close()
	var out []wager.Transition
	for rows.Next() {
		var from, to string
		var at time.Time
		if err := rows.Scan(&from, &to, &at); err != nil {
			return nil, err
		}
		out = append(out, wager.Transition{From: wager.State(from), To: wager.State(to), At: at})
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (row, error) {
	var r row
	err := s.Scan(&r.ID, &r.Game, &r.Player, &r.Stake, &r.Params, &r.Seed, &r.RandomnessRef, &r.WagerAccountRef,
		&r.State, &r.Outcome, &r.Failure, &r.PlaceSig, &r.RequestSig, &r.SettleSig, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// nullJSON evita gravar '' numa coluna JSONB
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
