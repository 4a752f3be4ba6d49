package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/radieske/vrf-wager-platform/internal/shared/retry"
)

// Policy é a única superfície de tempos do fluxo de apostas.
// Todos os jogos usam os mesmos valores; nada de constante espalhada por jogo.
type Policy struct {
	// espera a conta de randomness existir
	AccountPoll    time.Duration `env:"WAGER_ACCOUNT_POLL" envDefault:"700ms"`
	AccountTimeout time.Duration `env:"WAGER_ACCOUNT_TIMEOUT" envDefault:"60s"`

	// fast path (notificação) e polling manual do fulfillment
	FastPathTimeout time.Duration `env:"WAGER_FAST_PATH_TIMEOUT" envDefault:"20s"`
	FulfillPoll     time.Duration `env:"WAGER_FULFILL_POLL" envDefault:"700ms"`
	FulfillTimeout  time.Duration `env:"WAGER_FULFILL_TIMEOUT" envDefault:"120s"`

	// confirmação da transação de stake
	ConfirmPoll    time.Duration `env:"WAGER_CONFIRM_POLL" envDefault:"700ms"`
	ConfirmTimeout time.Duration `env:"WAGER_CONFIRM_TIMEOUT" envDefault:"60s"`

	// leitura do log estruturado
	ParseBase       time.Duration `env:"WAGER_PARSE_BASE" envDefault:"300ms"`
	ParseMultiplier float64       `env:"WAGER_PARSE_MULTIPLIER" envDefault:"1.5"`
	ParseCap        time.Duration `env:"WAGER_PARSE_CAP" envDefault:"1500ms"`
	ParseAttempts   int           `env:"WAGER_PARSE_ATTEMPTS" envDefault:"12"`

	// varredura de órfãs
	ReconcileGrace    time.Duration `env:"WAGER_RECONCILE_GRACE" envDefault:"10m"`
	ReconcileInterval time.Duration `env:"WAGER_RECONCILE_INTERVAL" envDefault:"30s"`
	// falhas transitórias: espera entre tentativas e limite antes da DLQ
	ReconcileRetryAfter  time.Duration `env:"WAGER_RECONCILE_RETRY_AFTER" envDefault:"5m"`
	ReconcileMaxAttempts int           `env:"WAGER_RECONCILE_MAX_ATTEMPTS" envDefault:"5"`
}

// LoadPolicy lê a Policy do ambiente e valida
func LoadPolicy() (Policy, error) {
	return parsePolicy(env.Options{})
}

func parsePolicy(opts env.Options) (Policy, error) {
	var p Policy
	if err := env.ParseWithOptions(&p, opts); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// DefaultPolicy devolve os defaults das tags, sem olhar o ambiente
func DefaultPolicy() Policy {
	p, err := parsePolicy(env.Options{Environment: map[string]string{}})
	if err != nil {
		panic(err)
	}
	return p
}

// ParseBackoff é a política de leitura de logs
func (p Policy) ParseBackoff() retry.Backoff {
	return retry.Backoff{
		Base:        p.ParseBase,
		Multiplier:  p.ParseMultiplier,
		Cap:         p.ParseCap,
		MaxAttempts: p.ParseAttempts,
	}
}

// LiveBudget é o pior caso de uma aposta ao vivo entre o stake e o estado terminal:
// confirmação, espera da conta, fast path, polling e duas leituras de log (resolve/refund)
func (p Policy) LiveBudget() time.Duration {
	parse := p.ParseBackoff().Budget()
	return p.ConfirmTimeout + p.AccountTimeout + p.FastPathTimeout + p.FulfillTimeout + 2*parse
}

func (p Policy) Validate() error {
	durations := map[string]time.Duration{
		"WAGER_ACCOUNT_POLL":          p.AccountPoll,
		"WAGER_ACCOUNT_TIMEOUT":       p.AccountTimeout,
		"WAGER_FAST_PATH_TIMEOUT":     p.FastPathTimeout,
		"WAGER_FULFILL_POLL":          p.FulfillPoll,
		"WAGER_FULFILL_TIMEOUT":       p.FulfillTimeout,
		"WAGER_CONFIRM_POLL":          p.ConfirmPoll,
		"WAGER_CONFIRM_TIMEOUT":       p.ConfirmTimeout,
		"WAGER_RECONCILE_GRACE":       p.ReconcileGrace,
		"WAGER_RECONCILE_INTERVAL":    p.ReconcileInterval,
		"WAGER_RECONCILE_RETRY_AFTER": p.ReconcileRetryAfter,
	}
	for k, d := range durations {
		if d <= 0 {
			return fmt.Errorf("policy: %s must be positive", k)
		}
	}
	if p.ReconcileMaxAttempts <= 0 {
		return errors.New("policy: WAGER_RECONCILE_MAX_ATTEMPTS must be positive")
	}
	if err := p.ParseBackoff().Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if p.ReconcileGrace <= p.LiveBudget() {
		return errors.New("policy: WAGER_RECONCILE_GRACE must exceed the live wager budget")
	}
	return nil
}
