package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff descreve uma espera exponencial sem jitter:
// Base, Base*Multiplier, ... limitada por Cap, no máximo MaxAttempts tentativas
type Backoff struct {
	Base        time.Duration
	Multiplier  float64
	Cap         time.Duration
	MaxAttempts int
}

func (b Backoff) Validate() error {
	switch {
	case b.Base <= 0:
		return errors.New("backoff: base must be positive")
	case b.Multiplier < 1:
		return fmt.Errorf("backoff: multiplier %.2f below 1", b.Multiplier)
	case b.Cap < b.Base:
		return errors.New("backoff: cap below base")
	case b.MaxAttempts <= 0:
		return errors.New("backoff: max attempts must be positive")
	}
	return nil
}

func (b Backoff) exponential() *backoff.ExponentialBackOff {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     b.Base,
		RandomizationFactor: 0,
		Multiplier:          b.Multiplier,
		MaxInterval:         b.Cap,
		MaxElapsedTime:      0, // o limite é por tentativas, não por tempo
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	eb.Reset()
	return eb
}

// Delays devolve a sequência de esperas, uma por tentativa.
// A sequência é não decrescente e cada elemento é <= Cap.
func (b Backoff) Delays() []time.Duration {
	if b.MaxAttempts <= 0 {
		return nil
	}
	eb := b.exponential()
	out := make([]time.Duration, b.MaxAttempts)
	for i := range out {
		d := eb.NextBackOff()
		if d > b.Cap {
			d = b.Cap
		}
		out[i] = d
	}
	return out
}

// Budget é o teto de tempo gasto esperando: MaxAttempts * Cap
func (b Backoff) Budget() time.Duration {
	return time.Duration(b.MaxAttempts) * b.Cap
}

// Sleep espera d ou até o ctx ser cancelado
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
