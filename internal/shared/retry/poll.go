package retry

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout indica que o orçamento do próprio poll acabou (diferente de ctx cancelado)
var ErrPollTimeout = errors.New("poll timeout")

// Cond é avaliada a cada tick. (false, nil) continua o poll; erro encerra imediatamente.
// Erros transitórios devem ser tratados dentro da Cond e devolvidos como (false, nil).
type Cond func(ctx context.Context) (bool, error)

// Poll avalia cond imediatamente e depois a cada interval, até timeout
func Poll(ctx context.Context, interval, timeout time.Duration, cond Cond) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrPollTimeout
		case <-ticker.C:
		}
	}
}
