package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscribe escuta o canal de atualizações e entrega cada Update decodificado até o ctx acabar.
// Mensagens inválidas são logadas e ignoradas.
func Subscribe(ctx context.Context, r *redis.Client, channel string, log *zap.Logger, fn func(Update)) error {
	sub := r.Subscribe(ctx, channel)
	defer sub.Close()

	// confirma a inscrição antes de começar a consumir
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscribe %s: channel closed", channel)
			}
			u, err := decodeUpdate(msg.Payload)
			if err != nil {
				log.Warn("invalid wager update", zap.String("channel", channel), zap.Error(err))
				continue
			}
			fn(u)
		}
	}
}

func decodeUpdate(payload string) (Update, error) {
	var u Update
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return Update{}, err
	}
	if u.WagerID == "" {
		return Update{}, fmt.Errorf("update without wagerId")
	}
	return u, nil
}
