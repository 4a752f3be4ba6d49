package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// Update é o payload publicado no canal de atualizações de aposta
type Update struct {
	WagerID string      `json:"wagerId"`
	Game    string      `json:"game"`
	From    wager.State `json:"from"`
	To      wager.State `json:"to"`
	At      time.Time   `json:"at"`
	Payload any         `json:"payload,omitempty"`
}

// Publisher é o único comando do Redis que o Broadcaster usa
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Broadcaster publica cada transição no pub/sub do Redis
type Broadcaster struct {
	r       Publisher
	channel string
}

func NewBroadcaster(r Publisher, channel string) *Broadcaster {
	return &Broadcaster{r: r, channel: channel}
}

func (b *Broadcaster) Publish(ctx context.Context, payload []byte) error {
	return b.r.Publish(ctx, b.channel, payload).Err()
}

// OnTransition leva outcome ou falha junto quando a aposta termina
func (b *Broadcaster) OnTransition(ctx context.Context, w *wager.Wager, tr wager.Transition) error {
	u := Update{WagerID: w.ID, Game: w.Game, From: tr.From, To: tr.To, At: tr.At.UTC()}
	switch {
	case w.Outcome != nil && tr.To.Terminal():
		u.Payload = w.Outcome
	case w.Failure != nil:
		u.Payload = w.Failure
	}
	b2, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return b.Publish(ctx, b2)
}
