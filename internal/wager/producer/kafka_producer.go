package producer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/radieske/vrf-wager-platform/internal/games"
	sharedkafka "github.com/radieske/vrf-wager-platform/internal/shared/kafka"
	"github.com/radieske/vrf-wager-platform/internal/wager"
	"github.com/radieske/vrf-wager-platform/pkg/contracts/events"
)

// MessageWriter é o subconjunto do kafka.Writer usado aqui
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Topics struct {
	Placed     string
	Settled    string
	Failed     string
	OrphansDLQ string
}

// KafkaPublisher publica o ciclo de vida das apostas; é um observer do orquestrador
type KafkaPublisher struct {
	Writer MessageWriter
	Topics Topics
}

func NewKafkaPublisher(w MessageWriter, topics Topics) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topics: topics}
}

// OnTransition emite um evento para PLACED e para os estados terminais; os demais são ignorados
func (p *KafkaPublisher) OnTransition(ctx context.Context, w *wager.Wager, tr wager.Transition) error {
	var (
		topic   string
		payload any
	)
	switch tr.To {
	case wager.StatePlaced:
		topic, payload = p.Topics.Placed, placed(w, tr.At)
	case wager.StateResolved, wager.StateRefunded:
		topic, payload = p.Topics.Settled, settled(w, tr.At)
	case wager.StateFailed:
		topic, payload = p.Topics.Failed, failed(w, tr.At)
	default:
		return nil
	}
	return p.write(ctx, topic, w.ID, payload)
}

// PublishOrphan manda para a DLQ uma aposta que a reconciliação não conseguiu fechar
func (p *KafkaPublisher) PublishOrphan(ctx context.Context, w *wager.Wager, cause error) error {
	e := failed(w, time.Now().UTC())
	e.NeedsReconciliation = true
	if cause != nil {
		e.Error = cause.Error()
	}
	return p.write(ctx, p.Topics.OrphansDLQ, w.ID, e)
}

func (p *KafkaPublisher) write(ctx context.Context, topic, key string, payload any) error {
	msg, err := sharedkafka.JSONMessage(topic, key, payload)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, msg)
}

func placed(w *wager.Wager, at time.Time) events.WagerPlaced {
	return events.WagerPlaced{
		EventID:         uuid.NewString(),
		WagerID:         w.ID,
		Game:            w.Game,
		Player:          w.Player.String(),
		StakeLamports:   w.Stake,
		Stake:           games.FormatLamports(w.Stake),
		RandomnessRef:   w.RandomnessRef.String(),
		WagerAccountRef: w.WagerAccountRef.String(),
		PlaceSig:        w.PlaceSig,
		Ts:              at.UTC(),
	}
}

func settled(w *wager.Wager, at time.Time) events.WagerSettled {
	e := events.WagerSettled{
		EventID:          uuid.NewString(),
		WagerID:          w.ID,
		Game:             w.Game,
		Player:           w.Player.String(),
		State:            string(w.State),
		StakeLamports:    w.Stake,
		ReturnedLamports: w.Outcome.Returned(),
		Net:              games.FormatSigned(w.Outcome.Returned(), w.Stake),
		SettleSig:        w.SettleSig,
		Ts:               at.UTC(),
	}
	if w.Outcome != nil {
		e.Kind = string(w.Outcome.Kind)
	}
	return e
}

func failed(w *wager.Wager, at time.Time) events.WagerFailed {
	e := events.WagerFailed{
		EventID:       uuid.NewString(),
		WagerID:       w.ID,
		Game:          w.Game,
		Player:        w.Player.String(),
		State:         string(w.State),
		StakeLamports: w.Stake,
		Ts:            at.UTC(),
	}
	if f := w.Failure; f != nil {
		e.Step = f.Step
		e.Reason = string(f.Reason)
		e.Error = f.Error
		e.NeedsReconciliation = f.Reason.NeedsReconciliation()
	}
	return e
}
