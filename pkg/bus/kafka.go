package bus

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"
	"github.com/rs/zerolog"
)

// Kafka wraps an InProc bus with a side-channel publish to a Kafka
// topic, for deployments that run multiple agentcore processes sharing
// one Session and needing StateChanged/ConnectionStatusChanged fan-out
// across process boundaries (SPEC_FULL.md domain stack). In-process
// subscribers still get synchronous, registration-ordered delivery
// exactly as InProc provides; the Kafka write is a fire-and-forget
// side effect of Publish, never a precondition for local delivery.
type Kafka struct {
	*InProc
	writer *kafka.Writer
	topic  string
	log    zerolog.Logger
}

// NewKafka builds a Kafka-backed Bus. brokers and topic come from
// config.BusConfig.KafkaBrokers/KafkaTopic.
func NewKafka(brokers []string, topic string, log zerolog.Logger) *Kafka {
	return &Kafka{
		InProc: NewInProc(log),
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
		log:   log,
	}
}

type wireEvent struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Publish delivers event locally via InProc, then best-effort mirrors
// it to the Kafka topic for other processes' consumers. A marshal or
// send failure is logged, not returned: local subscribers must not be
// starved by a transport outage.
func (k *Kafka) Publish(event Event) {
	k.InProc.Publish(event)

	payload, err := json.Marshal(event)
	if err != nil {
		k.log.Error().Err(err).Str("event_kind", string(event.Kind())).Msg("failed to marshal event for kafka")
		return
	}
	wire, err := json.Marshal(wireEvent{Kind: event.Kind(), Payload: payload})
	if err != nil {
		k.log.Error().Err(err).Msg("failed to marshal wire event for kafka")
		return
	}

	if err := k.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(event.Kind()),
		Value: wire,
	}); err != nil {
		k.log.Error().Err(err).Str("topic", k.topic).Msg("failed to publish event to kafka")
	}
}

func (k *Kafka) Close() error {
	_ = k.InProc.Close()
	return k.writer.Close()
}

// DecodeWireEvent reconstructs a concrete Event from a Kafka message
// body produced by Publish, for a consuming process's reader loop.
func DecodeWireEvent(data []byte) (Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode wire event envelope: %w", err)
	}

	switch wire.Kind {
	case KindConnectionStatusChanged:
		var e ConnectionStatusChanged
		return e, json.Unmarshal(wire.Payload, &e)
	case KindReconnectProgress:
		var e ReconnectProgress
		return e, json.Unmarshal(wire.Payload, &e)
	case KindArtifactsFetched:
		var e ArtifactsFetched
		return e, json.Unmarshal(wire.Payload, &e)
	case KindStateChanged:
		var e StateChanged
		return e, json.Unmarshal(wire.Payload, &e)
	default:
		return nil, fmt.Errorf("unknown event kind %q", wire.Kind)
	}
}
