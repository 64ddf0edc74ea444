package broker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"courtsync/internal/modules/realtime/application/port"
	"courtsync/internal/modules/realtime/domain"
	"courtsync/internal/shared/metrics"
)

// KafkaFeed is the alternate event transport. Deployments that publish
// domain events to Kafka instead of the upstream websocket point the
// gateway at their brokers and the same dispatcher applies the events.
type KafkaFeed struct {
	reader *kafka.Reader
}

func NewKafkaFeed(brokers []string, groupID, topic string) *KafkaFeed {
	return &KafkaFeed{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}),
	}
}

func (f *KafkaFeed) Close() error {
	return f.reader.Close()
}

// Consume reads records until the context is cancelled, decoding each one
// into an envelope and handing it to the sink. Undecodable records are
// counted and skipped, a poison message must not stall the partition.
func (f *KafkaFeed) Consume(ctx context.Context, sink port.EventSink) error {
	for {
		m, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("kafka read error", slog.Any("error", err))
			continue
		}
		env, err := decodeRecord(m)
		if err != nil {
			metrics.EventsDropped.WithLabelValues("decode").Inc()
			slog.Warn("kafka record rejected",
				slog.String("topic", m.Topic),
				slog.Int("partition", m.Partition),
				slog.Int64("offset", m.Offset),
				slog.Any("error", err),
			)
			continue
		}
		if err := sink.Dispatch(ctx, env); err != nil {
			slog.Warn("event dispatch failed", slog.String("event", env.Name), slog.Any("error", err))
		}
	}
}

// decodeRecord accepts either a full wire frame in the record value or a
// bare entity payload. For bare payloads the topic names the kind
// ("booking.created" becomes booking_created) and a clubId header scopes
// the event.
func decodeRecord(m kafka.Message) (*domain.Envelope, error) {
	if env, err := domain.DecodeEnvelope(m.Value); err == nil && env.Kind != domain.EventUnknown {
		return env, nil
	}

	name := strings.ReplaceAll(strings.TrimSpace(m.Topic), ".", "_")
	kind := domain.ParseEventKind(name)
	if kind == domain.EventUnknown {
		return nil, domain.ErrBadEnvelope
	}
	env := &domain.Envelope{Kind: kind, Name: kind.String(), Payload: m.Value}
	for _, h := range m.Headers {
		if strings.EqualFold(h.Key, "clubId") {
			env.ClubID = strings.TrimSpace(string(h.Value))
		}
	}
	return env, nil
}
