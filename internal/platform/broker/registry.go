package broker

import (
	"context"
	"log/slog"
	"strings"

	"courtsync/internal/modules/realtime/application/port"
)

// Start spins one consumer per topic. With no brokers configured the
// gateway runs on the websocket feed alone; kafka.NewReader panics on an
// empty broker list, so this is checked up front.
func Start(ctx context.Context, sink port.EventSink, brokers []string, groupID string, topics []string) {
	if len(brokers) == 0 {
		return
	}
	if strings.TrimSpace(groupID) == "" {
		groupID = "courtsync"
	}
	for _, topic := range topics {
		if strings.TrimSpace(topic) == "" {
			continue
		}
		go func(tp string) {
			feed := NewKafkaFeed(brokers, groupID, tp)
			defer feed.Close()
			if err := feed.Consume(ctx, sink); err != nil && ctx.Err() == nil {
				slog.Error("kafka consumer stopped", slog.String("topic", tp), slog.Any("error", err))
			}
		}(topic)
	}
}
