package port

import (
	"context"

	"courtsync/internal/modules/realtime/domain"
)

// EventSink consumes decoded domain events from any transport (the upstream
// socket's read pump or a Kafka consumer). Implementations must not block
// for longer than a store write and must never panic through this boundary.
type EventSink interface {
	Dispatch(ctx context.Context, ev *domain.Envelope) error
}
