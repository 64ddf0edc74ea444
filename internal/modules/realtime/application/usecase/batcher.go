package usecase

import (
	"sync"
	"time"

	"courtsync/internal/modules/bookings/domain"
)

// BookingBatcher coalesces bursts of booking events into a single store
// write. Within one window the last event per booking id wins, which matches
// the store's upsert semantics; cross-id order inside a window is
// irrelevant because every event carries the full entity. A window of zero
// disables debouncing and applies each event synchronously.
type BookingBatcher struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]domain.Booking
	order   []string
	timer   *time.Timer
	flush   func([]domain.Booking)
	closed  bool
}

func NewBookingBatcher(window time.Duration, flush func([]domain.Booking)) *BookingBatcher {
	return &BookingBatcher{
		window:  window,
		pending: make(map[string]domain.Booking),
		flush:   flush,
	}
}

// Add queues a booking for the next flush, replacing any pending event for
// the same id.
func (b *BookingBatcher) Add(booking domain.Booking) {
	if booking.ID == "" {
		return
	}
	if b.window <= 0 {
		b.flush([]domain.Booking{booking})
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if _, ok := b.pending[booking.ID]; !ok {
		b.order = append(b.order, booking.ID)
	}
	b.pending[booking.ID] = booking
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.Flush)
	}
	b.mu.Unlock()
}

// Flush applies everything pending immediately.
func (b *BookingBatcher) Flush() {
	b.mu.Lock()
	batch := b.drainLocked()
	b.mu.Unlock()
	if len(batch) > 0 {
		b.flush(batch)
	}
}

// Close cancels the window timer and flushes whatever is pending; the
// batcher accepts no further events.
func (b *BookingBatcher) Close() {
	b.mu.Lock()
	b.closed = true
	batch := b.drainLocked()
	b.mu.Unlock()
	if len(batch) > 0 {
		b.flush(batch)
	}
}

func (b *BookingBatcher) drainLocked() []domain.Booking {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		return nil
	}
	batch := make([]domain.Booking, 0, len(b.pending))
	for _, id := range b.order {
		if booking, ok := b.pending[id]; ok {
			batch = append(batch, booking)
		}
	}
	b.pending = make(map[string]domain.Booking)
	b.order = b.order[:0]
	return batch
}
