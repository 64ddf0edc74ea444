package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bookinguc "courtsync/internal/modules/bookings/application/usecase"
	bookingdomain "courtsync/internal/modules/bookings/domain"
	notifuc "courtsync/internal/modules/notifications/application/usecase"
	notifdomain "courtsync/internal/modules/notifications/domain"
	"courtsync/internal/modules/realtime/application/port"
	"courtsync/internal/modules/realtime/domain"
	"courtsync/internal/shared/metrics"
)

// Hooks are caller-supplied callbacks invoked with the decoded payload for
// each event kind, after tenant filtering and before the store write. A nil
// hook is skipped; a panicking hook is contained and never stops the store
// write or later events.
type Hooks struct {
	OnBookingCreated    func(bookingdomain.Booking)
	OnBookingUpdated    func(bookingdomain.Booking)
	OnBookingCancelled  func(bookingdomain.Booking)
	OnSlotLocked        func(bookingdomain.SlotLock)
	OnSlotUnlocked      func(bookingdomain.SlotLock)
	OnLockExpired       func(bookingdomain.SlotLock)
	OnPaymentConfirmed  func(bookingdomain.Payment)
	OnPaymentFailed     func(bookingdomain.Payment)
	OnAdminNotification func(notifdomain.Notification)
}

// Dispatcher routes decoded envelopes into the domain stores. Events for a
// club other than the active one are discarded. Dispatch preserves arrival
// order: callers feed it from a single pump, and booking events flow through
// one batcher so a later event for the same id always supersedes an earlier
// one.
type Dispatcher struct {
	bookings      *bookinguc.BookingStore
	notifications *notifuc.NotificationStore
	hooks         Hooks
	batcher       *BookingBatcher
}

func NewDispatcher(bookings *bookinguc.BookingStore, notifications *notifuc.NotificationStore, hooks Hooks, debounce time.Duration) *Dispatcher {
	d := &Dispatcher{
		bookings:      bookings,
		notifications: notifications,
		hooks:         hooks,
	}
	d.batcher = NewBookingBatcher(debounce, d.bookings.UpsertAll)
	return d
}

// Dispatch applies one event. Decode failures are reported to the caller;
// hook panics are contained here so a broken callback cannot take down the
// transport pump.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *domain.Envelope) error {
	if ev == nil {
		return nil
	}
	if club := d.bookings.ClubID(); club != "" && ev.ClubID != "" && ev.ClubID != club {
		metrics.EventsDropped.WithLabelValues("tenant").Inc()
		slog.Debug("event for inactive club discarded", slog.String("event", ev.Kind.String()), slog.String("clubId", ev.ClubID), slog.String("activeClub", club))
		return nil
	}

	switch ev.Kind {
	case domain.EventBookingCreated:
		return d.applyBooking(ev, d.hooks.OnBookingCreated)
	case domain.EventBookingUpdated:
		return d.applyBooking(ev, d.hooks.OnBookingUpdated)
	case domain.EventBookingCancelled:
		return d.applyBooking(ev, d.hooks.OnBookingCancelled)
	case domain.EventSlotLocked:
		return d.applyLock(ev, d.hooks.OnSlotLocked, d.bookings.Lock)
	case domain.EventSlotUnlocked:
		return d.applyLock(ev, d.hooks.OnSlotUnlocked, d.bookings.Unlock)
	case domain.EventLockExpired:
		return d.applyLock(ev, d.hooks.OnLockExpired, d.bookings.Unlock)
	case domain.EventPaymentConfirmed:
		return d.applyPayment(ev, d.hooks.OnPaymentConfirmed)
	case domain.EventPaymentFailed:
		return d.applyPayment(ev, d.hooks.OnPaymentFailed)
	case domain.EventAdminNotification:
		return d.applyNotification(ctx, ev)
	case domain.EventUnknown:
		metrics.EventsDropped.WithLabelValues("unknown").Inc()
		slog.Warn("unknown event kind discarded", slog.String("event", ev.Name), slog.String("clubId", ev.ClubID))
		return nil
	default:
		metrics.EventsDropped.WithLabelValues("unknown").Inc()
		return nil
	}
}

// Flush forces any debounced booking writes through, then is a no-op until
// new events arrive.
func (d *Dispatcher) Flush() {
	d.batcher.Flush()
}

// Close flushes and stops the batcher.
func (d *Dispatcher) Close() {
	d.batcher.Close()
}

func (d *Dispatcher) applyBooking(ev *domain.Envelope, hook func(bookingdomain.Booking)) error {
	var booking bookingdomain.Booking
	if err := json.Unmarshal(ev.Payload, &booking); err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return fmt.Errorf("decode %s payload: %w", ev.Kind, err)
	}
	invokeContained(ev.Kind, func() {
		if hook != nil {
			hook(booking)
		}
	})
	d.batcher.Add(booking)
	metrics.EventsDispatched.WithLabelValues(ev.Kind.String()).Inc()
	return nil
}

func (d *Dispatcher) applyLock(ev *domain.Envelope, hook func(bookingdomain.SlotLock), apply func(bookingdomain.SlotLock)) error {
	var lock bookingdomain.SlotLock
	if err := json.Unmarshal(ev.Payload, &lock); err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return fmt.Errorf("decode %s payload: %w", ev.Kind, err)
	}
	invokeContained(ev.Kind, func() {
		if hook != nil {
			hook(lock)
		}
	})
	apply(lock)
	metrics.EventsDispatched.WithLabelValues(ev.Kind.String()).Inc()
	return nil
}

func (d *Dispatcher) applyPayment(ev *domain.Envelope, hook func(bookingdomain.Payment)) error {
	var payment bookingdomain.Payment
	if err := json.Unmarshal(ev.Payload, &payment); err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return fmt.Errorf("decode %s payload: %w", ev.Kind, err)
	}
	invokeContained(ev.Kind, func() {
		if hook != nil {
			hook(payment)
		}
	})
	d.bookings.ApplyPayment(payment)
	metrics.EventsDispatched.WithLabelValues(ev.Kind.String()).Inc()
	return nil
}

func (d *Dispatcher) applyNotification(ctx context.Context, ev *domain.Envelope) error {
	var notification notifdomain.Notification
	if err := json.Unmarshal(ev.Payload, &notification); err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return fmt.Errorf("decode %s payload: %w", ev.Kind, err)
	}
	if notification.ClubID == "" {
		notification.ClubID = ev.ClubID
	}
	saved := d.notifications.Append(ctx, notification)
	invokeContained(ev.Kind, func() {
		if d.hooks.OnAdminNotification != nil {
			d.hooks.OnAdminNotification(saved)
		}
	})
	metrics.EventsDispatched.WithLabelValues(ev.Kind.String()).Inc()
	return nil
}

func invokeContained(kind domain.EventKind, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("event hook panic", slog.String("event", kind.String()), slog.Any("error", r))
		}
	}()
	fn()
}

var _ port.EventSink = (*Dispatcher)(nil)
