package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventKind enumerates every domain event the channel can deliver. The
// dispatcher switches exhaustively over this set, so adding a kind is a
// compile-checked change rather than a stringly-typed one.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventBookingCreated
	EventBookingUpdated
	EventBookingCancelled
	EventSlotLocked
	EventSlotUnlocked
	EventLockExpired
	EventPaymentConfirmed
	EventPaymentFailed
	EventAdminNotification
)

var eventNames = map[EventKind]string{
	EventBookingCreated:    "booking_created",
	EventBookingUpdated:    "booking_updated",
	EventBookingCancelled:  "booking_cancelled",
	EventSlotLocked:        "slot_locked",
	EventSlotUnlocked:      "slot_unlocked",
	EventLockExpired:       "lock_expired",
	EventPaymentConfirmed:  "payment_confirmed",
	EventPaymentFailed:     "payment_failed",
	EventAdminNotification: "admin_notification",
}

var eventKinds = func() map[string]EventKind {
	out := make(map[string]EventKind, len(eventNames))
	for kind, name := range eventNames {
		out[name] = kind
	}
	return out
}()

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseEventKind maps a wire event name onto its kind; unrecognized names
// yield EventUnknown.
func ParseEventKind(name string) EventKind {
	if kind, ok := eventKinds[strings.ToLower(strings.TrimSpace(name))]; ok {
		return kind
	}
	return EventUnknown
}

// ErrBadEnvelope reports a frame that could not be decoded into an envelope.
var ErrBadEnvelope = errors.New("malformed event envelope")

// Envelope is one domain event as delivered by the transport. Payload holds
// the full current entity for the event's kind; there is no sequence number,
// so ordering is by delivery only.
type Envelope struct {
	Kind       EventKind
	Name       string
	ClubID     string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

type wireEvent struct {
	Event  string          `json:"event"`
	ClubID string          `json:"clubId"`
	Data   json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a transport frame of the shape
// {"event": "...", "clubId": "...", "data": {...}}.
func DecodeEnvelope(frame []byte) (*Envelope, error) {
	var raw wireEvent
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	name := strings.TrimSpace(raw.Event)
	if name == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrBadEnvelope)
	}
	return &Envelope{
		Kind:       ParseEventKind(name),
		Name:       name,
		ClubID:     strings.TrimSpace(raw.ClubID),
		Payload:    raw.Data,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// EncodeEnvelope renders an envelope back into a transport frame; the
// downstream hub reuses it when re-broadcasting normalized events.
// Known kinds always encode under their canonical name.
func EncodeEnvelope(ev *Envelope) ([]byte, error) {
	name := ev.Kind.String()
	if ev.Kind == EventUnknown && ev.Name != "" {
		name = ev.Name
	}
	return json.Marshal(wireEvent{Event: name, ClubID: ev.ClubID, Data: ev.Payload})
}
