package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is the full current state of a reservation. Realtime events carry
// the whole record, never a delta, which is what makes event application
// idempotent.
type Booking struct {
	ID         string        `json:"id"`
	ClubID     string        `json:"clubId"`
	CourtID    string        `json:"courtId"`
	UserID     string        `json:"userId"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Status     BookingStatus `json:"status"`
	PriceCents int64         `json:"priceCents,omitempty"`
	UpdatedAt  time.Time     `json:"updatedAt,omitempty"`
}

// SlotLock marks a court slot as held by a user mid-wizard, before the
// booking is committed.
type SlotLock struct {
	ClubID    string    `json:"clubId"`
	CourtID   string    `json:"courtId"`
	Slot      time.Time `json:"slot"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Key identifies the slot a lock covers; one lock per court+slot.
func (l SlotLock) Key() string {
	return l.CourtID + "|" + l.Slot.UTC().Format(time.RFC3339)
}

type PaymentStatus string

const (
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is the settlement outcome for a booking.
type Payment struct {
	ID        string        `json:"id"`
	BookingID string        `json:"bookingId"`
	ClubID    string        `json:"clubId"`
	Status    PaymentStatus `json:"status"`
	Amount    int64         `json:"amountCents"`
	Currency  string        `json:"currency,omitempty"`
}
