package usecase

import (
	"sort"
	"sync"
	"time"

	"courtsync/internal/modules/bookings/domain"
)

// BookingStore holds the live booking state for one active club. All writes
// go through upsert-by-id, whether they originate from realtime events or
// REST mutations, so last-writer-wins by handling order applies uniformly.
// Applying the same full-record event twice leaves the store unchanged.
type BookingStore struct {
	mu       sync.RWMutex
	clubID   string
	bookings map[string]domain.Booking
	locks    map[string]domain.SlotLock
	payments map[string]domain.Payment
}

func NewBookingStore(clubID string) *BookingStore {
	return &BookingStore{
		clubID:   clubID,
		bookings: make(map[string]domain.Booking),
		locks:    make(map[string]domain.SlotLock),
		payments: make(map[string]domain.Payment),
	}
}

// ClubID returns the tenant this store is bound to; events for other clubs
// must not reach it.
func (s *BookingStore) ClubID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clubID
}

// Upsert replaces the record at the booking's id, creating it if absent.
func (s *BookingStore) Upsert(b domain.Booking) {
	if b.ID == "" {
		return
	}
	s.mu.Lock()
	s.bookings[b.ID] = b
	s.mu.Unlock()
}

// UpsertAll applies a batch of bookings in order.
func (s *BookingStore) UpsertAll(batch []domain.Booking) {
	s.mu.Lock()
	for _, b := range batch {
		if b.ID == "" {
			continue
		}
		s.bookings[b.ID] = b
	}
	s.mu.Unlock()
}

// ReplaceAll swaps the whole booking set for a freshly fetched authoritative
// list, used by the reconnect resync.
func (s *BookingStore) ReplaceAll(batch []domain.Booking) {
	next := make(map[string]domain.Booking, len(batch))
	for _, b := range batch {
		if b.ID != "" {
			next[b.ID] = b
		}
	}
	s.mu.Lock()
	s.bookings = next
	s.mu.Unlock()
}

// Booking returns the current record for id.
func (s *BookingStore) Booking(id string) (domain.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	return b, ok
}

// Bookings returns every booking ordered by start time.
func (s *BookingStore) Bookings() []domain.Booking {
	s.mu.RLock()
	out := make([]domain.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// BookingsForCourt filters the snapshot to one court.
func (s *BookingStore) BookingsForCourt(courtID string) []domain.Booking {
	all := s.Bookings()
	out := all[:0]
	for _, b := range all {
		if b.CourtID == courtID {
			out = append(out, b)
		}
	}
	return out
}

func (s *BookingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}

// Lock records a slot hold, replacing any previous hold on the same slot.
func (s *BookingStore) Lock(l domain.SlotLock) {
	s.mu.Lock()
	s.locks[l.Key()] = l
	s.mu.Unlock()
}

// Unlock drops the hold for the slot, if any.
func (s *BookingStore) Unlock(l domain.SlotLock) {
	s.mu.Lock()
	delete(s.locks, l.Key())
	s.mu.Unlock()
}

// ActiveLocks returns the holds that have not expired as of now.
func (s *BookingStore) ActiveLocks(now time.Time) []domain.SlotLock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SlotLock, 0, len(s.locks))
	for _, l := range s.locks {
		if l.ExpiresAt.After(now) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// ApplyPayment records the settlement outcome keyed by booking id.
func (s *BookingStore) ApplyPayment(p domain.Payment) {
	if p.BookingID == "" {
		return
	}
	s.mu.Lock()
	s.payments[p.BookingID] = p
	s.mu.Unlock()
}

// Payment returns the settlement for a booking.
func (s *BookingStore) Payment(bookingID string) (domain.Payment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[bookingID]
	return p, ok
}
