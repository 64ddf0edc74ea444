package usecase

import (
	"testing"
	"time"

	"courtsync/internal/modules/bookings/domain"
)

func TestUpsertLastWriterWins(t *testing.T) {
	store := NewBookingStore("club-1")

	created := domain.Booking{ID: "bk-1", ClubID: "club-1", CourtID: "court-1", Status: domain.BookingPending}
	updated := created
	updated.Status = domain.BookingConfirmed

	store.Upsert(created)
	store.Upsert(updated)

	got, ok := store.Booking("bk-1")
	if !ok {
		t.Fatal("booking missing")
	}
	if got.Status != domain.BookingConfirmed {
		t.Fatalf("expected the later write to win, got %s", got.Status)
	}
	if store.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", store.Len())
	}
}

func TestUpsertDuplicateIsNoOp(t *testing.T) {
	store := NewBookingStore("club-1")
	b := domain.Booking{ID: "bk-1", ClubID: "club-1", Status: domain.BookingConfirmed}

	store.Upsert(b)
	before := store.Bookings()
	store.Upsert(b)
	after := store.Bookings()

	if len(before) != len(after) {
		t.Fatalf("duplicate apply changed store size: %d vs %d", len(before), len(after))
	}
	if before[0] != after[0] {
		t.Fatalf("duplicate apply changed record: %+v vs %+v", before[0], after[0])
	}
}

func TestBookingsSortedByStart(t *testing.T) {
	store := NewBookingStore("club-1")
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.Upsert(domain.Booking{ID: "bk-2", Start: base.Add(2 * time.Hour)})
	store.Upsert(domain.Booking{ID: "bk-1", Start: base})

	got := store.Bookings()
	if got[0].ID != "bk-1" || got[1].ID != "bk-2" {
		t.Fatalf("bookings not ordered by start: %+v", got)
	}
}

func TestReplaceAllSwapsState(t *testing.T) {
	store := NewBookingStore("club-1")
	store.Upsert(domain.Booking{ID: "bk-old"})

	store.ReplaceAll([]domain.Booking{{ID: "bk-new-1"}, {ID: "bk-new-2"}})

	if _, ok := store.Booking("bk-old"); ok {
		t.Fatal("resync should drop entries absent upstream")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 entries after resync, got %d", store.Len())
	}
}

func TestLockLifecycle(t *testing.T) {
	store := NewBookingStore("club-1")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lock := domain.SlotLock{ClubID: "club-1", CourtID: "court-1", Slot: now, ExpiresAt: now.Add(2 * time.Minute)}

	store.Lock(lock)
	if got := store.ActiveLocks(now); len(got) != 1 {
		t.Fatalf("expected one active lock, got %d", len(got))
	}
	if got := store.ActiveLocks(now.Add(3 * time.Minute)); len(got) != 0 {
		t.Fatalf("expired lock still active: %+v", got)
	}

	store.Unlock(lock)
	if got := store.ActiveLocks(now); len(got) != 0 {
		t.Fatalf("unlocked slot still held: %+v", got)
	}
}

func TestApplyPaymentKeyedByBooking(t *testing.T) {
	store := NewBookingStore("club-1")
	store.ApplyPayment(domain.Payment{ID: "pay-1", BookingID: "bk-1", Status: domain.PaymentFailed})
	store.ApplyPayment(domain.Payment{ID: "pay-2", BookingID: "bk-1", Status: domain.PaymentConfirmed})

	p, ok := store.Payment("bk-1")
	if !ok {
		t.Fatal("payment missing")
	}
	if p.ID != "pay-2" || p.Status != domain.PaymentConfirmed {
		t.Fatalf("expected the retried payment to win: %+v", p)
	}
}

func TestBookingsForCourtFilters(t *testing.T) {
	store := NewBookingStore("club-1")
	store.Upsert(domain.Booking{ID: "bk-1", CourtID: "court-1"})
	store.Upsert(domain.Booking{ID: "bk-2", CourtID: "court-2"})

	got := store.BookingsForCourt("court-1")
	if len(got) != 1 || got[0].ID != "bk-1" {
		t.Fatalf("court filter wrong: %+v", got)
	}
}
