// Package booking decides admissibility of complimentary-pass bookings
// against the seating tree and computes their seat and price effects.
package booking

import (
	"time"

	"github.com/venuepass/venuepass/internal/domain"
)

// Request is a draft booking as collected by the caller; it has not touched
// the tree yet.
type Request struct {
	EventID        int64
	VenueID        int64
	GuestName      string
	SeatsRequested int
	Reference      domain.Reference
	Department     string
	SubDepartment  string
}

// Allocate checks the request against the subcategory's current counters and
// returns the booking record to persist. It never succeeds when
// seatsRequested exceeds sub.Available().
//
// On success the caller must treat the returned booking plus the increment
// of sub.Booked as one logical transaction: Commit applies the increment
// once the durable store has accepted the record, and nothing is applied on
// failure. The client-side check here is a pre-check only; the store's own
// capacity check stays authoritative.
func Allocate(cat *domain.Category, sub *domain.Subcategory, req Request) (*domain.Booking, error) {
	if req.SeatsRequested < 1 {
		return nil, ErrNoSeatsRequested
	}

	available := sub.Available()
	if req.SeatsRequested > available {
		return nil, InsufficientCapacityError{
			Available: available,
			Requested: req.SeatsRequested,
		}
	}

	return &domain.Booking{
		EventID:         req.EventID,
		VenueID:         req.VenueID,
		CategoryID:      cat.ID,
		SubcategoryID:   sub.ID,
		CategoryName:    cat.Name,
		SubcategoryName: sub.Name,
		GuestName:       req.GuestName,
		SeatsRequested:  req.SeatsRequested,
		Reference:       req.Reference,
		Department:      req.Department,
		SubDepartment:   req.SubDepartment,
		TotalCents:      req.SeatsRequested * sub.PriceCents,
		BookingDate:     time.Now(),
		Status:          domain.BookingDraft,
	}, nil
}

// Commit applies the seat effect of a booking the store has accepted and
// marks it confirmed. Post-condition: sub.Booked <= sub.Seats, because
// Allocate refused anything beyond the available count.
func Commit(sub *domain.Subcategory, b *domain.Booking) {
	sub.Booked += b.SeatsRequested
	b.Status = domain.BookingConfirmed
}

// Release undoes the seat effect of a confirmed booking, e.g. on
// cancellation, restoring the subcategory's booked counter.
func Release(sub *domain.Subcategory, b *domain.Booking) {
	sub.Booked -= b.SeatsRequested
	if sub.Booked < 0 {
		sub.Booked = 0
	}
}
