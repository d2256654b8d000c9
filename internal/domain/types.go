package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingDraft     BookingStatus = "draft"
	BookingSubmitted BookingStatus = "submitted"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
)

// Category is a root-level seating section of a venue. It never carries a
// price; prices live on the leaf subcategories only.
//
// ID is zero while the node exists only in a local draft; the store assigns
// it on the first successful hierarchy save.
type Category struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Seats         int            `json:"seats"`
	Booked        int            `json:"booked"`
	Subcategories []*Subcategory `json:"subcategories"`
}

// Subcategory is a leaf seating block under a category. PriceCents is the
// per-seat price used to derive booking totals.
type Subcategory struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Seats      int    `json:"seats"`
	Booked     int    `json:"booked"`
	PriceCents int    `json:"price_cents"`
}

// Hierarchy is the full category tree of one venue. Category order is
// insertion order and significant only for display.
//
// Version is the store's optimistic-concurrency stamp: a save carrying a
// stale version is rejected so two editors cannot silently overwrite each
// other.
type Hierarchy struct {
	VenueID    int64       `json:"venue_id"`
	Version    int64       `json:"version"`
	Categories []*Category `json:"categories"`
}

// Available reports how many seats of the subcategory are still free.
func (s *Subcategory) Available() int {
	return s.Seats - s.Booked
}

// Clone returns a deep copy of the hierarchy. Editing sessions clone before
// mutating so a failed save can restore the last persisted state.
func (h *Hierarchy) Clone() *Hierarchy {
	if h == nil {
		return nil
	}
	cp := &Hierarchy{
		VenueID: h.VenueID,
		Version: h.Version,
	}
	for _, cat := range h.Categories {
		c := &Category{
			ID:     cat.ID,
			Name:   cat.Name,
			Seats:  cat.Seats,
			Booked: cat.Booked,
		}
		for _, sub := range cat.Subcategories {
			s := *sub
			c.Subcategories = append(c.Subcategories, &s)
		}
		cp.Categories = append(cp.Categories, c)
	}
	return cp
}

// Reference identifies the person sponsoring a complimentary pass.
type Reference struct {
	Name    string `json:"name"`
	Age     int    `json:"age"`
	Gender  string `json:"gender"`
	Contact string `json:"contact"`
}

// Booking is an allocation of seats from one subcategory to a named guest.
// SeatsRequested is immutable once the booking is confirmed; cancellation
// restores the subcategory's booked counter.
type Booking struct {
	ID              uuid.UUID     `json:"id"`
	EventID         int64         `json:"event_id"`
	VenueID         int64         `json:"venue_id"`
	CategoryID      int64         `json:"category_id"`
	SubcategoryID   int64         `json:"subcategory_id"`
	CategoryName    string        `json:"category_name"`
	SubcategoryName string        `json:"subcategory_name"`
	GuestName       string        `json:"guest_name"`
	SeatsRequested  int           `json:"seats_requested"`
	Reference       Reference     `json:"reference"`
	Department      string        `json:"department"`
	SubDepartment   string        `json:"sub_department"`
	TotalCents      int           `json:"total_cents"`
	BookingDate     time.Time     `json:"booking_date"`
	Status          BookingStatus `json:"status"`
}

// BookingBreakdown is one row of a report: seats grouped by category,
// subcategory and department.
type BookingBreakdown struct {
	CategoryName    string `json:"category_name"`
	SubcategoryName string `json:"subcategory_name"`
	Department      string `json:"department"`
	Seats           int    `json:"seats"`
	Bookings        int    `json:"bookings"`
}

// PersonBookingSummary aggregates all bookings sponsored by one reference
// person for an event.
type PersonBookingSummary struct {
	EventID    int64              `json:"event_id"`
	PersonName string             `json:"person_name"`
	TotalSeats int                `json:"total_seats"`
	Breakdown  []BookingBreakdown `json:"breakdown"`
}

// EventBookingSummary is the aggregate report across an event.
type EventBookingSummary struct {
	EventID    int64              `json:"event_id"`
	TotalSeats int                `json:"total_seats"`
	Breakdown  []BookingBreakdown `json:"breakdown"`
}

// VenueAvailability is the per-subcategory free-seat view of a venue.
type VenueAvailability struct {
	VenueID    int64               `json:"venue_id"`
	TotalSeats int                 `json:"total_seats"`
	TotalFree  int                 `json:"total_free"`
	Blocks     []BlockAvailability `json:"blocks"`
}

type BlockAvailability struct {
	CategoryName    string `json:"category_name"`
	SubcategoryName string `json:"subcategory_name"`
	Seats           int    `json:"seats"`
	Booked          int    `json:"booked"`
	Available       int    `json:"available"`
}
