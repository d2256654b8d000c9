package httpgin

import (
	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/hierarchy"
)

// HierarchyDocument is the wire form of a venue's draft tree. Booked
// counters are intentionally absent: the store owns them and a save never
// writes them.
type HierarchyDocument struct {
	Version    int64         `json:"version"`
	Categories []CategoryDoc `json:"categories" binding:"dive"`
}

type CategoryDoc struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name" binding:"required"`
	Seats         int              `json:"seats" binding:"gte=0"`
	Subcategories []SubcategoryDoc `json:"subcategories" binding:"dive"`
}

type SubcategoryDoc struct {
	ID         int64  `json:"id"`
	Name       string `json:"name" binding:"required"`
	Seats      int    `json:"seats" binding:"gte=0"`
	PriceCents int    `json:"price_cents" binding:"gte=0"`
}

func (d HierarchyDocument) toDomain(venueID int64) *domain.Hierarchy {
	h := &domain.Hierarchy{VenueID: venueID, Version: d.Version}
	for _, c := range d.Categories {
		cat := &domain.Category{ID: c.ID, Name: c.Name, Seats: c.Seats}
		for _, s := range c.Subcategories {
			cat.Subcategories = append(cat.Subcategories, &domain.Subcategory{
				ID:         s.ID,
				Name:       s.Name,
				Seats:      s.Seats,
				PriceCents: s.PriceCents,
			})
		}
		h.Categories = append(h.Categories, cat)
	}
	return h
}

type CreateVenueRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateVenueResponse struct {
	VenueID int64 `json:"venue_id"`
}

type ReferenceInput struct {
	Name    string `json:"name" binding:"required"`
	Age     int    `json:"age" binding:"gte=0"`
	Gender  string `json:"gender"`
	Contact string `json:"contact"`
}

type CreateBookingRequest struct {
	EventID       int64          `json:"event_id" binding:"required"`
	SubcategoryID int64          `json:"subcategory_id" binding:"required"`
	GuestName     string         `json:"guest_name" binding:"required"`
	Seats         int            `json:"seats" binding:"required,gt=0"`
	Reference     ReferenceInput `json:"reference" binding:"required"`
	Department    string         `json:"department"`
	SubDepartment string         `json:"sub_department"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// CapacityErrorResponse carries the free-seat count back to the form so the
// user can reduce the request.
type CapacityErrorResponse struct {
	Error     string `json:"error"`
	Available int    `json:"available"`
}

// ValidationErrorResponse maps violation keys to the offending nodes; the
// editor uses the keys to point at the exact field.
type ValidationErrorResponse struct {
	Error      string               `json:"error"`
	Violations hierarchy.Violations `json:"violations"`
}
