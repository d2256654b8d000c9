package postgres

import (
	"sort"

	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/repository"
)

// categoryRow and subcategoryRow are the flat wire shape of a hierarchy as
// it is stored. Position keeps the tree's display order; CategoryPos links a
// subcategory to its parent by ordinal, which stays valid even while the
// parent is unsaved and has no id yet.
type categoryRow struct {
	ID       int64
	Name     string
	Seats    int
	Booked   int
	Position int
}

type subcategoryRow struct {
	ID          int64
	CategoryID  int64
	CategoryPos int
	Name        string
	Seats       int
	Booked      int
	PriceCents  int
	Position    int
}

// flattenHierarchy turns a tree into its flat row form. buildHierarchy is
// its exact inverse: structure, seat counts and present ids all survive the
// round trip.
func flattenHierarchy(h *domain.Hierarchy) ([]categoryRow, []subcategoryRow) {
	var cats []categoryRow
	var subs []subcategoryRow

	for i, cat := range h.Categories {
		cats = append(cats, categoryRow{
			ID:       cat.ID,
			Name:     cat.Name,
			Seats:    cat.Seats,
			Booked:   cat.Booked,
			Position: i,
		})
		for j, sub := range cat.Subcategories {
			subs = append(subs, subcategoryRow{
				ID:          sub.ID,
				CategoryID:  cat.ID,
				CategoryPos: i,
				Name:        sub.Name,
				Seats:       sub.Seats,
				Booked:      sub.Booked,
				PriceCents:  sub.PriceCents,
				Position:    j,
			})
		}
	}

	return cats, subs
}

// verifyOwnership rejects a draft that references rows outside the venue's
// current tree. Every kept id must resolve against current; a foreign or
// stale id would otherwise be re-parented into this venue, taking its booked
// counter and bookings along.
//
// Returns repository.ErrNotFound for an id the venue does not own.
func verifyOwnership(current *domain.Hierarchy, cats []categoryRow, subs []subcategoryRow) error {
	catIDs := make(map[int64]struct{}, len(current.Categories))
	subIDs := make(map[int64]struct{})
	for _, cat := range current.Categories {
		catIDs[cat.ID] = struct{}{}
		for _, sub := range cat.Subcategories {
			subIDs[sub.ID] = struct{}{}
		}
	}

	for _, row := range cats {
		if row.ID == 0 {
			continue
		}
		if _, ok := catIDs[row.ID]; !ok {
			return repository.ErrNotFound
		}
	}
	for _, row := range subs {
		if row.ID == 0 {
			continue
		}
		if _, ok := subIDs[row.ID]; !ok {
			return repository.ErrNotFound
		}
	}

	return nil
}

// buildHierarchy reassembles a tree from flat rows, restoring display order
// from the position columns.
func buildHierarchy(venueID, version int64, cats []categoryRow, subs []subcategoryRow) *domain.Hierarchy {
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Position < cats[j].Position })
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].CategoryPos != subs[j].CategoryPos {
			return subs[i].CategoryPos < subs[j].CategoryPos
		}
		return subs[i].Position < subs[j].Position
	})

	h := &domain.Hierarchy{VenueID: venueID, Version: version}

	byPos := make(map[int]*domain.Category, len(cats))
	for _, row := range cats {
		cat := &domain.Category{
			ID:     row.ID,
			Name:   row.Name,
			Seats:  row.Seats,
			Booked: row.Booked,
		}
		h.Categories = append(h.Categories, cat)
		byPos[row.Position] = cat
	}

	for _, row := range subs {
		cat, ok := byPos[row.CategoryPos]
		if !ok {
			continue // orphan row, parent was deleted
		}
		cat.Subcategories = append(cat.Subcategories, &domain.Subcategory{
			ID:         row.ID,
			Name:       row.Name,
			Seats:      row.Seats,
			Booked:     row.Booked,
			PriceCents: row.PriceCents,
		})
	}

	return h
}
