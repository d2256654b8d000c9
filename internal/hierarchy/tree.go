// Package hierarchy implements the seating capacity tree of a venue: a
// two-level structure of root categories and leaf subcategories with seat
// counts, plus the validation rules that guard it before persistence.
//
// Mutations follow a two-phase validate-then-commit pattern: callers run the
// explicit Check* step (sibling name uniqueness) before the mutation, and the
// mutation itself does not re-check. Full legality, including capacity
// containment, is re-verified by Validate before every save.
package hierarchy

import (
	"strconv"
	"strings"

	"github.com/venuepass/venuepass/internal/domain"
)

// Path addresses a node by indices from the root: {i} is the i-th root
// category, {i, j} the j-th subcategory under it.
type Path []int

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return "/" + strings.Join(parts, "/")
}

// Tree wraps one venue's hierarchy for editing. A Tree is exclusively owned
// by a single editing session; it is not safe for concurrent use.
type Tree struct {
	h *domain.Hierarchy
}

// NewTree starts an empty draft tree for the venue.
func NewTree(venueID int64) *Tree {
	return &Tree{h: &domain.Hierarchy{VenueID: venueID}}
}

// Wrap adopts an existing hierarchy, e.g. one fetched from the repository.
func Wrap(h *domain.Hierarchy) *Tree {
	if h == nil {
		panic("hierarchy: Wrap called with nil hierarchy")
	}
	return &Tree{h: h}
}

// Hierarchy returns the underlying tree.
func (t *Tree) Hierarchy() *domain.Hierarchy { return t.h }

// Category resolves a root path. Returns PathNotFoundError if the index is
// out of range or the path is not root-shaped.
func (t *Tree) Category(p Path) (*domain.Category, error) {
	if len(p) != 1 || p[0] < 0 || p[0] >= len(t.h.Categories) {
		return nil, PathNotFoundError{Path: p}
	}
	return t.h.Categories[p[0]], nil
}

// Subcategory resolves a leaf path.
func (t *Tree) Subcategory(p Path) (*domain.Subcategory, error) {
	if len(p) != 2 {
		return nil, PathNotFoundError{Path: p}
	}
	cat, err := t.Category(p[:1])
	if err != nil {
		return nil, PathNotFoundError{Path: p}
	}
	if p[1] < 0 || p[1] >= len(cat.Subcategories) {
		return nil, PathNotFoundError{Path: p}
	}
	return cat.Subcategories[p[1]], nil
}

// CheckRootName is the validation half of adding or renaming a root
// category: it fails with DuplicateNameError when name collides
// case-insensitively with an existing root, or ErrEmptyName when blank.
func (t *Tree) CheckRootName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	for _, cat := range t.h.Categories {
		if strings.EqualFold(cat.Name, name) {
			return DuplicateNameError{Name: name}
		}
	}
	return nil
}

// CheckSubcategoryName validates a prospective subcategory name against its
// siblings under the category at parent.
func (t *Tree) CheckSubcategoryName(parent Path, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	cat, err := t.Category(parent)
	if err != nil {
		return err
	}
	for _, sub := range cat.Subcategories {
		if strings.EqualFold(sub.Name, name) {
			return DuplicateNameError{Name: name}
		}
	}
	return nil
}

// AddRoot appends a new unsaved root category (zero ID, no children, zero
// booked). It does not re-check name uniqueness; run CheckRootName first.
func (t *Tree) AddRoot(name string, seats int) (*domain.Category, error) {
	if seats < 0 {
		return nil, ErrNegativeSeats
	}
	cat := &domain.Category{Name: name, Seats: seats}
	t.h.Categories = append(t.h.Categories, cat)
	return cat, nil
}

// AddSubcategory appends a new unsaved leaf under the category at parent.
// Capacity containment is not enforced here; an overflow introduced by the
// new leaf surfaces at validation time.
func (t *Tree) AddSubcategory(parent Path, name string, seats, priceCents int) (*domain.Subcategory, error) {
	if seats < 0 {
		return nil, ErrNegativeSeats
	}
	if priceCents < 0 {
		return nil, ErrNegativePrice
	}
	cat, err := t.Category(parent)
	if err != nil {
		return nil, err
	}
	sub := &domain.Subcategory{Name: name, Seats: seats, PriceCents: priceCents}
	cat.Subcategories = append(cat.Subcategories, sub)
	return sub, nil
}

// Delete removes the node at p, cascading over its entire subtree. The
// operation is unconditional once invoked; confirmation is the caller's
// concern.
func (t *Tree) Delete(p Path) error {
	switch len(p) {
	case 1:
		if _, err := t.Category(p); err != nil {
			return err
		}
		t.h.Categories = append(t.h.Categories[:p[0]], t.h.Categories[p[0]+1:]...)
		return nil
	case 2:
		cat, err := t.Category(p[:1])
		if err != nil {
			return PathNotFoundError{Path: p}
		}
		if _, err := t.Subcategory(p); err != nil {
			return err
		}
		cat.Subcategories = append(cat.Subcategories[:p[1]], cat.Subcategories[p[1]+1:]...)
		return nil
	default:
		return PathNotFoundError{Path: p}
	}
}

// EditLeaf renames or resizes the subcategory at p in place. Resizing can
// create a capacity overflow at the parent; the edit still succeeds and the
// overflow is surfaced by Validate, so the editor can show it live.
func (t *Tree) EditLeaf(p Path, name string, seats int) error {
	if seats < 0 {
		return ErrNegativeSeats
	}
	sub, err := t.Subcategory(p)
	if err != nil {
		return err
	}
	sub.Name = name
	sub.Seats = seats
	return nil
}

// EditCategory renames or resizes the root category at p in place. Like
// EditLeaf, shrinking below the children's total is allowed here and caught
// at validation time.
func (t *Tree) EditCategory(p Path, name string, seats int) error {
	if seats < 0 {
		return ErrNegativeSeats
	}
	cat, err := t.Category(p)
	if err != nil {
		return err
	}
	cat.Name = name
	cat.Seats = seats
	return nil
}

// UsedSeats is the total seats handed out to the category's immediate
// children. Containment is checked level by level, never recursively.
func UsedSeats(cat *domain.Category) int {
	used := 0
	for _, sub := range cat.Subcategories {
		used += sub.Seats
	}
	return used
}

// RemainingSeats is the category's unallocated capacity. A negative value
// signals overflow.
func RemainingSeats(cat *domain.Category) int {
	return cat.Seats - UsedSeats(cat)
}

// Availability flattens the tree into the per-subcategory free-seat view.
func Availability(h *domain.Hierarchy) *domain.VenueAvailability {
	out := &domain.VenueAvailability{VenueID: h.VenueID}
	for _, cat := range h.Categories {
		for _, sub := range cat.Subcategories {
			out.TotalSeats += sub.Seats
			out.TotalFree += sub.Available()
			out.Blocks = append(out.Blocks, domain.BlockAvailability{
				CategoryName:    cat.Name,
				SubcategoryName: sub.Name,
				Seats:           sub.Seats,
				Booked:          sub.Booked,
				Available:       sub.Available(),
			})
		}
	}
	return out
}

// FindSubcategoryByID walks the tree for the subcategory with the given
// persisted id, returning it with its parent category.
func FindSubcategoryByID(h *domain.Hierarchy, id int64) (*domain.Category, *domain.Subcategory, bool) {
	for _, cat := range h.Categories {
		for _, sub := range cat.Subcategories {
			if sub.ID != 0 && sub.ID == id {
				return cat, sub, true
			}
		}
	}
	return nil, nil, false
}
