package hierarchy

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/hierarchy"
)

// Session is the exclusive owner of one venue's draft tree. Sessions for
// different venues are independent; within one session at most one save may
// be in flight at a time, and a second submission fails fast with
// ErrSaveInFlight.
//
// Mutations follow the two-phase pattern of the tree: the session runs the
// explicit name check, then commits the mutation. Capacity overflow is not
// blocked at edit time; it shows up in Validate and blocks Save.
type Session struct {
	svc     *Service
	venueID int64

	mu     sync.Mutex
	tree   *hierarchy.Tree
	saving atomic.Bool
}

func newSession(svc *Service, h *domain.Hierarchy) *Session {
	return &Session{
		svc:     svc,
		venueID: h.VenueID,
		tree:    hierarchy.Wrap(h),
	}
}

func (s *Session) VenueID() int64 { return s.venueID }

// Hierarchy returns a snapshot of the draft tree.
func (s *Session) Hierarchy() *domain.Hierarchy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Hierarchy().Clone()
}

// AddRoot appends a new root category to the draft.
//
// Returns:
//   - error: hierarchy.DuplicateNameError on a case-insensitive collision
//     with an existing root; nothing is mutated.
func (s *Session) AddRoot(name string, seats int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.CheckRootName(name); err != nil {
		return err
	}
	_, err := s.tree.AddRoot(name, seats)
	return err
}

// AddSubcategory appends a new leaf under the category at parent.
//
// Returns:
//   - error: hierarchy.PathNotFoundError if the parent path is stale.
//   - error: hierarchy.DuplicateNameError on a sibling name collision.
func (s *Session) AddSubcategory(parent hierarchy.Path, name string, seats, priceCents int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.CheckSubcategoryName(parent, name); err != nil {
		return err
	}
	_, err := s.tree.AddSubcategory(parent, name, seats, priceCents)
	return err
}

// EditLeaf renames or resizes a subcategory in place. An overflow this
// introduces is reported by Validate, not here.
func (s *Session) EditLeaf(p hierarchy.Path, name string, seats int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.EditLeaf(p, name, seats)
}

// EditCategory renames or resizes a root category in place.
func (s *Session) EditCategory(p hierarchy.Path, name string, seats int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.EditCategory(p, name, seats)
}

// Delete removes the node at p with its entire subtree.
func (s *Session) Delete(p hierarchy.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Delete(p)
}

// Validate reports every current violation of the draft.
func (s *Session) Validate() hierarchy.Violations {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hierarchy.Validate(s.tree.Hierarchy())
}

// Save validates the draft and persists it. On success the local draft is
// replaced wholesale by the canonical tree the store returned, so freshly
// created nodes pick up their assigned ids. On any failure the draft is left
// untouched for the user to fix and resubmit.
//
// Returns:
//   - error: ErrSaveInFlight if a previous save has not resolved yet.
//   - error: *hierarchy.ValidationError with the full violation map.
//   - error: ErrVersionConflict if the venue changed underneath the session;
//     recovery is re-fetching and reapplying the edits.
func (s *Session) Save(ctx context.Context) (*domain.Hierarchy, error) {
	if !s.saving.CompareAndSwap(false, true) {
		return nil, ErrSaveInFlight
	}
	defer s.saving.Store(false)

	s.mu.Lock()
	draft := s.tree.Hierarchy().Clone()
	s.mu.Unlock()

	saved, err := s.svc.Replace(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tree = hierarchy.Wrap(saved.Clone())
	s.mu.Unlock()

	return saved, nil
}
