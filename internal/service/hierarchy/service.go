// Package hierarchy is the editing surface of the seating tree: it owns
// per-venue editing sessions, runs pre-save validation, and exchanges trees
// with the hierarchy repository.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/hierarchy"
	"github.com/venuepass/venuepass/internal/repository"
	redisrepo "github.com/venuepass/venuepass/internal/repository/redis"
)

// Repository is the persistence collaborator the service talks to. The
// postgres store implements it; tests substitute a fake. Save returns the
// canonical, server-assigned tree.
type Repository interface {
	CreateVenue(ctx context.Context, name string) (int64, error)
	FetchHierarchy(ctx context.Context, venueID int64) (*domain.Hierarchy, error)
	SaveHierarchy(ctx context.Context, h *domain.Hierarchy) (*domain.Hierarchy, error)
}

type Config struct {
	RepoTimeout  time.Duration
	HierarchyTTL time.Duration
}

type Service struct {
	repo   Repository
	cache  *redisrepo.Cache
	pubsub *redisrepo.VenuesPubSub
	cfg    Config
}

func New(repo Repository, cache *redisrepo.Cache, pubsub *redisrepo.VenuesPubSub, cfg Config) *Service {
	if cfg.RepoTimeout <= 0 {
		cfg.RepoTimeout = 5 * time.Second
	}

	if cfg.HierarchyTTL <= 0 {
		cfg.HierarchyTTL = 30 * time.Second
	}

	return &Service{
		repo:   repo,
		cache:  cache,
		pubsub: pubsub,
		cfg:    cfg,
	}
}

// CreateVenue registers a venue with an empty hierarchy.
//
// Returns:
//   - error: hierarchy.ErrVenueConflict if the name is taken.
func (s *Service) CreateVenue(ctx context.Context, name string) (int64, error) {
	const op = "service.hierarchy.CreateVenue"

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RepoTimeout)
	defer cancel()

	id, err := s.repo.CreateVenue(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s:%w", op, ErrVenueConflict)
		}
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// Fetch returns the venue's hierarchy through the read cache.
//
// Returns:
//   - error: hierarchy.ErrVenueNotFound if the venue is unknown.
func (s *Service) Fetch(ctx context.Context, venueID int64) (*domain.Hierarchy, error) {
	const op = "service.hierarchy.Fetch"

	if s.cache == nil {
		return s.fetchFresh(ctx, op, venueID)
	}

	h, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyVenueHierarchy(venueID),
		s.cfg.HierarchyTTL,
		func(ctx context.Context) (*domain.Hierarchy, error) {
			return s.fetchFresh(ctx, op, venueID)
		},
	)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// Availability returns the per-subcategory free-seat view of a venue.
func (s *Service) Availability(ctx context.Context, venueID int64) (*domain.VenueAvailability, error) {
	const op = "service.hierarchy.Availability"

	load := func(ctx context.Context) (*domain.VenueAvailability, error) {
		h, err := s.fetchFresh(ctx, op, venueID)
		if err != nil {
			return nil, err
		}
		return hierarchy.Availability(h), nil
	}

	if s.cache == nil {
		return load(ctx)
	}

	return redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyVenueAvailability(venueID),
		s.cfg.HierarchyTTL,
		load,
	)
}

// Validate runs the full-tree pre-save check without persisting anything.
// The violation set is always complete, never cut short at the first hit.
func (s *Service) Validate(h *domain.Hierarchy) hierarchy.Violations {
	return hierarchy.Validate(h)
}

// Replace validates h and persists it wholesale, returning the canonical
// tree with server-assigned ids. Nothing is written when validation fails.
//
// Returns:
//   - error: *hierarchy.ValidationError with the full violation map.
//   - error: hierarchy.ErrVenueNotFound if the venue is unknown.
//   - error: hierarchy.ErrVersionConflict if the venue changed since h's
//     version was read; the caller must re-fetch and reapply its edits.
func (s *Service) Replace(ctx context.Context, h *domain.Hierarchy) (*domain.Hierarchy, error) {
	const op = "service.hierarchy.Replace"

	if err := hierarchy.ValidateForSave(h); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RepoTimeout)
	defer cancel()

	saved, err := s.repo.SaveHierarchy(ctx, h)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrVenueNotFound)
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, fmt.Errorf("%s:%w", op, ErrVersionConflict)
		default:
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	s.afterChange(ctx, h.VenueID)

	return saved, nil
}

// OpenSession fetches the venue's current tree and hands it to an exclusive
// editing session. The fetch bypasses the cache: a session must start from
// the authoritative version stamp.
func (s *Service) OpenSession(ctx context.Context, venueID int64) (*Session, error) {
	const op = "service.hierarchy.OpenSession"

	h, err := s.fetchFresh(ctx, op, venueID)
	if err != nil {
		return nil, err
	}

	return newSession(s, h), nil
}

func (s *Service) fetchFresh(ctx context.Context, op string, venueID int64) (*domain.Hierarchy, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RepoTimeout)
	defer cancel()

	h, err := s.repo.FetchHierarchy(ctx, venueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrVenueNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return h, nil
}

func (s *Service) afterChange(ctx context.Context, venueID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateVenue(ctx, venueID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishVenueChanged(ctx, venueID)
	}
}
