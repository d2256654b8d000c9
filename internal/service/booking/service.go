// Package booking runs the complimentary-pass submission pipeline: client
// pre-check, authoritative store-side allocation, and after-commit cache
// maintenance, all against one subcategory of the seating tree.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/venuepass/venuepass/internal/booking"
	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/repository"
	redisrepo "github.com/venuepass/venuepass/internal/repository/redis"
	"github.com/venuepass/venuepass/internal/uow"
)

type Config struct {
	RepoTimeout time.Duration
}

type Service struct {
	store   Store
	cache   *redisrepo.Cache
	pubsub  *redisrepo.VenuesPubSub
	limiter Limiter
	cfg     Config
}

func New(
	store Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.VenuesPubSub,
	limiter Limiter,
	cfg Config,
) *Service {
	if cfg.RepoTimeout <= 0 {
		cfg.RepoTimeout = 5 * time.Second
	}

	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		cfg:     cfg,
	}
}

// Create submits a booking for seats of one subcategory.
//
// The counter increment and the booking insert run in one transaction, so a
// failed insert rolls the increment back and the stored tree never diverges
// from the booking records. The in-transaction guarded update is the
// authoritative capacity check; it can still refuse a request that passed a
// client-side pre-check moments earlier.
//
// Parameters:
//   - ctx: request-scoped context.
//   - subcategoryID: the leaf block to take seats from.
//   - req: the draft booking as collected from the form.
//   - rlKey: rate-limit bucket for the submitting client; empty disables.
//
// Returns:
//   - error: booking.ErrSubcategoryNotFound if the block is unknown.
//   - error: booking.InsufficientCapacityError carrying the free-seat count
//     at refusal time.
//   - error: booking.RateLimitedError if the client exhausted its window.
func (s *Service) Create(
	ctx context.Context,
	subcategoryID int64,
	req booking.Request,
	rlKey string,
) (*domain.Booking, error) {
	const op = "service.booking.Create"

	if req.SeatsRequested < 1 {
		return nil, fmt.Errorf("%s:%w", op, booking.ErrNoSeatsRequested)
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w", op, RateLimitedError{RetryAfter: retry})
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RepoTimeout)
	defer cancel()

	var created *domain.Booking

	txFn := func(
		ctx context.Context,
		repo Repository,
		after func(uow.AfterCommit),
	) error {
		venueID, cat, sub, err := repo.SubcategorySnapshot(ctx, subcategoryID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrSubcategoryNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		// Pre-check against the snapshot. The guarded update below remains
		// authoritative; this only produces the free-seat count for the
		// refusal and prices the draft.
		req.VenueID = venueID
		draft, err := booking.Allocate(cat, sub, req)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		draft.Status = domain.BookingSubmitted

		b, err := repo.CreateBooking(ctx, draft)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrSubcategoryNotFound)
			}
			if errors.Is(err, repository.ErrInsufficientCapacity) {
				return fmt.Errorf("%s:%w", op, booking.InsufficientCapacityError{
					Available: sub.Available(),
					Requested: req.SeatsRequested,
				})
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		created = b

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateVenue(ctx, b.VenueID)
				_ = s.cache.InvalidateEvent(ctx, b.EventID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishVenueChanged(ctx, b.VenueID)
			}
		})

		return nil
	}

	// Serializable transactions abort under contention. Retry a couple of
	// times on a retryable failure before giving up.
	err := s.store.InTx(ctx, txFn)
	for attempt := 0; attempt < 2 && err != nil && s.store.Retryable(err); attempt++ {
		err = s.store.InTx(ctx, txFn)
	}
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Get loads one booking.
//
// Returns:
//   - error: booking.ErrBookingNotFound if the id is unknown.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Get"

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RepoTimeout)
	defer cancel()

	b, err := s.store.Bookings().GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

// Cancel voids a confirmed booking and returns its seats to the
// subcategory's booked counter, in one transaction.
//
// Returns:
//   - error: booking.ErrBookingNotFound if the id is unknown or the booking
//     is not confirmed.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	const op = "service.booking.Cancel"

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RepoTimeout)
	defer cancel()

	b, err := s.store.Bookings().GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	err = s.store.InTx(ctx, func(
		ctx context.Context,
		repo Repository,
		after func(uow.AfterCommit),
	) error {
		if err := repo.CancelBooking(ctx, id); err != nil {
			if errors.Is(err, repository.ErrBookingNotFound) {
				return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateVenue(ctx, b.VenueID)
				_ = s.cache.InvalidateEvent(ctx, b.EventID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishVenueChanged(ctx, b.VenueID)
			}
		})

		return nil
	})

	return err
}
