package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/venuepass/venuepass/internal/domain"
	postgresrepo "github.com/venuepass/venuepass/internal/repository/postgres"
	"github.com/venuepass/venuepass/internal/uow"
)

// Repository is the persistence surface of the booking pipeline. The
// postgres booking repo implements it; tests substitute a fake.
type Repository interface {
	SubcategorySnapshot(ctx context.Context, subcategoryID int64) (venueID int64, cat *domain.Category, sub *domain.Subcategory, err error)
	CreateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID) error
}

// Store binds the repository to transactions. InTx hands fn a Repository
// scoped to one transaction; hooks registered through after fire only once
// the commit is durable, so a failed insert leaves no cache or counter
// effects behind.
type Store interface {
	Bookings() Repository
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repository, after func(uow.AfterCommit)) error) error
	Retryable(err error) bool
}

// Limiter throttles submissions per client key. The redis sliding-window
// limiter implements it.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

// PostgresStore adapts the pgx-backed store and unit of work to the
// pipeline's Store seam.
type PostgresStore struct {
	store *postgresrepo.Store
	uow   *uow.UoW
}

func NewPostgresStore(store *postgresrepo.Store) *PostgresStore {
	return &PostgresStore{
		store: store,
		uow:   uow.NewUoW(store),
	}
}

func (s *PostgresStore) Bookings() Repository { return s.store.Bookings() }

func (s *PostgresStore) InTx(
	ctx context.Context,
	fn func(ctx context.Context, repo Repository, after func(uow.AfterCommit)) error,
) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		return fn(ctx, s.store.Bookings().With(tx), after)
	})
}

func (s *PostgresStore) Retryable(err error) bool {
	return postgresrepo.IsRetryable(err)
}
