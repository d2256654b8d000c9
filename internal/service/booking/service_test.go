package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corebooking "github.com/venuepass/venuepass/internal/booking"
	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/repository"
	"github.com/venuepass/venuepass/internal/uow"
)

// fakeRepo stands in for the postgres booking repo: it serves one
// subcategory snapshot and fails CreateBooking with a scripted error per
// call, like the store does under contention or exhausted capacity.
type fakeRepo struct {
	venueID int64
	cat     *domain.Category
	sub     *domain.Subcategory

	snapshotErr error
	createErrs  []error // consumed one per CreateBooking call
	cancelErr   error

	creates  int
	bookings map[uuid.UUID]*domain.Booking
}

func newFakeRepo(available int) *fakeRepo {
	return &fakeRepo{
		venueID: 1,
		cat:     &domain.Category{ID: 10, Name: "Stalls", Seats: 100},
		sub: &domain.Subcategory{
			ID:         11,
			Name:       "Front",
			Seats:      20,
			Booked:     20 - available,
			PriceCents: 1500,
		},
		bookings: map[uuid.UUID]*domain.Booking{},
	}
}

func (f *fakeRepo) SubcategorySnapshot(ctx context.Context, subcategoryID int64) (int64, *domain.Category, *domain.Subcategory, error) {
	if f.snapshotErr != nil {
		return 0, nil, nil, f.snapshotErr
	}
	if subcategoryID != f.sub.ID {
		return 0, nil, nil, repository.ErrNotFound
	}
	return f.venueID, f.cat, f.sub, nil
}

func (f *fakeRepo) CreateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	f.creates++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	stored := *b
	stored.ID = uuid.New()
	f.bookings[stored.ID] = &stored
	return &stored, nil
}

func (f *fakeRepo) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeRepo) CancelBooking(ctx context.Context, id uuid.UUID) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = domain.BookingCancelled
	return nil
}

// fakeStore runs the transaction function directly and fires collected
// after-commit hooks only when it returns nil, mirroring the unit of work.
type fakeStore struct {
	repo      *fakeRepo
	retryable error // errors matching this count as retryable

	attempts int
	hooksRun int
}

func (f *fakeStore) Bookings() Repository { return f.repo }

func (f *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository, after func(uow.AfterCommit)) error) error {
	f.attempts++

	var hooks []uow.AfterCommit
	err := fn(ctx, f.repo, func(h uow.AfterCommit) {
		hooks = append(hooks, h)
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
		f.hooksRun++
	}
	return nil
}

func (f *fakeStore) Retryable(err error) bool {
	return f.retryable != nil && errors.Is(err, f.retryable)
}

type fakeLimiter struct {
	allowed    bool
	retryAfter time.Duration
	calls      int
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, int64, time.Duration, error) {
	f.calls++
	return f.allowed, 1, f.retryAfter, nil
}

func request(seats int) corebooking.Request {
	return corebooking.Request{
		EventID:        7,
		GuestName:      "Ada Lovelace",
		SeatsRequested: seats,
		Reference:      domain.Reference{Name: "B. Noble", Contact: "555-0101"},
		Department:     "Engineering",
	}
}

func TestCreate(t *testing.T) {
	t.Run("persists and confirms", func(t *testing.T) {
		store := &fakeStore{repo: newFakeRepo(5)}
		svc := New(store, nil, nil, nil, Config{})

		b, err := svc.Create(context.Background(), 11, request(2), "")
		require.NoError(t, err)
		require.NotNil(t, b)

		assert.Equal(t, int64(1), b.VenueID)
		assert.Equal(t, domain.BookingSubmitted, b.Status)
		assert.Equal(t, 2*1500, b.TotalCents)
		assert.Equal(t, 1, store.attempts)
		assert.Equal(t, 1, store.hooksRun)
	})

	t.Run("store capacity refusal carries the free-seat count", func(t *testing.T) {
		// The snapshot shows room, but the store's guarded update refuses:
		// another booking won the seats in between. The caller still gets the
		// available count to offer back.
		repo := newFakeRepo(5)
		repo.createErrs = []error{repository.ErrInsufficientCapacity}
		store := &fakeStore{repo: repo}
		svc := New(store, nil, nil, nil, Config{})

		_, err := svc.Create(context.Background(), 11, request(2), "")
		require.Error(t, err)

		var capErr corebooking.InsufficientCapacityError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, 5, capErr.Available)
		assert.Equal(t, 2, capErr.Requested)
		assert.Zero(t, store.hooksRun)
	})

	t.Run("pre-check refuses before touching the store", func(t *testing.T) {
		repo := newFakeRepo(1)
		store := &fakeStore{repo: repo}
		svc := New(store, nil, nil, nil, Config{})

		_, err := svc.Create(context.Background(), 11, request(3), "")

		var capErr corebooking.InsufficientCapacityError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, 1, capErr.Available)
		assert.Zero(t, repo.creates)
	})

	t.Run("persistence failure runs no after-commit hooks", func(t *testing.T) {
		repo := newFakeRepo(5)
		repo.createErrs = []error{errors.New("connection reset")}
		store := &fakeStore{repo: repo}
		svc := New(store, nil, nil, nil, Config{})

		b, err := svc.Create(context.Background(), 11, request(2), "")
		require.Error(t, err)
		assert.Nil(t, b)
		assert.Zero(t, store.hooksRun)
	})

	t.Run("retries a retryable transaction failure", func(t *testing.T) {
		serialization := errors.New("serialization failure")
		repo := newFakeRepo(5)
		repo.createErrs = []error{serialization, nil}
		store := &fakeStore{repo: repo, retryable: serialization}
		svc := New(store, nil, nil, nil, Config{})

		b, err := svc.Create(context.Background(), 11, request(2), "")
		require.NoError(t, err)
		require.NotNil(t, b)
		assert.Equal(t, 2, store.attempts)
		assert.Equal(t, 1, store.hooksRun)
	})

	t.Run("unknown subcategory", func(t *testing.T) {
		repo := newFakeRepo(5)
		store := &fakeStore{repo: repo}
		svc := New(store, nil, nil, nil, Config{})

		_, err := svc.Create(context.Background(), 999, request(1), "")
		assert.ErrorIs(t, err, ErrSubcategoryNotFound)
	})

	t.Run("zero seats rejected up front", func(t *testing.T) {
		store := &fakeStore{repo: newFakeRepo(5)}
		svc := New(store, nil, nil, nil, Config{})

		_, err := svc.Create(context.Background(), 11, request(0), "")
		assert.ErrorIs(t, err, corebooking.ErrNoSeatsRequested)
		assert.Zero(t, store.attempts)
	})

	t.Run("rate limited before any store work", func(t *testing.T) {
		store := &fakeStore{repo: newFakeRepo(5)}
		limiter := &fakeLimiter{allowed: false, retryAfter: 42 * time.Second}
		svc := New(store, nil, nil, limiter, Config{})

		_, err := svc.Create(context.Background(), 11, request(2), "client-1")
		require.Error(t, err)

		var rlErr RateLimitedError
		require.ErrorAs(t, err, &rlErr)
		assert.Equal(t, 42*time.Second, rlErr.RetryAfter)
		assert.Equal(t, 1, limiter.calls)
		assert.Zero(t, store.attempts)
	})

	t.Run("empty rate-limit key skips the limiter", func(t *testing.T) {
		store := &fakeStore{repo: newFakeRepo(5)}
		limiter := &fakeLimiter{allowed: false, retryAfter: time.Minute}
		svc := New(store, nil, nil, limiter, Config{})

		_, err := svc.Create(context.Background(), 11, request(2), "")
		require.NoError(t, err)
		assert.Zero(t, limiter.calls)
	})
}

func TestGet(t *testing.T) {
	store := &fakeStore{repo: newFakeRepo(5)}
	svc := New(store, nil, nil, nil, Config{})

	created, err := svc.Create(context.Background(), 11, request(1), "")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancel(t *testing.T) {
	t.Run("cancels and invalidates", func(t *testing.T) {
		store := &fakeStore{repo: newFakeRepo(5)}
		svc := New(store, nil, nil, nil, Config{})

		created, err := svc.Create(context.Background(), 11, request(1), "")
		require.NoError(t, err)
		store.hooksRun = 0

		require.NoError(t, svc.Cancel(context.Background(), created.ID))
		assert.Equal(t, domain.BookingCancelled, store.repo.bookings[created.ID].Status)
		assert.Equal(t, 1, store.hooksRun)
	})

	t.Run("unknown booking", func(t *testing.T) {
		store := &fakeStore{repo: newFakeRepo(5)}
		svc := New(store, nil, nil, nil, Config{})

		err := svc.Cancel(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}
