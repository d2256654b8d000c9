package hierarchy

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/hierarchy"
	"github.com/venuepass/venuepass/internal/repository"
)

// fakeRepo stands in for the postgres store: it assigns ids on save and
// enforces the version compare-and-swap, like the real repository does.
type fakeRepo struct {
	mu      sync.Mutex
	venues  map[int64]*domain.Hierarchy
	nextID  int64
	saves   int
	started chan struct{} // when set, signals a save has entered the repo
	block   chan struct{} // when set, SaveHierarchy waits on it
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		venues: map[int64]*domain.Hierarchy{},
		nextID: 100,
	}
}

func (f *fakeRepo) addVenue(id int64) {
	f.venues[id] = &domain.Hierarchy{VenueID: id}
}

func (f *fakeRepo) CreateVenue(ctx context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.venues[id] = &domain.Hierarchy{VenueID: id}
	return id, nil
}

func (f *fakeRepo) FetchHierarchy(ctx context.Context, venueID int64) (*domain.Hierarchy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.venues[venueID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return h.Clone(), nil
}

func (f *fakeRepo) SaveHierarchy(ctx context.Context, h *domain.Hierarchy) (*domain.Hierarchy, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cur, ok := f.venues[h.VenueID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if cur.Version != h.Version {
		return nil, repository.ErrVersionConflict
	}

	canonical := h.Clone()
	canonical.Version++
	for _, cat := range canonical.Categories {
		if cat.ID == 0 {
			cat.ID = f.nextID
			f.nextID++
		}
		for _, sub := range cat.Subcategories {
			if sub.ID == 0 {
				sub.ID = f.nextID
				f.nextID++
			}
		}
	}
	f.venues[h.VenueID] = canonical
	f.saves++

	return canonical.Clone(), nil
}

func newTestService(repo Repository) *Service {
	return New(repo, nil, nil, Config{})
}

func TestSessionSaveAssignsIDs(t *testing.T) {
	repo := newFakeRepo()
	repo.addVenue(1)
	svc := newTestService(repo)

	sess, err := svc.OpenSession(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, sess.AddRoot("VIP", 100))
	require.NoError(t, sess.AddSubcategory(hierarchy.Path{0}, "Block A", 60, 5000))

	saved, err := sess.Save(context.Background())
	require.NoError(t, err)

	// The canonical response fully replaces the draft, ids included.
	assert.NotZero(t, saved.Categories[0].ID)
	assert.NotZero(t, saved.Categories[0].Subcategories[0].ID)

	local := sess.Hierarchy()
	assert.Equal(t, saved, local)
}

func TestSessionSaveRefusedOnViolations(t *testing.T) {
	repo := newFakeRepo()
	repo.addVenue(1)
	svc := newTestService(repo)

	sess, err := svc.OpenSession(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, sess.AddRoot("VIP", 100))
	require.NoError(t, sess.AddSubcategory(hierarchy.Path{0}, "Block A", 60, 5000))
	require.NoError(t, sess.AddSubcategory(hierarchy.Path{0}, "Block B", 50, 5000))

	_, err = sess.Save(context.Background())
	var vErr *hierarchy.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Violations, hierarchy.ViolationKey(hierarchy.Path{0}, hierarchy.ViolationSeats))

	// Nothing reached the repository.
	assert.Zero(t, repo.saves)

	// The draft survives for the user to fix.
	assert.Len(t, sess.Hierarchy().Categories, 1)
}

func TestSessionDuplicateRoot(t *testing.T) {
	repo := newFakeRepo()
	repo.addVenue(1)
	svc := newTestService(repo)

	sess, err := svc.OpenSession(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, sess.AddRoot("VIP", 100))

	err = sess.AddRoot("vip", 50)
	var dup hierarchy.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Len(t, sess.Hierarchy().Categories, 1)
}

func TestSessionSingleSaveInFlight(t *testing.T) {
	repo := newFakeRepo()
	repo.addVenue(1)
	repo.started = make(chan struct{}, 1)
	repo.block = make(chan struct{})
	svc := newTestService(repo)

	sess, err := svc.OpenSession(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, sess.AddRoot("VIP", 100))

	firstDone := make(chan error, 1)
	go func() {
		_, err := sess.Save(context.Background())
		firstDone <- err
	}()

	// Second submission while the first is still in flight fails fast.
	<-repo.started
	_, err = sess.Save(context.Background())
	assert.ErrorIs(t, err, ErrSaveInFlight)

	close(repo.block)
	require.NoError(t, <-firstDone)

	// After the first save resolves, saving works again.
	require.NoError(t, sess.AddRoot("Balcony", 50))
	_, err = sess.Save(context.Background())
	require.NoError(t, err)
}

func TestSessionVersionConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.addVenue(1)
	svc := newTestService(repo)

	sessA, err := svc.OpenSession(context.Background(), 1)
	require.NoError(t, err)
	sessB, err := svc.OpenSession(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, sessA.AddRoot("VIP", 100))
	_, err = sessA.Save(context.Background())
	require.NoError(t, err)

	// Session B still carries the old version stamp.
	require.NoError(t, sessB.AddRoot("Balcony", 50))
	_, err = sessB.Save(context.Background())
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestFetchUnknownVenue(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.Fetch(context.Background(), 42)
	assert.ErrorIs(t, err, ErrVenueNotFound)

	_, err = svc.OpenSession(context.Background(), 42)
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

func TestAvailabilityView(t *testing.T) {
	repo := newFakeRepo()
	repo.venues[1] = &domain.Hierarchy{
		VenueID: 1,
		Categories: []*domain.Category{
			{ID: 1, Name: "VIP", Seats: 100, Subcategories: []*domain.Subcategory{
				{ID: 11, Name: "Block A", Seats: 60, Booked: 45, PriceCents: 5000},
			}},
		},
	}
	svc := newTestService(repo)

	av, err := svc.Availability(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 60, av.TotalSeats)
	assert.Equal(t, 15, av.TotalFree)
	require.Len(t, av.Blocks, 1)
	assert.Equal(t, 15, av.Blocks[0].Available)
}
