package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/repository"
)

type HierarchyRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *HierarchyRepo) With(db DB) *HierarchyRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *HierarchyRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// CreateVenue creates a venue record with an empty hierarchy and returns its
// ID.
//
// Returns:
//   - error: repository.ErrConflict if a venue with the same name exists.
func (r *HierarchyRepo) CreateVenue(ctx context.Context, name string) (int64, error) {
	const op = "postgres.HierarchyRepo.CreateVenue"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO venues(name, version)
       	 VALUES ($1, 0)
     	 RETURNING id`,
		name,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// FetchHierarchy loads the full category tree of a venue.
//
// Returns:
//   - error: repository.ErrNotFound if the venue is unknown.
func (r *HierarchyRepo) FetchHierarchy(ctx context.Context, venueID int64) (*domain.Hierarchy, error) {
	const op = "postgres.HierarchyRepo.FetchHierarchy"

	h, err := r.fetchCore(ctx, r.handle(), venueID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return h, nil
}

// SaveHierarchy replaces the venue's stored tree with h and returns the
// canonical tree with server-assigned ids. Booked counters of surviving rows
// are preserved from the store, never taken from the draft.
//
// The save is guarded by a compare-and-swap on the venue's version column.
//
// Returns:
//   - error: repository.ErrNotFound if the venue is unknown or the draft
//     carries an id the venue does not own.
//   - error: repository.ErrVersionConflict if the venue was modified since
//     the draft's version was read.
func (r *HierarchyRepo) SaveHierarchy(ctx context.Context, h *domain.Hierarchy) (*domain.Hierarchy, error) {
	const op = "postgres.HierarchyRepo.SaveHierarchy"

	if r.db != nil {
		saved, err := r.saveCore(ctx, r.db, h)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return saved, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer tx.Rollback(ctx)

	saved, err := r.saveCore(ctx, tx, h)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return saved, nil
}

func (r *HierarchyRepo) fetchCore(ctx context.Context, db DB, venueID int64) (*domain.Hierarchy, error) {
	var version int64
	if err := db.QueryRow(ctx,
		`SELECT version FROM venues WHERE id = $1`,
		venueID,
	).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	catRows, err := db.Query(ctx,
		`SELECT id, name, seats, booked, position
       	 FROM categories
      	 WHERE venue_id = $1
      	 ORDER BY position`,
		venueID,
	)
	if err != nil {
		return nil, err
	}
	defer catRows.Close()

	var cats []categoryRow
	for catRows.Next() {
		var row categoryRow
		if err := catRows.Scan(&row.ID, &row.Name, &row.Seats, &row.Booked, &row.Position); err != nil {
			return nil, err
		}
		cats = append(cats, row)
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	subRows, err := db.Query(ctx,
		`SELECT s.id, s.category_id, c.position, s.name, s.seats, s.booked, s.price_cents, s.position
       	 FROM subcategories s
       	 JOIN categories c ON c.id = s.category_id
      	 WHERE c.venue_id = $1
      	 ORDER BY c.position, s.position`,
		venueID,
	)
	if err != nil {
		return nil, err
	}
	defer subRows.Close()

	var subs []subcategoryRow
	for subRows.Next() {
		var row subcategoryRow
		if err := subRows.Scan(
			&row.ID, &row.CategoryID, &row.CategoryPos,
			&row.Name, &row.Seats, &row.Booked, &row.PriceCents, &row.Position,
		); err != nil {
			return nil, err
		}
		subs = append(subs, row)
	}
	if err := subRows.Err(); err != nil {
		return nil, err
	}

	return buildHierarchy(venueID, version, cats, subs), nil
}

func (r *HierarchyRepo) saveCore(ctx context.Context, db DB, h *domain.Hierarchy) (*domain.Hierarchy, error) {
	var newVersion int64
	err := db.QueryRow(ctx,
		`UPDATE venues
        	SET version = version + 1
      	 WHERE id = $1 AND version = $2
      	 RETURNING version`,
		h.VenueID, h.Version,
	).Scan(&newVersion)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM venues WHERE id = $1)`,
			h.VenueID,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, repository.ErrNotFound
		}
		return nil, repository.ErrVersionConflict
	}

	cats, subs := flattenHierarchy(h)

	// A draft may only carry ids this venue owns. A foreign id slipping
	// through would re-parent another venue's row here.
	current, err := r.fetchCore(ctx, db, h.VenueID)
	if err != nil {
		return nil, err
	}
	if err := verifyOwnership(current, cats, subs); err != nil {
		return nil, err
	}

	// Drop rows whose nodes were deleted from the draft. Cascade order:
	// subcategories first, then categories.
	keptSubIDs := make([]int64, 0, len(subs))
	for _, row := range subs {
		if row.ID != 0 {
			keptSubIDs = append(keptSubIDs, row.ID)
		}
	}
	keptCatIDs := make([]int64, 0, len(cats))
	for _, row := range cats {
		if row.ID != 0 {
			keptCatIDs = append(keptCatIDs, row.ID)
		}
	}

	if _, err := db.Exec(ctx,
		`DELETE FROM subcategories s
      	 USING categories c
      	 WHERE s.category_id = c.id
        	AND c.venue_id = $1
        	AND NOT (s.id = ANY($2))`,
		h.VenueID, keptSubIDs,
	); err != nil {
		return nil, err
	}

	if _, err := db.Exec(ctx,
		`DELETE FROM categories
      	 WHERE venue_id = $1 AND NOT (id = ANY($2))`,
		h.VenueID, keptCatIDs,
	); err != nil {
		return nil, err
	}

	// Upsert surviving and new rows. Ids assigned here become part of the
	// canonical response; booked stays whatever the store already holds.
	catIDByPos := make(map[int]int64, len(cats))
	for _, row := range cats {
		if row.ID == 0 {
			var id int64
			if err := db.QueryRow(ctx,
				`INSERT INTO categories(venue_id, name, seats, booked, position)
             	 VALUES ($1, $2, $3, 0, $4)
             	 RETURNING id`,
				h.VenueID, row.Name, row.Seats, row.Position,
			).Scan(&id); err != nil {
				return nil, err
			}
			catIDByPos[row.Position] = id
			continue
		}
		tag, err := db.Exec(ctx,
			`UPDATE categories
            	SET name = $2, seats = $3, position = $4
          	 WHERE id = $1 AND venue_id = $5`,
			row.ID, row.Name, row.Seats, row.Position, h.VenueID,
		)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			// Ownership was verified above; a vanished row means a
			// concurrent change won the race.
			return nil, repository.ErrVersionConflict
		}
		catIDByPos[row.Position] = row.ID
	}

	for _, row := range subs {
		parentID := catIDByPos[row.CategoryPos]
		if row.ID == 0 {
			if _, err := db.Exec(ctx,
				`INSERT INTO subcategories(category_id, name, seats, booked, price_cents, position)
             	 VALUES ($1, $2, $3, 0, $4, $5)`,
				parentID, row.Name, row.Seats, row.PriceCents, row.Position,
			); err != nil {
				return nil, err
			}
			continue
		}
		// Scoped through the current parent so the statement can never
		// touch a row of another venue.
		tag, err := db.Exec(ctx,
			`UPDATE subcategories
            	SET category_id = $2, name = $3, seats = $4, price_cents = $5, position = $6
       	   FROM categories c
          	 WHERE subcategories.id = $1
            	AND subcategories.category_id = c.id
            	AND c.venue_id = $7`,
			row.ID, parentID, row.Name, row.Seats, row.PriceCents, row.Position, h.VenueID,
		)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, repository.ErrVersionConflict
		}
	}

	return r.fetchCore(ctx, db, h.VenueID)
}
