package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/venuepass/venuepass/internal/domain"
	"github.com/venuepass/venuepass/internal/repository"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// SubcategorySnapshot loads the current state of one subcategory together
// with its parent category and venue, as of this transaction.
//
// Returns:
//   - error: repository.ErrNotFound if the subcategory is unknown.
func (r *BookingRepo) SubcategorySnapshot(ctx context.Context, subcategoryID int64) (venueID int64, cat *domain.Category, sub *domain.Subcategory, err error) {
	const op = "postgres.BookingRepo.SubcategorySnapshot"

	db := r.handle()

	cat = &domain.Category{}
	sub = &domain.Subcategory{}
	if err := db.QueryRow(ctx,
		`SELECT c.venue_id, c.id, c.name, c.seats, c.booked,
            	s.id, s.name, s.seats, s.booked, s.price_cents
       	 FROM subcategories s
       	 JOIN categories c ON c.id = s.category_id
      	 WHERE s.id = $1`,
		subcategoryID,
	).Scan(
		&venueID, &cat.ID, &cat.Name, &cat.Seats, &cat.Booked,
		&sub.ID, &sub.Name, &sub.Seats, &sub.Booked, &sub.PriceCents,
	); err != nil {
		return 0, nil, nil, wrapDBErr(op, err)
	}

	return venueID, cat, sub, nil
}

// CreateBooking persists a booking and takes its seats from the subcategory
// in one statement. The guarded update is the authoritative capacity check:
// it only fires while booked + n <= seats, so two racing submissions can
// never oversell the block.
//
// Returns:
//   - error: repository.ErrNotFound if the subcategory is unknown.
//   - error: repository.ErrInsufficientCapacity if the block has fewer free
//     seats than requested.
func (r *BookingRepo) CreateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.CreateBooking"

	if r.db != nil {
		created, err := r.createCore(ctx, r.db, b)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return created, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer tx.Rollback(ctx)

	created, err := r.createCore(ctx, tx, b)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return created, nil
}

func (r *BookingRepo) createCore(ctx context.Context, db DB, b *domain.Booking) (*domain.Booking, error) {
	tag, err := db.Exec(ctx,
		`UPDATE subcategories
        	SET booked = booked + $2
      	 WHERE id = $1 AND booked + $2 <= seats`,
		b.SubcategoryID, b.SeatsRequested,
	)
	if err != nil {
		return nil, err
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM subcategories WHERE id = $1)`,
			b.SubcategoryID,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, repository.ErrNotFound
		}
		return nil, repository.ErrInsufficientCapacity
	}

	// Names are resolved at creation time so the booking stays displayable
	// even after the hierarchy is edited.
	var categoryID int64
	var categoryName, subcategoryName string
	var venueID int64
	if err := db.QueryRow(ctx,
		`SELECT c.id, c.name, s.name, c.venue_id
       	 FROM subcategories s
       	 JOIN categories c ON c.id = s.category_id
      	 WHERE s.id = $1`,
		b.SubcategoryID,
	).Scan(&categoryID, &categoryName, &subcategoryName, &venueID); err != nil {
		return nil, err
	}

	created := *b
	created.ID = uuid.New()
	created.VenueID = venueID
	created.CategoryID = categoryID
	created.CategoryName = categoryName
	created.SubcategoryName = subcategoryName
	created.Status = domain.BookingConfirmed

	if err := db.QueryRow(ctx,
		`INSERT INTO bookings(
        	id, event_id, venue_id, category_id, subcategory_id,
        	category_name, subcategory_name, guest_name, seats_requested,
        	ref_name, ref_age, ref_gender, ref_contact,
        	department, sub_department, total_cents, status
     	 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
     	 RETURNING booking_date`,
		created.ID, created.EventID, created.VenueID, created.CategoryID, created.SubcategoryID,
		created.CategoryName, created.SubcategoryName, created.GuestName, created.SeatsRequested,
		created.Reference.Name, created.Reference.Age, created.Reference.Gender, created.Reference.Contact,
		created.Department, created.SubDepartment, created.TotalCents, created.Status,
	).Scan(&created.BookingDate); err != nil {
		return nil, err
	}

	return &created, nil
}

// GetBooking loads one booking by id.
//
// Returns:
//   - error: repository.ErrBookingNotFound if the booking is unknown.
func (r *BookingRepo) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetBooking"

	db := r.handle()

	var b domain.Booking
	if err := db.QueryRow(ctx,
		`SELECT id, event_id, venue_id, category_id, subcategory_id,
            	category_name, subcategory_name, guest_name, seats_requested,
            	ref_name, ref_age, ref_gender, ref_contact,
            	department, sub_department, total_cents, booking_date, status
       	 FROM bookings
      	 WHERE id = $1`,
		id,
	).Scan(
		&b.ID, &b.EventID, &b.VenueID, &b.CategoryID, &b.SubcategoryID,
		&b.CategoryName, &b.SubcategoryName, &b.GuestName, &b.SeatsRequested,
		&b.Reference.Name, &b.Reference.Age, &b.Reference.Gender, &b.Reference.Contact,
		&b.Department, &b.SubDepartment, &b.TotalCents, &b.BookingDate, &b.Status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrBookingNotFound)
		}
		return nil, wrapDBErr(op, err)
	}

	return &b, nil
}

// CancelBooking marks a confirmed booking cancelled and returns its seats to
// the subcategory.
//
// Returns:
//   - error: repository.ErrBookingNotFound if the booking is unknown or not
//     in the confirmed state.
func (r *BookingRepo) CancelBooking(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.BookingRepo.CancelBooking"

	if r.db != nil {
		if err := r.cancelCore(ctx, r.db, id); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return wrapDBErr(op, err)
	}

	defer tx.Rollback(ctx)

	if err := r.cancelCore(ctx, tx, id); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *BookingRepo) cancelCore(ctx context.Context, db DB, id uuid.UUID) error {
	var subcategoryID int64
	var seats int
	if err := db.QueryRow(ctx,
		`UPDATE bookings
        	SET status = $2
      	 WHERE id = $1 AND status = $3
      	 RETURNING subcategory_id, seats_requested`,
		id, domain.BookingCancelled, domain.BookingConfirmed,
	).Scan(&subcategoryID, &seats); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrBookingNotFound
		}
		return err
	}

	if _, err := db.Exec(ctx,
		`UPDATE subcategories
        	SET booked = GREATEST(booked - $2, 0)
      	 WHERE id = $1`,
		subcategoryID, seats,
	); err != nil {
		return err
	}

	return nil
}

// ReportByPerson aggregates the confirmed bookings one reference person
// sponsored for an event.
func (r *BookingRepo) ReportByPerson(ctx context.Context, eventID int64, personName string) (*domain.PersonBookingSummary, error) {
	const op = "postgres.BookingRepo.ReportByPerson"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT category_name, subcategory_name, department,
            	SUM(seats_requested), COUNT(*)
       	 FROM bookings
      	 WHERE event_id = $1 AND LOWER(ref_name) = LOWER($2) AND status = $3
      	 GROUP BY category_name, subcategory_name, department
      	 ORDER BY category_name, subcategory_name, department`,
		eventID, personName, domain.BookingConfirmed,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	out := &domain.PersonBookingSummary{EventID: eventID, PersonName: personName}
	for rows.Next() {
		var row domain.BookingBreakdown
		if err := rows.Scan(&row.CategoryName, &row.SubcategoryName, &row.Department, &row.Seats, &row.Bookings); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out.TotalSeats += row.Seats
		out.Breakdown = append(out.Breakdown, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// EventSummary aggregates all confirmed bookings of an event by category,
// subcategory and department.
func (r *BookingRepo) EventSummary(ctx context.Context, eventID int64) (*domain.EventBookingSummary, error) {
	const op = "postgres.BookingRepo.EventSummary"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT category_name, subcategory_name, department,
            	SUM(seats_requested), COUNT(*)
       	 FROM bookings
      	 WHERE event_id = $1 AND status = $2
      	 GROUP BY category_name, subcategory_name, department
      	 ORDER BY category_name, subcategory_name, department`,
		eventID, domain.BookingConfirmed,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	out := &domain.EventBookingSummary{EventID: eventID}
	for rows.Next() {
		var row domain.BookingBreakdown
		if err := rows.Scan(&row.CategoryName, &row.SubcategoryName, &row.Department, &row.Seats, &row.Bookings); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out.TotalSeats += row.Seats
		out.Breakdown = append(out.Breakdown, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
