package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"staybook/internal/app/dto"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

const uniqueViolation = "23505"

const bookingColumns = `id, property_id, guest_id, check_in, check_out, guest_count, price,
	amount_paid::text, currency, status, payment_status, cancel_reason, cancelled_by,
	notes, created_at, updated_at, version`

type BookingRepository struct {
	db db
}

func NewBookingRepository(conn db) *BookingRepository {
	return &BookingRepository{db: conn}
}

var _ domainbooking.Repository = (*BookingRepository)(nil)

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domainbooking.ErrNotFound, id)
	}
	return b, err
}

// Save inserts a fresh booking or updates one guarded by its version. A stale
// version matches no row and surfaces as ErrVersionConflict.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	price, err := json.Marshal(dto.MapPriceBreakdown(b.Price))
	if err != nil {
		return fmt.Errorf("booking %s price: %w", b.ID, err)
	}
	args := pgx.NamedArgs{
		"id":             string(b.ID),
		"property_id":    string(b.PropertyID),
		"guest_id":       b.GuestID,
		"check_in":       b.Range.CheckIn,
		"check_out":      b.Range.CheckOut,
		"guest_count":    b.Guests,
		"price":          price,
		"amount_paid":    b.AmountPaid.Amount.String(),
		"currency":       b.Price.Currency(),
		"status":         string(b.Status),
		"payment_status": string(b.PaymentStatus),
		"cancel_reason":  string(b.CancelReason),
		"cancelled_by":   string(b.CancelledBy),
		"notes":          b.Notes,
		"created_at":     b.CreatedAt.UTC(),
		"updated_at":     b.UpdatedAt.UTC(),
		"version":        b.Version,
		"next_version":   b.Version + 1,
	}

	var tag pgconn.CommandTag
	if b.Version == 0 {
		tag, err = r.db.Exec(ctx, `
			INSERT INTO bookings (id, property_id, guest_id, check_in, check_out, guest_count, price,
				amount_paid, currency, status, payment_status, cancel_reason, cancelled_by, notes,
				created_at, updated_at, version)
			VALUES (@id, @property_id, @guest_id, @check_in, @check_out, @guest_count, @price,
				@amount_paid::numeric, @currency, @status, @payment_status, @cancel_reason, @cancelled_by, @notes,
				@created_at, @updated_at, @next_version)
			ON CONFLICT (id) DO NOTHING`, args)
	} else {
		tag, err = r.db.Exec(ctx, `
			UPDATE bookings SET
				check_in = @check_in,
				check_out = @check_out,
				guest_count = @guest_count,
				price = @price,
				amount_paid = @amount_paid::numeric,
				status = @status,
				payment_status = @payment_status,
				cancel_reason = @cancel_reason,
				cancelled_by = @cancelled_by,
				notes = @notes,
				updated_at = @updated_at,
				version = @next_version
			WHERE id = @id AND version = @version`, args)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domainbooking.ErrVersionConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainbooking.ErrVersionConflict
	}
	b.Version++
	return nil
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID property.ID, status domainbooking.Status) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE property_id = @property_id AND (@status = '' OR status = @status)
		ORDER BY check_in, id`,
		pgx.NamedArgs{"property_id": string(propertyID), "status": string(status)})
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE guest_id = @guest_id
		ORDER BY created_at, id`,
		pgx.NamedArgs{"guest_id": guestID})
}

func (r *BookingRepository) PendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = @status AND created_at < @cutoff
		ORDER BY created_at, id
		LIMIT @limit`,
		pgx.NamedArgs{"status": string(domainbooking.StatusPending), "cutoff": cutoff.UTC(), "limit": limitOrAll(limit)})
}

func (r *BookingRepository) ConfirmedEndedBy(ctx context.Context, day time.Time, limit int) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = @status AND check_out <= @day
		ORDER BY check_out, id
		LIMIT @limit`,
		pgx.NamedArgs{"status": string(domainbooking.StatusConfirmed), "day": daterange.Day(day), "limit": limitOrAll(limit)})
}

func (r *BookingRepository) list(ctx context.Context, query string, args pgx.NamedArgs) ([]*domainbooking.Booking, error) {
	rows, err := r.db.Query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domainbooking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*domainbooking.Booking, error) {
	var (
		id, propertyID, guestID          string
		checkIn, checkOut                time.Time
		guests                           int
		rawPrice                         []byte
		amountPaid, currency             string
		status, paymentStatus            string
		cancelReason, cancelledBy, notes string
		createdAt, updatedAt             time.Time
		version                          int64
	)
	if err := row.Scan(&id, &propertyID, &guestID, &checkIn, &checkOut, &guests, &rawPrice,
		&amountPaid, &currency, &status, &paymentStatus, &cancelReason, &cancelledBy,
		&notes, &createdAt, &updatedAt, &version); err != nil {
		return nil, err
	}

	var stored dto.PriceBreakdown
	if err := json.Unmarshal(rawPrice, &stored); err != nil {
		return nil, fmt.Errorf("booking %s price: %w", id, err)
	}
	price, err := stored.Domain()
	if err != nil {
		return nil, fmt.Errorf("booking %s price: %w", id, err)
	}
	paid, err := money.Parse(amountPaid, currency)
	if err != nil {
		return nil, fmt.Errorf("booking %s amount paid: %w", id, err)
	}
	return &domainbooking.Booking{
		ID:            domainbooking.ID(id),
		PropertyID:    property.ID(propertyID),
		GuestID:       guestID,
		Range:         daterange.DateRange{CheckIn: daterange.Day(checkIn), CheckOut: daterange.Day(checkOut)},
		Guests:        guests,
		Price:         price,
		AmountPaid:    paid,
		Status:        domainbooking.Status(status),
		PaymentStatus: domainbooking.PaymentStatus(paymentStatus),
		CancelReason:  domainbooking.CancelReason(cancelReason),
		CancelledBy:   domainbooking.Actor(cancelledBy),
		Notes:         notes,
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     updatedAt.UTC(),
		Version:       version,
	}, nil
}

// limitOrAll maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
