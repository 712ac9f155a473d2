package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/app/dto"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("agg_booking")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "status", Value: 1}, {Key: "check_in", Value: 1}}},
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	return &BookingRepository{col: col}
}

var _ domainbooking.Repository = (*BookingRepository)(nil)

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domainbooking.ErrNotFound, id)
		}
		return nil, err
	}
	return doc.toAggregate()
}

// Save upserts b guarded by its version. A stale version either matches no
// document or collides on _id, and both surface as ErrVersionConflict.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrVersionConflict
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainbooking.ErrVersionConflict
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID property.ID, status domainbooking.Status) ([]*domainbooking.Booking, error) {
	filter := bson.M{"property_id": string(propertyID)}
	if status != "" {
		filter["status"] = string(status)
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"guest_id": guestID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *BookingRepository) PendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domainbooking.Booking, error) {
	filter := bson.M{"status": string(domainbooking.StatusPending), "created_at": bson.M{"$lt": cutoff.UTC()}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *BookingRepository) ConfirmedEndedBy(ctx context.Context, day time.Time, limit int) ([]*domainbooking.Booking, error) {
	filter := bson.M{"status": string(domainbooking.StatusConfirmed), "check_out": bson.M{"$lte": daterange.Day(day)}}
	opts := options.Find().SetSort(bson.D{{Key: "check_out", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		agg, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, cur.Err()
}

type bookingDocument struct {
	ID            string             `bson:"_id"`
	PropertyID    string             `bson:"property_id"`
	GuestID       string             `bson:"guest_id"`
	CheckIn       time.Time          `bson:"check_in"`
	CheckOut      time.Time          `bson:"check_out"`
	Guests        int                `bson:"guest_count"`
	Price         dto.PriceBreakdown `bson:"price"`
	AmountPaid    string             `bson:"amount_paid"`
	Currency      string             `bson:"currency"`
	Status        string             `bson:"status"`
	PaymentStatus string             `bson:"payment_status"`
	CancelReason  string             `bson:"cancel_reason,omitempty"`
	CancelledBy   string             `bson:"cancelled_by,omitempty"`
	Notes         string             `bson:"notes,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
	Version       int64              `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:            string(b.ID),
		PropertyID:    string(b.PropertyID),
		GuestID:       b.GuestID,
		CheckIn:       b.Range.CheckIn,
		CheckOut:      b.Range.CheckOut,
		Guests:        b.Guests,
		Price:         dto.MapPriceBreakdown(b.Price),
		AmountPaid:    b.AmountPaid.Amount.String(),
		Currency:      b.Price.Currency(),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		CancelReason:  string(b.CancelReason),
		CancelledBy:   string(b.CancelledBy),
		Notes:         b.Notes,
		CreatedAt:     b.CreatedAt.UTC(),
		UpdatedAt:     b.UpdatedAt.UTC(),
		Version:       b.Version,
	}
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	price, err := d.Price.Domain()
	if err != nil {
		return nil, fmt.Errorf("booking %s price: %w", d.ID, err)
	}
	paid, err := money.Parse(d.AmountPaid, d.Currency)
	if err != nil {
		return nil, fmt.Errorf("booking %s amount paid: %w", d.ID, err)
	}
	return &domainbooking.Booking{
		ID:            domainbooking.ID(d.ID),
		PropertyID:    property.ID(d.PropertyID),
		GuestID:       d.GuestID,
		Range:         daterange.DateRange{CheckIn: daterange.Day(d.CheckIn), CheckOut: daterange.Day(d.CheckOut)},
		Guests:        d.Guests,
		Price:         price,
		AmountPaid:    paid,
		Status:        domainbooking.Status(d.Status),
		PaymentStatus: domainbooking.PaymentStatus(d.PaymentStatus),
		CancelReason:  domainbooking.CancelReason(d.CancelReason),
		CancelledBy:   domainbooking.Actor(d.CancelledBy),
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		Version:       d.Version,
	}, nil
}
