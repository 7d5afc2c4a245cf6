package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
	"rentbook/internal/domain/shared/daterange"
	"rentbook/internal/domain/shared/money"
)

type RentalRepository struct {
	col *mongo.Collection
}

func NewRentalRepository(db *mongo.Database) *RentalRepository {
	return &RentalRepository{col: db.Collection("agg_rental")}
}

func (r *RentalRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "status", Value: 1}, {Key: "start", Value: 1}}},
		{Keys: bson.D{{Key: "renter_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *RentalRepository) ByID(ctx context.Context, id rental.RentalID) (*rental.Rental, error) {
	var doc rentalDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, rental.ErrRentalNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate(), nil
}

func (r *RentalRepository) Save(ctx context.Context, rent *rental.Rental) error {
	doc := newRentalDocument(rent)
	filter := bson.M{"_id": doc.ID, "version": rent.Version}
	doc.Version = rent.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return rental.ErrConcurrentUpdate
		}
		return translate(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return rental.ErrConcurrentUpdate
	}
	rent.Version = doc.Version
	return nil
}

func (r *RentalRepository) Blocking(ctx context.Context, itemID catalog.ItemID, window daterange.DateRange) ([]*rental.Rental, error) {
	return r.find(ctx, bson.M{
		"item_id": string(itemID),
		"status":  bson.M{"$in": statusStrings(rental.BlockingStatuses)},
		"start":   bson.M{"$lte": window.End},
		"end":     bson.M{"$gte": window.Start},
	}, bson.D{{Key: "start", Value: 1}})
}

func (r *RentalRepository) ListByItem(ctx context.Context, itemID catalog.ItemID) ([]*rental.Rental, error) {
	return r.find(ctx, bson.M{"item_id": string(itemID)}, bson.D{{Key: "start", Value: 1}})
}

func (r *RentalRepository) ListByRenter(ctx context.Context, renterID string) ([]*rental.Rental, error) {
	return r.find(ctx, bson.M{"renter_id": renterID}, bson.D{{Key: "created_at", Value: -1}})
}

func (r *RentalRepository) ListByOwner(ctx context.Context, ownerID string) ([]*rental.Rental, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID}, bson.D{{Key: "created_at", Value: -1}})
}

func (r *RentalRepository) ListStale(ctx context.Context, day time.Time) ([]*rental.Rental, error) {
	return r.find(ctx, bson.M{
		"status": bson.M{"$in": statusStrings([]rental.Status{rental.StatusPending, rental.StatusOwnerAccepted})},
		"start":  bson.M{"$lt": daterange.Day(day)},
	}, bson.D{{Key: "start", Value: 1}})
}

func (r *RentalRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]*rental.Rental, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, translate(err)
	}
	var docs []rentalDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	out := make([]*rental.Rental, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func statusStrings(ss []rental.Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

type rentalDocument struct {
	ID                 string      `bson:"_id"`
	ItemID             string      `bson:"item_id"`
	RenterID           string      `bson:"renter_id"`
	OwnerID            string      `bson:"owner_id"`
	Start              time.Time   `bson:"start"`
	End                time.Time   `bson:"end"`
	DurationDays       int         `bson:"duration_days"`
	DailyPrice         money.Money `bson:"daily_price"`
	TotalPrice         money.Money `bson:"total_price"`
	Deposit            money.Money `bson:"deposit"`
	Status             string      `bson:"status"`
	AcceptedAt         *time.Time  `bson:"accepted_at,omitempty"`
	RenterConfirmedAt  *time.Time  `bson:"renter_confirmed_at,omitempty"`
	PickupAt           *time.Time  `bson:"pickup_at,omitempty"`
	ReturnAt           *time.Time  `bson:"return_at,omitempty"`
	CancelledAt        *time.Time  `bson:"cancelled_at,omitempty"`
	CancellationReason string      `bson:"cancellation_reason,omitempty"`
	CreatedAt          time.Time   `bson:"created_at"`
	UpdatedAt          time.Time   `bson:"updated_at"`
	Version            int64       `bson:"version"`
}

func newRentalDocument(r *rental.Rental) rentalDocument {
	return rentalDocument{
		ID:                 string(r.ID),
		ItemID:             string(r.ItemID),
		RenterID:           r.RenterID,
		OwnerID:            r.OwnerID,
		Start:              r.Period.Start,
		End:                r.Period.End,
		DurationDays:       r.DurationDays,
		DailyPrice:         r.DailyPrice,
		TotalPrice:         r.TotalPrice,
		Deposit:            r.Deposit,
		Status:             string(r.Status),
		AcceptedAt:         optionalTime(r.AcceptedAt),
		RenterConfirmedAt:  optionalTime(r.RenterConfirmedAt),
		PickupAt:           optionalTime(r.PickupAt),
		ReturnAt:           optionalTime(r.ReturnAt),
		CancelledAt:        optionalTime(r.CancelledAt),
		CancellationReason: r.CancellationReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Version:            r.Version,
	}
}

func (d rentalDocument) toAggregate() *rental.Rental {
	return &rental.Rental{
		ID:                 rental.RentalID(d.ID),
		ItemID:             catalog.ItemID(d.ItemID),
		RenterID:           d.RenterID,
		OwnerID:            d.OwnerID,
		Period:             daterange.DateRange{Start: d.Start.UTC(), End: d.End.UTC()},
		DurationDays:       d.DurationDays,
		DailyPrice:         d.DailyPrice,
		TotalPrice:         d.TotalPrice,
		Deposit:            d.Deposit,
		Status:             rental.Status(d.Status),
		AcceptedAt:         derefTime(d.AcceptedAt),
		RenterConfirmedAt:  derefTime(d.RenterConfirmedAt),
		PickupAt:           derefTime(d.PickupAt),
		ReturnAt:           derefTime(d.ReturnAt),
		CancelledAt:        derefTime(d.CancelledAt),
		CancellationReason: d.CancellationReason,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
		Version:            d.Version,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
