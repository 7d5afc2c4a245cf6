package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/daterange"
)

// AvailabilityRepository stores one document per (item, date).
type AvailabilityRepository struct {
	col *mongo.Collection
}

func NewAvailabilityRepository(db *mongo.Database) *AvailabilityRepository {
	return &AvailabilityRepository{col: db.Collection("availability_days")}
}

func (r *AvailabilityRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "rental_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func (r *AvailabilityRepository) Range(ctx context.Context, itemID catalog.ItemID, window daterange.DateRange) ([]availability.Day, error) {
	return r.find(ctx, bson.M{
		"item_id": string(itemID),
		"date":    bson.M{"$gte": window.Start, "$lte": window.End},
	})
}

func (r *AvailabilityRepository) ByRental(ctx context.Context, rentalID string) ([]availability.Day, error) {
	return r.find(ctx, bson.M{"rental_id": rentalID})
}

func (r *AvailabilityRepository) Save(ctx context.Context, days []availability.Day) error {
	if len(days) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(days))
	for _, d := range days {
		doc := newDayDocument(d)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := r.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return translate(err)
}

func (r *AvailabilityRepository) find(ctx context.Context, filter bson.M) ([]availability.Day, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, translate(err)
	}
	var docs []dayDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	out := make([]availability.Day, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDay())
	}
	return out, nil
}

type dayDocument struct {
	ID        string    `bson:"_id"`
	ItemID    string    `bson:"item_id"`
	Date      time.Time `bson:"date"`
	Available bool      `bson:"available"`
	Reason    string    `bson:"reason,omitempty"`
	RentalID  string    `bson:"rental_id,omitempty"`
	Note      string    `bson:"note,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func newDayDocument(d availability.Day) dayDocument {
	date := daterange.Day(d.Date)
	return dayDocument{
		ID:        string(d.ItemID) + ":" + date.Format(daterange.Layout),
		ItemID:    string(d.ItemID),
		Date:      date,
		Available: d.Available,
		Reason:    string(d.Reason),
		RentalID:  d.RentalID,
		Note:      d.Note,
		UpdatedAt: d.UpdatedAt,
	}
}

func (d dayDocument) toDay() availability.Day {
	return availability.Day{
		ItemID:    catalog.ItemID(d.ItemID),
		Date:      d.Date.UTC(),
		Available: d.Available,
		Reason:    availability.Reason(d.Reason),
		RentalID:  d.RentalID,
		Note:      d.Note,
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}
