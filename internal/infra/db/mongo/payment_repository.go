package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentbook/internal/domain/payment"
)

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{col: db.Collection("payment_receipts")}
}

func (r *PaymentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "rental_id", Value: 1}}})
	return err
}

// RecordSucceeded keeps the first receipt for a payment id.
func (r *PaymentRepository) RecordSucceeded(ctx context.Context, receipt payment.Receipt) error {
	id := receipt.PaymentID
	if id == "" {
		id = receipt.RentalID
	}
	doc := bson.M{
		"rental_id":    receipt.RentalID,
		"amount":       receipt.Amount,
		"succeeded_at": receipt.SucceededAt,
		"recorded_at":  time.Now().UTC(),
	}
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
	return translate(err)
}

func (r *PaymentRepository) HasSucceeded(ctx context.Context, rentalID string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"rental_id": rentalID}, options.Count().SetLimit(1))
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}
