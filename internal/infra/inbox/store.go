// Package inbox deduplicates broker deliveries in MongoDB so an event
// redelivered after a crash is applied once.
package inbox

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Retention is how long a processed event id is remembered. Brokers do not
// redeliver older messages.
const Retention = 30 * 24 * time.Hour

// Store claims event ids per consumer in app_inbox. The document id joins
// consumer and event id, so the claim is a single insert.
type Store struct {
	col      *mongo.Collection
	consumer string
	now      func() time.Time
}

func NewStore(db *mongo.Database, consumer string) *Store {
	return &Store{col: db.Collection("app_inbox"), consumer: consumer, now: time.Now}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "claimed_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(Retention / time.Second)),
	})
	return err
}

func (s *Store) docID(eventID string) string {
	return s.consumer + "/" + eventID
}

// Seen claims eventID and reports whether an earlier delivery already had it.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := s.col.InsertOne(ctx, bson.D{
		{Key: "_id", Value: s.docID(eventID)},
		{Key: "consumer", Value: s.consumer},
		{Key: "event_id", Value: eventID},
		{Key: "claimed_at", Value: s.now().UTC()},
	})
	switch {
	case err == nil:
		return false, nil
	case mongo.IsDuplicateKeyError(err):
		return true, nil
	default:
		return false, err
	}
}

// Release gives up a claim after the handler failed, so redelivery runs again.
func (s *Store) Release(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.D{{Key: "_id", Value: s.docID(eventID)}})
	return err
}
