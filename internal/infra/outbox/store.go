package outbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "rentbook/internal/app/outbox"
)

// Record lifecycle: NEW -> CLAIMED -> SENT, or CLAIMED -> FAILED -> CLAIMED.
const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

const (
	// claimTimeout returns abandoned CLAIMED records to the pool.
	claimTimeout = 2 * time.Minute
	// sentRetention is how long SENT records stay around for inspection.
	sentRetention = 72 * time.Hour
)

// MongoStore keeps outbox records in app_outbox. Add must run with the
// unit's session context so the insert commits with the aggregate.
type MongoStore struct {
	col    *mongo.Collection
	notify chan struct{}
	now    func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		col:    db.Collection("app_outbox"),
		notify: make(chan struct{}, 1),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		{
			Keys: bson.D{{Key: "sent_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(int32(sentRetention / time.Second)).
				SetPartialFilterExpression(bson.M{"state": stateSent}),
		},
	})
	return err
}

type outboxDoc struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Aggregate   string            `bson:"aggregate"`
	Payload     []byte            `bson:"payload"`
	Headers     map[string]string `bson:"headers,omitempty"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
	ClaimedAt   *time.Time        `bson:"claimed_at,omitempty"`
	SentAt      *time.Time        `bson:"sent_at,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
	CreatedAt   time.Time         `bson:"created_at"`
}

func (s *MongoStore) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	now := s.now()
	_, err := s.col.InsertOne(ctx, outboxDoc{
		ID:          rec.ID,
		Name:        rec.Name,
		Aggregate:   rec.Aggregate,
		Payload:     rec.Payload,
		Headers:     rec.Headers,
		OccurredAt:  rec.OccurredAt,
		State:       stateNew,
		NextAttempt: now,
		CreatedAt:   now,
	})
	return err
}

// Flush wakes the relay worker listening on Notify.
func (s *MongoStore) Flush(context.Context) error {
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

func (s *MongoStore) Notify() <-chan struct{} {
	return s.notify
}

// Claim takes up to limit due records one at a time so concurrent relays
// never receive the same record.
func (s *MongoStore) Claim(ctx context.Context, workerID string, limit int) ([]appoutbox.Pending, error) {
	now := s.now()
	due := bson.M{"$or": bson.A{
		bson.M{"state": bson.M{"$in": bson.A{stateNew, stateFailed}}, "next_attempt_at": bson.M{"$lte": now}},
		bson.M{"state": stateClaimed, "claimed_at": bson.M{"$lte": now.Add(-claimTimeout)}},
	}}
	claim := bson.M{"$set": bson.M{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	claimed := make([]appoutbox.Pending, 0, limit)
	for len(claimed) < limit {
		var doc outboxDoc
		err := s.col.FindOneAndUpdate(ctx, due, claim, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, appoutbox.Pending{
			EventRecord: appoutbox.EventRecord{
				ID:         doc.ID,
				Name:       doc.Name,
				Aggregate:  doc.Aggregate,
				Payload:    doc.Payload,
				Headers:    doc.Headers,
				OccurredAt: doc.OccurredAt,
			},
			Attempts: doc.Attempts,
		})
	}
	return claimed, nil
}

func (s *MongoStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"state": stateSent, "sent_at": s.now()},
		"$unset": bson.M{"last_error": ""},
	})
	return err
}

func (s *MongoStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"state": stateFailed, "next_attempt_at": next, "last_error": errMsg},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

var (
	_ appoutbox.Outbox = (*MongoStore)(nil)
	_ Store            = (*MongoStore)(nil)
)
