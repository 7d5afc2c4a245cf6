package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"rentbook/internal/app/uow"
	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

const guardCollection = "item_guards"

// Factory opens one session with a transaction per unit. Repositories are
// shared; they pick up the session from the context the unit binds.
type Factory struct {
	DB *mongo.Database

	ItemsRepo        catalog.Repository
	RentalsRepo      rental.Repository
	AvailabilityRepo availability.Repository
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, translate(err)
	}
	rc := readconcern.Snapshot()
	if opts.ReadOnly {
		rc = readconcern.Majority()
	}
	if err := session.StartTransaction(options.Transaction().SetReadConcern(rc).SetWriteConcern(writeconcern.Majority())); err != nil {
		session.EndSession(ctx)
		return nil, translate(err)
	}
	return &Unit{f: f, session: session}, nil
}

// Unit is one MongoDB transaction. It ends its session exactly once, on the
// first Commit or Rollback.
type Unit struct {
	f       Factory
	session mongo.Session
	ended   bool
}

func (u *Unit) Items() catalog.Repository             { return u.f.ItemsRepo }
func (u *Unit) Rentals() rental.Repository            { return u.f.RentalsRepo }
func (u *Unit) Availability() availability.Repository { return u.f.AvailabilityRepo }

// LockItem bumps the item's guard document inside the transaction. A
// concurrent transaction on the same item then hits a write conflict, which
// translate reports as transient so the command is retried.
func (u *Unit) LockItem(ctx context.Context, id catalog.ItemID) error {
	guards := u.f.DB.Collection(guardCollection)
	_, err := guards.UpdateByID(u.InjectContext(ctx), string(id), bson.M{"$inc": bson.M{"seq": 1}}, options.Update().SetUpsert(true))
	return translate(err)
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.ended {
		return nil
	}
	u.ended = true
	defer u.session.EndSession(ctx)
	return translate(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.ended {
		return nil
	}
	u.ended = true
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext binds the unit's session so repository calls join the
// transaction.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	if mongo.SessionFromContext(ctx) == u.session {
		return ctx
	}
	return mongo.NewSessionContext(ctx, u.session)
}
