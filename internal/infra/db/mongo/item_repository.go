package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/money"
)

// ItemRepository reads the catalog projection kept in catalog_items.
type ItemRepository struct {
	col *mongo.Collection
}

func NewItemRepository(db *mongo.Database) *ItemRepository {
	return &ItemRepository{col: db.Collection("catalog_items")}
}

func (r *ItemRepository) ByID(ctx context.Context, id catalog.ItemID) (*catalog.Item, error) {
	var doc itemDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalog.ErrItemNotFound
		}
		return nil, translate(err)
	}
	return doc.toItem(), nil
}

func (r *ItemRepository) SetAvailable(ctx context.Context, id catalog.ItemID, available bool) error {
	res, err := r.col.UpdateByID(ctx, string(id), bson.M{"$set": bson.M{"available": available}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return catalog.ErrItemNotFound
	}
	return nil
}

// Upsert stores a catalog entry. Used by fixture loading.
func (r *ItemRepository) Upsert(ctx context.Context, item catalog.Item) error {
	doc := itemDocument{
		ID:         string(item.ID),
		OwnerID:    item.OwnerID,
		Title:      item.Title,
		DailyPrice: item.DailyPrice,
		Deposit:    item.Deposit,
		Available:  item.Available,
		Deleted:    item.Deleted,
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return translate(err)
}

type itemDocument struct {
	ID         string      `bson:"_id"`
	OwnerID    string      `bson:"owner_id"`
	Title      string      `bson:"title"`
	DailyPrice money.Money `bson:"daily_price"`
	Deposit    money.Money `bson:"deposit"`
	Available  bool        `bson:"available"`
	Deleted    bool        `bson:"deleted"`
}

func (d itemDocument) toItem() *catalog.Item {
	return &catalog.Item{
		ID:         catalog.ItemID(d.ID),
		OwnerID:    d.OwnerID,
		Title:      d.Title,
		DailyPrice: d.DailyPrice,
		Deposit:    d.Deposit,
		Available:  d.Available,
		Deleted:    d.Deleted,
	}
}
