package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/money"
)

type itemFixture struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	DailyPrice  int64  `json:"daily_price"`
	Deposit     int64  `json:"deposit"`
	Currency    string `json:"currency"`
	Unavailable bool   `json:"unavailable"`
	Deleted     bool   `json:"deleted"`
}

func (fx itemFixture) toItem() (catalog.Item, error) {
	if fx.ID == "" || fx.OwnerID == "" {
		return catalog.Item{}, errors.New("id and owner_id required")
	}
	currency := fx.Currency
	if currency == "" {
		currency = "USD"
	}
	price, err := money.New(fx.DailyPrice, currency)
	if err != nil {
		return catalog.Item{}, err
	}
	deposit, err := money.New(fx.Deposit, currency)
	if err != nil {
		return catalog.Item{}, err
	}
	return catalog.Item{
		ID:         catalog.ItemID(fx.ID),
		OwnerID:    fx.OwnerID,
		Title:      fx.Title,
		DailyPrice: price,
		Deposit:    deposit,
		Available:  !fx.Unavailable,
		Deleted:    fx.Deleted,
	}, nil
}

// loadItemFixtures mirrors catalog entries from a JSON file into the store.
// The catalog service owns items; fixtures only serve local runs.
func (a *application) loadItemFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	if path == "" {
		path = defaultItemFixturesPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("item fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("item fixtures file empty", "path", path)
		return nil
	}

	var fixtures []itemFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		item, err := fx.toItem()
		if err != nil {
			logger.Error("fixture invalid", "item_id", fx.ID, "error", err)
			continue
		}
		if err := a.putItem(ctx, item); err != nil {
			logger.Error("cannot store fixture item", "item_id", fx.ID, "error", err)
			continue
		}
		logger.Info("item fixture imported", "item_id", item.ID)
	}
	return nil
}

func defaultItemFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "items.json"),
		filepath.Join("..", "data", "items.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
