// Package payments turns payment.succeeded events from the payments service
// into receipts that rental confirmation checks.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	handlersupport "rentbook/internal/app/handlers/support"
	"rentbook/internal/domain/payment"
	"rentbook/internal/domain/shared/money"
)

const SucceededEventType = "payment.succeeded"

var ErrMalformedEvent = errors.New("payments: malformed event")

// Inbox deduplicates deliveries by event id. Release forgets an id whose
// processing failed so a redelivery is handled again.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

type succeededData struct {
	PaymentID   string      `json:"payment_id"`
	RentalID    string      `json:"rental_id"`
	Amount      money.Money `json:"amount"`
	SucceededAt time.Time   `json:"succeeded_at"`
}

type SucceededHandler struct {
	Receipts payment.Repository
	Inbox    Inbox
	Logger   *slog.Logger
}

// HandlePayload accepts a CloudEvents JSON document. Events of other types are
// acknowledged and ignored.
func (h *SucceededHandler) HandlePayload(ctx context.Context, payload []byte) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if !strings.HasPrefix(env.Type, SucceededEventType) {
		return nil
	}
	var data succeededData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.ID == "" || data.RentalID == "" {
		return fmt.Errorf("%w: id and rental_id required", ErrMalformedEvent)
	}
	logger := handlersupport.Logger(h.Logger)
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, env.ID)
		if err != nil {
			return err
		}
		if seen {
			logger.Debug("payment event already processed", "event_id", env.ID)
			return nil
		}
	}
	succeededAt := data.SucceededAt
	if succeededAt.IsZero() {
		succeededAt = env.Time
	}
	receipt := payment.Receipt{
		PaymentID:   data.PaymentID,
		RentalID:    data.RentalID,
		Amount:      data.Amount,
		SucceededAt: succeededAt.UTC(),
	}
	if err := h.Receipts.RecordSucceeded(ctx, receipt); err != nil {
		if h.Inbox != nil {
			if relErr := h.Inbox.Release(ctx, env.ID); relErr != nil {
				return errors.Join(err, relErr)
			}
		}
		return err
	}
	logger.Info("payment receipt recorded", "event_id", env.ID, "rental_id", data.RentalID, "payment_id", data.PaymentID)
	return nil
}
