package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	appoutbox "rentbook/internal/app/outbox"
	"rentbook/internal/app/uow"
)

var ErrOutboxOutsideUnit = errors.New("postgres: outbox add requires a postgres unit of work")

// Outbox writes records through the caller's transaction and hands them to
// the relay with FOR UPDATE SKIP LOCKED so several relays can share the table.
type Outbox struct {
	DB     *sqlx.DB
	notify chan struct{}
}

func NewOutbox(db *sqlx.DB) *Outbox {
	return &Outbox{DB: db, notify: make(chan struct{}, 1)}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return ErrOutboxOutsideUnit
	}
	pu, ok := unit.(*Unit)
	if !ok {
		return ErrOutboxOutsideUnit
	}
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	_, err = pu.tx.ExecContext(ctx, `INSERT INTO app_outbox (id, name, payload, occurred_at, aggregate, headers)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.Name, record.Payload, record.OccurredAt, record.Aggregate, headers)
	return translate(err)
}

func (o *Outbox) Flush(context.Context) error {
	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

func (o *Outbox) Notify() <-chan struct{} {
	return o.notify
}

func (o *Outbox) Claim(ctx context.Context, workerID string, limit int) ([]appoutbox.Pending, error) {
	var rows []outboxRow
	err := o.DB.SelectContext(ctx, &rows, `UPDATE app_outbox SET state = 'CLAIMED', claimed_by = $1, claimed_at = now()
		WHERE id IN (
			SELECT id FROM app_outbox
			WHERE (state IN ('NEW', 'FAILED') AND next_attempt_at <= now())
			   OR (state = 'CLAIMED' AND claimed_at <= now() - interval '2 minutes')
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED)
		RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`, workerID, limit)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]appoutbox.Pending, 0, len(rows))
	for _, row := range rows {
		var headers map[string]string
		if len(row.Headers) > 0 {
			if err := json.Unmarshal(row.Headers, &headers); err != nil {
				return nil, err
			}
		}
		out = append(out, appoutbox.Pending{
			EventRecord: appoutbox.EventRecord{
				ID:         row.ID,
				Name:       row.Name,
				Payload:    row.Payload,
				OccurredAt: row.OccurredAt.UTC(),
				Aggregate:  row.Aggregate,
				Headers:    headers,
			},
			Attempts: row.Attempts,
		})
	}
	return out, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	_, err := o.DB.ExecContext(ctx, `UPDATE app_outbox SET state = 'SENT', sent_at = now() WHERE id = $1`, id)
	return err
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := o.DB.ExecContext(ctx, `UPDATE app_outbox SET state = 'FAILED', attempts = attempts + 1,
		next_attempt_at = $2, last_error = $3 WHERE id = $1`, id, next, errMsg)
	return err
}

type outboxRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Payload    []byte    `db:"payload"`
	OccurredAt time.Time `db:"occurred_at"`
	Aggregate  string    `db:"aggregate"`
	Headers    []byte    `db:"headers"`
	Attempts   int       `db:"attempts"`
}

var _ appoutbox.Outbox = (*Outbox)(nil)
