package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"rentbook/internal/app/commands"
	"rentbook/internal/domain/shared/fault"
)

// IdempotentCommand is a command a client may safely resend under the same key.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ReplayTarget returns a pointer the stored result is decoded into.
	ReplayTarget() any
}

// IdempotencyRecord is the stored outcome of the first run of a keyed command.
type IdempotencyRecord struct {
	Key         string    `json:"key"`
	Command     string    `json:"command"`
	Fingerprint string    `json:"fingerprint"`
	Result      []byte    `json:"result,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	ErrorMsg    string    `json:"error_msg,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

func (r IdempotencyRecord) failed() bool { return r.ErrorMsg != "" }

// IdempotencyStore keeps the first record saved under a key. Implementations
// may expire records.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

var ErrIdempotencyKeyReused = fault.New(fault.ErrConflict, "idempotency key was used for a different request")

// Idempotency replays the stored outcome of a keyed command instead of running
// it again. Keys are scoped per caller and command, so two callers cannot
// collide. Transient failures are not stored.
func Idempotency(store IdempotencyStore, now func() time.Time) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if now == nil {
		now = time.Now
	}
	return func(next commands.Bus) commands.Bus {
		return DispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			keyed, ok := cmd.(IdempotentCommand)
			if !ok || keyed.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := scopedKey(keyed)
			fingerprint, err := fingerprintOf(cmd)
			if err != nil {
				return nil, err
			}

			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, fault.Transient(err)
			}
			if found {
				return replay(rec, keyed, fingerprint)
			}

			res, runErr := next.Dispatch(ctx, cmd)
			if runErr != nil && errors.Is(runErr, fault.ErrTransient) {
				return nil, runErr
			}
			rec = IdempotencyRecord{
				Key:         key,
				Command:     cmd.Key(),
				Fingerprint: fingerprint,
				StoredAt:    now().UTC(),
			}
			if runErr != nil {
				rec.ErrorKind, rec.ErrorMsg = fault.Name(runErr), runErr.Error()
			} else if res != nil {
				if rec.Result, err = json.Marshal(res); err != nil {
					return nil, err
				}
			}
			if err := store.Save(ctx, rec); err != nil {
				return res, errors.Join(runErr, err)
			}
			return res, runErr
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, fingerprint string) (any, error) {
	if rec.Command != cmd.Key() || rec.Fingerprint != fingerprint {
		return nil, ErrIdempotencyKeyReused
	}
	if rec.failed() {
		return nil, fault.Restore(rec.ErrorKind, rec.ErrorMsg)
	}
	if len(rec.Result) == 0 {
		return nil, nil
	}
	target := cmd.ReplayTarget()
	if err := json.Unmarshal(rec.Result, target); err != nil {
		return nil, err
	}
	return target, nil
}

func scopedKey(cmd IdempotentCommand) string {
	actor := ""
	if m, ok := cmd.(ActorMessage); ok {
		actor = m.ActorID()
	}
	return actor + "|" + cmd.Key() + "|" + cmd.IdempotencyKey()
}

func fingerprintOf(cmd commands.Command) (string, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
