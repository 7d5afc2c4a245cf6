package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"rentbook/internal/domain/shared/fault"
)

const writeConflictCode = 112

// translate maps driver failures that a fresh transaction could get past to
// fault.ErrTransient. Everything else passes through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorLabel("TransientTransactionError") || se.HasErrorLabel("UnknownTransactionCommitResult") {
			return fault.Transient(err)
		}
		if se.HasErrorCode(writeConflictCode) {
			return fault.Transient(err)
		}
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return fault.Transient(err)
	}
	return err
}
