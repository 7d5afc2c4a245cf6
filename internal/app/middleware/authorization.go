package middleware

import (
	"context"
	"strings"

	"rentbook/internal/domain/shared/fault"
)

var ErrActorRequired = fault.New(fault.ErrForbidden, "middleware: caller identity required")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorMessage is implemented by commands and queries issued on behalf of a caller.
type ActorMessage interface {
	ActorID() string
}

// ActorAuthorizer rejects actor-bound messages that arrive without a resolved caller.
// Role checks against the item and rental happen inside the handlers.
type ActorAuthorizer struct{}

func (ActorAuthorizer) Authorize(_ context.Context, message any) error {
	m, ok := message.(ActorMessage)
	if !ok {
		return nil
	}
	if strings.TrimSpace(m.ActorID()) == "" {
		return ErrActorRequired
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return precheck(a.Authorize).commands()
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return precheck(a.Authorize).queries()
}
