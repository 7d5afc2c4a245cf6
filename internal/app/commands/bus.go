// Package commands routes rental and availability write intents to their
// handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Command is a write intent. Key must not depend on field values: a zero
// value of the command type yields the routing key.
type Command interface {
	Key() string
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// Bus is what middleware wraps and callers dispatch through.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrUnknownCommand = errors.New("commands: no handler registered")
	ErrResultType     = errors.New("commands: unexpected result type")
)

type route func(ctx context.Context, cmd Command) (any, error)

// Router maps command keys to handlers. Registration happens at wiring time;
// dispatch is safe for concurrent use.
type Router struct {
	mu     sync.RWMutex
	routes map[string]route
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]route)}
}

func (r *Router) add(key string, fn route) {
	if key == "" {
		panic("commands: command type has an empty key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.routes[key]; dup {
		panic(fmt.Sprintf("commands: %q registered twice", key))
	}
	r.routes[key] = fn
}

func (r *Router) Dispatch(ctx context.Context, cmd Command) (any, error) {
	r.mu.RLock()
	fn, ok := r.routes[cmd.Key()]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Key())
	}
	return fn(ctx, cmd)
}

// Keys lists registered command keys in no particular order.
func (r *Router) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.routes))
	for k := range r.routes {
		keys = append(keys, k)
	}
	return keys
}

// Register binds h to the key of command type C.
func Register[C Command, R any](r *Router, h Handler[C, R]) {
	var zero C
	key := zero.Key()
	r.add(key, func(ctx context.Context, raw Command) (any, error) {
		cmd, ok := raw.(C)
		if !ok {
			return nil, fmt.Errorf("commands: %s routed a %T", key, raw)
		}
		return h.Handle(ctx, cmd)
	})
}

// Send dispatches cmd and asserts the handler's result type.
func Send[R any, C Command](ctx context.Context, bus Bus, cmd C) (R, error) {
	var out R
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil || res == nil {
		return out, err
	}
	out, ok := res.(R)
	if !ok {
		return out, fmt.Errorf("%w: %s returned %T", ErrResultType, cmd.Key(), res)
	}
	return out, nil
}
