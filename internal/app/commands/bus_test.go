package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct{ N int }

func (ping) Key() string { return "test.ping" }

type other struct{}

func (other) Key() string { return "test.other" }

func TestRouterSendsToRegisteredHandler(t *testing.T) {
	r := NewRouter()
	Register(r, HandlerFunc[ping, int](func(_ context.Context, p ping) (int, error) {
		return p.N * 2, nil
	}))

	got, err := Send[int](context.Background(), r, ping{N: 21})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, []string{"test.ping"}, r.Keys())
}

func TestRouterUnknownCommand(t *testing.T) {
	_, err := NewRouter().Dispatch(context.Background(), other{})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), "test.other")
}

func TestRouterRejectsDuplicateKeys(t *testing.T) {
	r := NewRouter()
	h := HandlerFunc[ping, int](func(context.Context, ping) (int, error) { return 0, nil })
	Register(r, h)
	assert.Panics(t, func() { Register(r, h) })
}

func TestSendChecksResultType(t *testing.T) {
	r := NewRouter()
	Register(r, HandlerFunc[ping, string](func(context.Context, ping) (string, error) { return "x", nil }))

	_, err := Send[int](context.Background(), r, ping{})
	assert.ErrorIs(t, err, ErrResultType)
}

func TestSendPassesHandlerErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter()
	Register(r, HandlerFunc[ping, int](func(context.Context, ping) (int, error) { return 0, boom }))

	_, err := Send[int](context.Background(), r, ping{})
	assert.ErrorIs(t, err, boom)
}
