package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalisesCurrency(t *testing.T) {
	m, err := New(1500, " eur")
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: 1500, Currency: "EUR"}, m)
	assert.Equal(t, "1500 EUR", m.String())
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(100, "US")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
	_, err = New(100, "U$D")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
	_, err = New(-1, "USD")
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestTimesAndPlus(t *testing.T) {
	daily := Must(100, "USD")
	total, err := daily.Times(4).Plus(daily)
	require.NoError(t, err)
	assert.Equal(t, int64(500), total.Amount)

	_, err = daily.Plus(Must(1, "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}
