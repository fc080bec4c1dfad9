package exchange

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	inner := errors.New("timeout")
	transient := &TransientError{Op: "op", Err: inner}
	rejected := &RejectedError{Op: "op", Code: -2010, Err: inner}

	assert.True(t, IsTransient(transient))
	assert.False(t, IsRejected(transient))
	assert.True(t, IsRejected(rejected))
	assert.False(t, IsTransient(rejected))
	assert.ErrorIs(t, transient, inner)
	assert.ErrorIs(t, rejected, inner)

	// Classification survives wrapping.
	wrapped := fmt.Errorf("open BTCUSDT: %w", transient)
	assert.True(t, IsTransient(wrapped))
}

type staticQuoter struct {
	price float64
	err   error
}

func (q staticQuoter) GetPrice(context.Context, string) (float64, error) {
	return q.price, q.err
}

func TestPaperFillsAtQuote(t *testing.T) {
	p, err := NewPaper(staticQuoter{price: 123.45}, "")
	require.NoError(t, err)
	assert.Equal(t, "paper", p.Name())

	fill, err := p.PlaceMarketOrder(context.Background(), "BTCUSDT", OrderBuy, 2)
	require.NoError(t, err)
	assert.InDelta(t, 123.45, fill.Price, 1e-9)
	assert.InDelta(t, 2.0, fill.Quantity, 1e-9)
}

func TestPaperQuoteFailureIsTransient(t *testing.T) {
	p, err := NewPaper(staticQuoter{err: errors.New("down")}, "dry-run")
	require.NoError(t, err)

	_, err = p.PlaceMarketOrder(context.Background(), "BTCUSDT", OrderSell, 1)
	assert.True(t, IsTransient(err))
}

func TestPaperRequiresQuoter(t *testing.T) {
	_, err := NewPaper(nil, "paper")
	assert.Error(t, err)
}
