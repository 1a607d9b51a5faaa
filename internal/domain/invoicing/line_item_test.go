package invoicing

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLineItem(t *testing.T) {
	t.Run("valid amount", func(t *testing.T) {
		li, err := NewLineItem("Consulting", decimal.RequireFromString("150.00"))
		require.NoError(t, err)
		assert.Equal(t, "Consulting", li.Description())
		assert.True(t, li.Amount().Equal(decimal.NewFromInt(150)))
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := NewLineItem("Free", decimal.Zero)
		assert.NoError(t, err)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := NewLineItem("Refund", decimal.NewFromInt(-1))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidLineItem))
	})
}

func TestNewLineItemFromFloat(t *testing.T) {
	li, err := NewLineItemFromFloat("Consulting", 99.5)
	require.NoError(t, err)
	assert.Equal(t, "99.50", li.Amount().StringFixed(2))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.01} {
		_, err := NewLineItemFromFloat("Bad", v)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidLineItem))
	}
}

func TestNewLineItemFromString(t *testing.T) {
	li, err := NewLineItemFromString("Hosting", " 12.3 ")
	require.NoError(t, err)
	assert.Equal(t, "12.30", li.Amount().StringFixed(2))

	_, err = NewLineItemFromString("Hosting", "twelve")
	assert.True(t, errors.Is(err, ErrInvalidLineItem))
}

func TestLineItem_MarshalJSON(t *testing.T) {
	li, err := NewLineItem("Consulting", decimal.NewFromInt(150))
	require.NoError(t, err)

	data, err := json.Marshal([]LineItem{li})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"description":"Consulting","amount":150.00}]`, string(data))
}

func TestSumAmounts(t *testing.T) {
	assert.True(t, SumAmounts(nil).IsZero())

	a, _ := NewLineItem("a", decimal.RequireFromString("0.10"))
	b, _ := NewLineItem("b", decimal.RequireFromString("0.20"))
	c, _ := NewLineItem("c", decimal.RequireFromString("100"))
	assert.Equal(t, "100.30", SumAmounts([]LineItem{a, b, c}).StringFixed(2))
	assert.True(t, SumAmounts([]LineItem{a}).Equal(a.Amount()))
}
