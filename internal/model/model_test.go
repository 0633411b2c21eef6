package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(MustMoney("28"))
	require.NoError(t, err)
	assert.Equal(t, `"28.00"`, string(b))

	var fromNumber Money
	require.NoError(t, json.Unmarshal([]byte(`22.456`), &fromNumber))
	assert.Equal(t, "22.46", fromNumber.String())

	var fromString Money
	require.NoError(t, json.Unmarshal([]byte(`"13.5"`), &fromString))
	assert.Equal(t, "13.50", fromString.String())
}

func TestMoneyFromFloatRejectsNonFinite(t *testing.T) {
	_, err := MoneyFromFloat(math.NaN())
	assert.Error(t, err)
	_, err = MoneyFromFloat(math.Inf(1))
	assert.Error(t, err)
}

func TestMoneyPoints(t *testing.T) {
	assert.Equal(t, int64(22), MustMoney("22.00").Points())
	assert.Equal(t, int64(22), MustMoney("22.99").Points())
	assert.Equal(t, int64(0), MustMoney("0.50").Points())
}

func TestMoneyMulInt(t *testing.T) {
	assert.Equal(t, "37.50", MustMoney("12.50").MulInt(3).String())
	assert.True(t, MustMoney("0.1").MulInt(3).Equal(MustMoney("0.30")))
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(OrderStatusPending, OrderStatusCompleted))
	assert.True(t, CanTransitionTo(OrderStatusCompleted, OrderStatusCompleted))
	assert.False(t, CanTransitionTo(OrderStatusCompleted, OrderStatusPending))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, OrderStatusCompleted, NormalizeStatus(" 已完成 "))
	assert.Equal(t, OrderStatusPending, NormalizeStatus("PAID"))
	assert.Equal(t, OrderStatusPending, NormalizeStatus(""))
}
