package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeClose(t *testing.T) {
	opened := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	trade := NewTrade("TRD-1", "CHA-1", "USR-1", "AAPL", d("10"), d("150"), decimal.NullDecimal{}, decimal.NullDecimal{}, opened)

	assert.True(t, trade.Notional().Equal(d("1500")))
	assert.Equal(t, TradeStatusOpen, trade.Status)

	closedAt := opened.Add(time.Hour)
	require.NoError(t, trade.Close(d("152.5"), closedAt))

	assert.True(t, trade.Pnl.Equal(d("25")), "pnl = (152.5-150)*10, got %s", trade.Pnl)
	assert.Equal(t, TradeStatusClosed, trade.Status)
	require.NotNil(t, trade.ClosedAt)
	assert.Equal(t, closedAt, *trade.ClosedAt)

	// 二次平仓被拒绝，盈亏定格不变。
	err := trade.Close(d("200"), closedAt.Add(time.Minute))
	assert.ErrorIs(t, err, ErrTradeAlreadyClosed)
	assert.True(t, trade.Pnl.Equal(d("25")))
	assert.True(t, trade.ExitPrice.Equal(d("152.5")))
}
