package usecase_test

import (
	"strconv"
	"testing"

	"github.com/ethan1027/quick-trades/internal/domain"
	"github.com/ethan1027/quick-trades/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fill(id, symbol string, side domain.Side, intent domain.Intent, qty int, price float64) *domain.Order {
	return &domain.Order{
		ID:                id,
		Type:              domain.OrderTypeMarket,
		Status:            "FLL",
		StatusDescription: "Filled",
		FilledPrice:       price,
		Symbol:            symbol,
		Side:              side,
		Intent:            intent,
		ExecQuantity:      qty,
		OrderedQuantity:   qty,
	}
}

func ack(id, symbol string, side domain.Side, intent domain.Intent, qty int) *domain.Order {
	return &domain.Order{
		ID:                id,
		Type:              domain.OrderTypeMarket,
		Status:            "ACK",
		StatusDescription: "Received",
		Symbol:            symbol,
		Side:              side,
		Intent:            intent,
		OrderedQuantity:   qty,
	}
}

func stop(id, symbol string, side domain.Side, qty int, stopPrice float64) *domain.Order {
	return &domain.Order{
		ID:                id,
		Type:              domain.OrderTypeStopMarket,
		Status:            "ACK",
		StatusDescription: "Received",
		StopPrice:         stopPrice,
		Symbol:            symbol,
		Side:              side,
		Intent:            domain.IntentClose,
		OrderedQuantity:   qty,
	}
}

func newLedger() *usecase.Ledger {
	return usecase.NewLedger(zap.NewNop())
}

func TestLedgerNewSymbolStartsOneTrade(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))

	trades := ledger.Trades()
	require.Len(t, trades["SPY"], 1)
	assert.Len(t, trades["SPY"][0].Orders(), 1)
}

func TestLedgerLifecycleUpdatesLandInSameTrade(t *testing.T) {
	ledger := newLedger()
	// ack then fill for the same order id: two distinct events, one trade
	require.NoError(t, ledger.Append(ack("1", "SPY", domain.SideBuy, domain.IntentOpen, 100)))
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))

	trades := ledger.Trades()
	require.Len(t, trades["SPY"], 1)
	assert.Len(t, trades["SPY"][0].Orders(), 2)
	assert.Equal(t, 100, trades["SPY"][0].OpenedShares())
}

func TestLedgerDropsDuplicateDelivery(t *testing.T) {
	ledger := newLedger()
	event := fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)
	require.NoError(t, ledger.Append(event))
	require.NoError(t, ledger.Append(event))

	trades := ledger.Trades()
	require.Len(t, trades["SPY"], 1)
	assert.Len(t, trades["SPY"][0].Orders(), 1)
	assert.Len(t, ledger.Orders(), 1)
}

func TestLedgerGetPositionsOpenOnly(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))
	require.NoError(t, ledger.Append(fill("2", "QQQ", domain.SideBuy, domain.IntentOpen, 50, 300)))
	require.NoError(t, ledger.Append(fill("3", "QQQ", domain.SideSell, domain.IntentClose, 50, 305)))

	positions := ledger.GetPositions()
	require.Len(t, positions, 1)
	assert.Contains(t, positions, "SPY")
	assert.Equal(t, 100, positions["SPY"].OpenedShares())
}

func TestLedgerGetStopOrder(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))
	require.NoError(t, ledger.Append(stop("2", "SPY", domain.SideSell, 100, 48)))
	require.NoError(t, ledger.Append(stop("3", "SPY", domain.SideSell, 50, 49)))

	stopOrder, err := ledger.GetStopOrder("SPY")
	require.NoError(t, err)
	assert.Equal(t, "3", stopOrder.ID)

	_, err = ledger.GetStopOrder("MSFT")
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestLedgerGetStopOrderNoStopYet(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))

	_, err := ledger.GetStopOrder("SPY")
	assert.ErrorIs(t, err, domain.ErrNoStopOrder)
}

func TestLedgerPostCloseOrderStartsNewTrade(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))
	require.NoError(t, ledger.Append(fill("2", "SPY", domain.SideSell, domain.IntentClose, 100, 52)))
	require.NoError(t, ledger.Append(fill("3", "SPY", domain.SideBuy, domain.IntentOpen, 30, 53)))

	trades := ledger.Trades()
	require.Len(t, trades["SPY"], 2)
	assert.Equal(t, 30, trades["SPY"][1].OpenedShares())
}

func TestLedgerLateConditionalChildJoinsClosedTrade(t *testing.T) {
	ledger := newLedger()
	stopOrder := stop("2", "SPY", domain.SideSell, 100, 48)
	stopOrder.ConditionalOrderID = "1"
	require.NoError(t, ledger.Append(stopOrder))
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))

	trades := ledger.Trades()
	require.Len(t, trades["SPY"], 1, "conditional child joins the existing trade")
	assert.Equal(t, 100, trades["SPY"][0].OpenedShares())
}

func TestLedgerHaltsSymbolOnImbalance(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))

	err := ledger.Append(fill("2", "SPY", domain.SideSell, domain.IntentClose, 150, 52))
	require.ErrorIs(t, err, domain.ErrShareImbalance)

	// Further appends for the symbol fail, other symbols keep processing.
	err = ledger.Append(fill("3", "SPY", domain.SideBuy, domain.IntentOpen, 10, 51))
	assert.ErrorIs(t, err, domain.ErrSymbolHalted)
	assert.NoError(t, ledger.Append(fill("4", "QQQ", domain.SideBuy, domain.IntentOpen, 10, 300)))

	halted := ledger.Halted()
	require.Len(t, halted, 1)
	assert.Contains(t, halted, "SPY")
}

func TestLedgerStopAmendmentIsNotADuplicate(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))
	require.NoError(t, ledger.Append(stop("2", "SPY", domain.SideSell, 100, 48)))

	// Amended stop: same order id and status, new size and stop price.
	require.NoError(t, ledger.Append(stop("2", "SPY", domain.SideSell, 60, 49)))

	stopOrder, err := ledger.GetStopOrder("SPY")
	require.NoError(t, err)
	assert.Equal(t, 49.0, stopOrder.StopPrice)
	assert.Equal(t, 60, stopOrder.OrderedQuantity)

	// A redelivery of the amended event is still dropped.
	require.NoError(t, ledger.Append(stop("2", "SPY", domain.SideSell, 60, 49)))
	assert.Len(t, ledger.Orders(), 3)
}

func TestLedgerProjectionsAreDetachedSnapshots(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))

	positions := ledger.GetPositions()
	last, ok := ledger.LastTrade("SPY")
	require.True(t, ok)

	require.NoError(t, ledger.Append(fill("2", "SPY", domain.SideSell, domain.IntentClose, 40, 52)))

	// Earlier projections keep the state they were taken at.
	assert.Equal(t, 100, positions["SPY"].OpenedShares())
	assert.Equal(t, 100, last.OpenedShares())
	assert.Equal(t, 60, ledger.GetPositions()["SPY"].OpenedShares())
}

func TestLedgerConcurrentReadsDuringAppends(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(stop("stop", "SPY", domain.SideSell, 100, 48)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = ledger.Append(fill(strconv.Itoa(i), "SPY", domain.SideBuy, domain.IntentOpen, 1, 50))
		}
	}()

	for i := 0; i < 500; i++ {
		for _, trade := range ledger.GetPositions() {
			_ = trade.OpenedShares()
			_, _ = trade.RiskAmount()
			_ = trade.Orders()
		}
		if trade, ok := ledger.LastTrade("SPY"); ok {
			_ = trade.String()
		}
		_ = ledger.RealizedPnL()
		_, _ = ledger.GetStopOrder("SPY")
	}
	<-done

	last, ok := ledger.LastTrade("SPY")
	require.True(t, ok)
	assert.Equal(t, 500, last.OpenedShares())
}

func TestLedgerRealizedPnL(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Append(fill("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50)))
	require.NoError(t, ledger.Append(stop("2", "SPY", domain.SideSell, 100, 48)))
	require.NoError(t, ledger.Append(fill("3", "SPY", domain.SideSell, domain.IntentClose, 100, 54)))

	// No commission: realized = 5400 - 5000 = 400.
	assert.Equal(t, 400.0, ledger.RealizedPnL())
}
