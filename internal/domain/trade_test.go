package domain_test

import (
	"testing"

	"github.com/ethan1027/quick-trades/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillOrder(id, symbol string, side domain.Side, intent domain.Intent, qty int, price, fee float64) *domain.Order {
	return &domain.Order{
		ID:                id,
		Type:              domain.OrderTypeMarket,
		Status:            "FLL",
		StatusDescription: "Filled",
		FilledPrice:       price,
		CommissionFee:     fee,
		Symbol:            symbol,
		Side:              side,
		Intent:            intent,
		ExecQuantity:      qty,
		OrderedQuantity:   qty,
	}
}

func stopOrder(id, symbol string, side domain.Side, qty int, stopPrice float64) *domain.Order {
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

// Long round trip from the reference: 100 shares in at $50, stop at $48, all
// out at $54, $1 total commission.
func longRoundTrip(t *testing.T) *domain.Trade {
	t.Helper()
	trade := domain.NewTrade(fillOrder("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50, 0.5))

	accepted, err := trade.Append(stopOrder("2", "SPY", domain.SideSell, 100, 48))
	require.NoError(t, err)
	require.True(t, accepted)

	accepted, err = trade.Append(fillOrder("3", "SPY", domain.SideSell, domain.IntentClose, 100, 54, 0.5))
	require.NoError(t, err)
	require.True(t, accepted)
	return trade
}

func TestTradeLongMetrics(t *testing.T) {
	trade := longRoundTrip(t)

	assert.Equal(t, 5000.0, trade.EntryAmount())
	assert.Equal(t, 100, trade.EntryQuantity())
	assert.Equal(t, 5400.0, trade.ExitAmount())
	assert.Equal(t, 100, trade.ExitQuantity())
	assert.Equal(t, 0, trade.OpenedShares())
	assert.False(t, trade.IsOpen())

	factor, err := trade.SideFactor()
	require.NoError(t, err)
	assert.Equal(t, 1, factor)

	fee, err := trade.CommissionFee()
	require.NoError(t, err)
	assert.Equal(t, -1.0, fee)

	risk, err := trade.RiskAmount()
	require.NoError(t, err)
	assert.Equal(t, 200.0, risk)

	realized, err := trade.RealizedAmount()
	require.NoError(t, err)
	assert.Equal(t, 401.0, realized)

	reward, err := trade.RealizedReward()
	require.NoError(t, err)
	assert.Equal(t, 2.01, reward)
}

func TestTradeShortMetrics(t *testing.T) {
	trade := domain.NewTrade(fillOrder("1", "TSLA", domain.SideSellShort, domain.IntentOpen, 100, 50, 0.5))

	accepted, err := trade.Append(stopOrder("2", "TSLA", domain.SideBuy, 100, 52))
	require.NoError(t, err)
	require.True(t, accepted)

	accepted, err = trade.Append(fillOrder("3", "TSLA", domain.SideBuyToCover, domain.IntentClose, 100, 46, 0.5))
	require.NoError(t, err)
	require.True(t, accepted)

	factor, err := trade.SideFactor()
	require.NoError(t, err)
	assert.Equal(t, -1, factor)

	fee, err := trade.CommissionFee()
	require.NoError(t, err)
	assert.Equal(t, 1.0, fee)

	risk, err := trade.RiskAmount()
	require.NoError(t, err)
	assert.Equal(t, 200.0, risk)

	realized, err := trade.RealizedAmount()
	require.NoError(t, err)
	assert.Equal(t, 401.0, realized)
}

// Same magnitudes as the long example but with a Buy-side stop mirror the
// sign of risk and realized amounts.
func TestTradeShortMirrorsSign(t *testing.T) {
	trade := domain.NewTrade(fillOrder("1", "SPY", domain.SideSellShort, domain.IntentOpen, 100, 50, 0.5))

	_, err := trade.Append(stopOrder("2", "SPY", domain.SideBuy, 100, 48))
	require.NoError(t, err)
	_, err = trade.Append(fillOrder("3", "SPY", domain.SideBuyToCover, domain.IntentClose, 100, 54, 0.5))
	require.NoError(t, err)

	risk, err := trade.RiskAmount()
	require.NoError(t, err)
	assert.Equal(t, -200.0, risk)

	realized, err := trade.RealizedAmount()
	require.NoError(t, err)
	assert.Equal(t, -399.0, realized)
}

func TestTradeRejectsOversizedExit(t *testing.T) {
	trade := domain.NewTrade(fillOrder("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50, 0))

	before := trade.OpenedShares()
	accepted, err := trade.Append(fillOrder("2", "SPY", domain.SideSell, domain.IntentClose, 150, 51, 0))
	require.ErrorIs(t, err, domain.ErrShareImbalance)
	assert.False(t, accepted)
	assert.Equal(t, before, trade.OpenedShares())
}

func TestTradeClosedRejectsOrdinaryAppend(t *testing.T) {
	trade := longRoundTrip(t)

	accepted, err := trade.Append(fillOrder("9", "SPY", domain.SideBuy, domain.IntentOpen, 50, 55, 0.3))
	require.NoError(t, err)
	assert.False(t, accepted, "closed trade must not accept a new entry")
}

// An OSO stop event can reach the stream before its parent fill. The trade
// then reads flat, but the order linked as the stop's conditional child still
// belongs to it.
func TestTradeClosedAcceptsConditionalChild(t *testing.T) {
	stop := stopOrder("2", "SPY", domain.SideSell, 100, 48)
	stop.ConditionalOrderID = "1"
	trade := domain.NewTrade(stop)
	require.False(t, trade.IsOpen())

	entry := fillOrder("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50, 0.5)
	accepted, err := trade.Append(entry)
	require.NoError(t, err)
	assert.True(t, accepted, "conditional child of the latest stop joins the closed trade")
	assert.Equal(t, 100, trade.OpenedShares())
}

func TestTradeRejectsOtherSymbol(t *testing.T) {
	trade := domain.NewTrade(fillOrder("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50, 0))
	accepted, err := trade.Append(fillOrder("2", "QQQ", domain.SideBuy, domain.IntentOpen, 100, 50, 0))
	require.NoError(t, err)
	assert.False(t, accepted)
}

// Risk depends only on aggregate entry sums, so the order of entry fills
// after the initial stop does not change it.
func TestTradeRiskInvariantUnderEntryReordering(t *testing.T) {
	build := func(first, second *domain.Order) float64 {
		trade := domain.NewTrade(fillOrder("1", "SPY", domain.SideBuy, domain.IntentOpen, 40, 50, 0))
		_, err := trade.Append(stopOrder("2", "SPY", domain.SideSell, 100, 48))
		require.NoError(t, err)
		_, err = trade.Append(first)
		require.NoError(t, err)
		_, err = trade.Append(second)
		require.NoError(t, err)
		risk, err := trade.RiskAmount()
		require.NoError(t, err)
		return risk
	}

	a := fillOrder("3", "SPY", domain.SideBuy, domain.IntentOpen, 30, 50.5, 0)
	b := fillOrder("4", "SPY", domain.SideBuy, domain.IntentOpen, 30, 49.5, 0)
	assert.Equal(t, build(a, b), build(b, a))
}

func TestTradeLatestStopTracksAmendments(t *testing.T) {
	trade := domain.NewTrade(fillOrder("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50, 0))
	_, err := trade.Append(stopOrder("2", "SPY", domain.SideSell, 100, 48))
	require.NoError(t, err)
	_, err = trade.Append(fillOrder("3", "SPY", domain.SideSell, domain.IntentClose, 50, 53, 0))
	require.NoError(t, err)
	_, err = trade.Append(stopOrder("4", "SPY", domain.SideSell, 50, 49.5))
	require.NoError(t, err)

	initial, err := trade.InitialStopOrder()
	require.NoError(t, err)
	assert.Equal(t, "2", initial.ID)

	latest, err := trade.LatestStopOrder()
	require.NoError(t, err)
	assert.Equal(t, "4", latest.ID)
}

func TestTradeMetricsRequireStopOrder(t *testing.T) {
	trade := domain.NewTrade(fillOrder("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50, 0))

	_, err := trade.RiskAmount()
	assert.ErrorIs(t, err, domain.ErrNoStopOrder)
	_, err = trade.RealizedAmount()
	assert.ErrorIs(t, err, domain.ErrNoStopOrder)
	_, err = trade.SideFactor()
	assert.ErrorIs(t, err, domain.ErrNoStopOrder)
}

func TestTradeUnrealizedReward(t *testing.T) {
	trade := domain.NewTrade(fillOrder("1", "SPY", domain.SideBuy, domain.IntentOpen, 100, 50, 0))
	_, err := trade.Append(stopOrder("2", "SPY", domain.SideSell, 100, 48))
	require.NoError(t, err)

	bid, ask := 52.0, 52.05
	quote := domain.NewQuote(domain.QuoteUpdate{Bid: &bid, Ask: &ask})

	// Long entries price off the bid: (52 - 50) * 100 / 200 = 1R.
	unrealized, err := trade.UnrealizedReward(quote)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, unrealized, 1e-9)

	reward, err := trade.RewardPosition(quote)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, reward, 1e-9)
}

func TestTradeUnrealizedRewardShort(t *testing.T) {
	trade := domain.NewTrade(fillOrder("1", "TSLA", domain.SideSellShort, domain.IntentOpen, 100, 50, 0))
	_, err := trade.Append(stopOrder("2", "TSLA", domain.SideBuy, 100, 52))
	require.NoError(t, err)

	bid, ask := 47.95, 48.0
	quote := domain.NewQuote(domain.QuoteUpdate{Bid: &bid, Ask: &ask})

	// Short entries price off the ask: (48 - 50) * 100 * -1 / 200 = 1R.
	unrealized, err := trade.UnrealizedReward(quote)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, unrealized, 1e-9)

	reward, err := trade.RewardPosition(quote)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, reward, 1e-9)
}

func TestTradeUnrealizedRequiresEntryFill(t *testing.T) {
	trade := domain.NewTrade(stopOrder("1", "SPY", domain.SideSell, 100, 48))
	bid := 50.0
	quote := domain.NewQuote(domain.QuoteUpdate{Bid: &bid, Last: &bid})

	_, err := trade.UnrealizedReward(quote)
	assert.ErrorIs(t, err, domain.ErrNoEntryFill)
}
