package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Trade is one round-trip position in one symbol, built from the ordered
// sequence of order events that belong to it. A trade owns its orders; they
// are never shared with another trade.
//
// A trade is open while its opened share count is above zero. Once the count
// returns to zero the trade is closed: the only order it still accepts is a
// late fill of the conditional (OSO) child of its latest stop, which covers a
// stop fill arriving after the position already reads flat.
type Trade struct {
	symbol string
	orders []*Order
}

func NewTrade(o *Order) *Trade {
	return &Trade{symbol: o.Symbol, orders: []*Order{o}}
}

// Snapshot returns a copy of the trade whose order list is detached from
// further appends. Orders themselves are immutable and shared.
func (t *Trade) Snapshot() *Trade {
	orders := make([]*Order, len(t.orders))
	copy(orders, t.orders)
	return &Trade{symbol: t.symbol, orders: orders}
}

func (t *Trade) Symbol() string {
	return t.symbol
}

// Orders returns a copy of the trade's order sequence.
func (t *Trade) Orders() []*Order {
	out := make([]*Order, len(t.orders))
	copy(out, t.orders)
	return out
}

// Append records the next order event for this trade. It returns false when
// the trade is closed to the order, telling the caller to start a new trade
// instead. An ErrShareImbalance means the event would drive the share count
// negative; the trade must not be mutated further.
func (t *Trade) Append(o *Order) (bool, error) {
	if o.Symbol != t.symbol {
		return false, nil
	}
	if !t.acceptsContinuation(o) {
		return false, nil
	}
	if !o.IsOpen() && t.OpenedShares()-o.ExecQuantity < 0 {
		return false, fmt.Errorf("%w: order %s closes %d of %d", ErrShareImbalance, o.ID, o.ExecQuantity, t.OpenedShares())
	}
	t.orders = append(t.orders, o)
	return true, nil
}

// IsOpen reports whether the trade still holds shares.
func (t *Trade) IsOpen() bool {
	return t.OpenedShares() > 0
}

// Closed reports whether the trade filled and its share count returned to
// zero. A trade whose orders never filled is neither open nor closed.
func (t *Trade) Closed() bool {
	return t.hasFill() && t.OpenedShares() == 0
}

func (t *Trade) acceptsContinuation(o *Order) bool {
	if t.OpenedShares() > 0 {
		return true
	}
	// A trade with no fills yet is still building: its share count never
	// rose above zero, so it has not closed. Lifecycle updates for pending
	// orders land here.
	if !t.hasFill() {
		return true
	}
	stop, err := t.LatestStopOrder()
	if err != nil {
		return false
	}
	return stop.ConditionalOrderID != "" && stop.ConditionalOrderID == o.ID
}

func (t *Trade) hasFill() bool {
	for _, o := range t.orders {
		if o.IsFilled() {
			return true
		}
	}
	return false
}

// OpenedShares is the running share total: open-intent events add executed
// quantity, close-intent events subtract it.
func (t *Trade) OpenedShares() int {
	shares := 0
	for _, o := range t.orders {
		if o.IsOpen() {
			shares += o.ExecQuantity
		} else {
			shares -= o.ExecQuantity
		}
	}
	return shares
}

func (t *Trade) EntryAmount() float64 {
	amount := 0.0
	for _, o := range t.orders {
		if o.IsOpen() && o.IsFilled() {
			amount += o.FilledPrice * float64(o.ExecQuantity)
		}
	}
	return amount
}

func (t *Trade) EntryQuantity() int {
	qty := 0
	for _, o := range t.orders {
		if o.IsOpen() && o.IsFilled() {
			qty += o.ExecQuantity
		}
	}
	return qty
}

func (t *Trade) ExitAmount() float64 {
	amount := 0.0
	for _, o := range t.orders {
		if !o.IsOpen() && o.IsFilled() {
			amount += o.FilledPrice * float64(o.ExecQuantity)
		}
	}
	return amount
}

func (t *Trade) ExitQuantity() int {
	qty := 0
	for _, o := range t.orders {
		if !o.IsOpen() && o.IsFilled() {
			qty += o.ExecQuantity
		}
	}
	return qty
}

// InitialStopOrder is the first StopMarket order of the sequence. Its side
// and stop price fix the trade's direction and risk.
func (t *Trade) InitialStopOrder() (*Order, error) {
	for _, o := range t.orders {
		if o.IsStop() {
			return o, nil
		}
	}
	return nil, ErrNoStopOrder
}

// LatestStopOrder is the most recent StopMarket order. The stop may be
// amended or replaced several times as shares scale out.
func (t *Trade) LatestStopOrder() (*Order, error) {
	for i := len(t.orders) - 1; i >= 0; i-- {
		if t.orders[i].IsStop() {
			return t.orders[i], nil
		}
	}
	return nil, ErrNoStopOrder
}

// SideFactor is +1 for a long trade (initial stop sells) and -1 for a short.
// Multiplying signed metrics through it once makes them positive-is-favorable.
func (t *Trade) SideFactor() (int, error) {
	stop, err := t.InitialStopOrder()
	if err != nil {
		return 0, err
	}
	if stop.Side == SideSell {
		return 1, nil
	}
	return -1, nil
}

// CommissionFee is the summed fee over filled orders. The sign flips to
// negative when the initial stop sells, i.e. the trade is long.
func (t *Trade) CommissionFee() (float64, error) {
	stop, err := t.InitialStopOrder()
	if err != nil {
		return 0, err
	}
	fee := 0.0
	for _, o := range t.orders {
		if o.IsFilled() {
			fee += o.CommissionFee
		}
	}
	fee = round2(fee)
	if stop.Side == SideSell {
		return -fee, nil
	}
	return fee, nil
}

// RiskAmount is the dollar distance between the entry and the initial stop,
// positive for a correctly placed stop.
func (t *Trade) RiskAmount() (float64, error) {
	stop, err := t.InitialStopOrder()
	if err != nil {
		return 0, err
	}
	factor, err := t.SideFactor()
	if err != nil {
		return 0, err
	}
	return round2(t.EntryAmount()-stop.StopPrice*float64(t.EntryQuantity())) * float64(factor), nil
}

// RealizedAmount is the closed profit or loss net of commission.
func (t *Trade) RealizedAmount() (float64, error) {
	fee, err := t.CommissionFee()
	if err != nil {
		return 0, err
	}
	factor, err := t.SideFactor()
	if err != nil {
		return 0, err
	}
	return round2(t.ExitAmount()-t.EntryAmount()-fee) * float64(factor), nil
}

// RealizedReward is the trade's outcome in units of initial risk.
func (t *Trade) RealizedReward() (float64, error) {
	realized, err := t.RealizedAmount()
	if err != nil {
		return 0, err
	}
	risk, err := t.RiskAmount()
	if err != nil {
		return 0, err
	}
	if risk == 0 {
		return 0, ErrZeroRisk
	}
	return round2(realized / risk), nil
}

// resolveQuote prices the open position off the quote side that would fill an
// exit: the bid for a long entry, the ask for a short.
func (t *Trade) resolveQuote(q *Quote) (float64, error) {
	for _, o := range t.orders {
		if o.IsOpen() && o.IsFilled() {
			if o.Side == SideBuy {
				return q.Bid()
			}
			return q.Ask()
		}
	}
	return 0, ErrNoEntryFill
}

func (t *Trade) averageEntryPrice() (float64, error) {
	qty := t.EntryQuantity()
	if qty == 0 {
		return 0, ErrNoEntryFill
	}
	return t.EntryAmount() / float64(qty), nil
}

// UnrealizedReward is the open position's profit in units of initial risk,
// priced against a live quote.
func (t *Trade) UnrealizedReward(q *Quote) (float64, error) {
	price, err := t.resolveQuote(q)
	if err != nil {
		return 0, err
	}
	avgEntry, err := t.averageEntryPrice()
	if err != nil {
		return 0, err
	}
	factor, err := t.SideFactor()
	if err != nil {
		return 0, err
	}
	risk, err := t.RiskAmount()
	if err != nil {
		return 0, err
	}
	if risk == 0 {
		return 0, ErrZeroRisk
	}
	profitLoss := (price - avgEntry) * float64(t.OpenedShares()) * float64(factor)
	return profitLoss / risk, nil
}

// RewardPosition is the per-share distance to the quote over the per-share
// distance to the initial stop.
func (t *Trade) RewardPosition(q *Quote) (float64, error) {
	price, err := t.resolveQuote(q)
	if err != nil {
		return 0, err
	}
	avgEntry, err := t.averageEntryPrice()
	if err != nil {
		return 0, err
	}
	stop, err := t.InitialStopOrder()
	if err != nil {
		return 0, err
	}
	denom := avgEntry - stop.StopPrice
	if denom == 0 {
		return 0, ErrZeroRisk
	}
	return (price - avgEntry) / denom, nil
}

func (t *Trade) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", t.symbol)
	for _, o := range t.orders {
		fmt.Fprintf(&b, "  %s\n", o)
	}
	if t.Closed() {
		reward, rewardErr := t.RealizedReward()
		risk, riskErr := t.RiskAmount()
		realized, realizedErr := t.RealizedAmount()
		if rewardErr == nil && riskErr == nil && realizedErr == nil {
			fmt.Fprintf(&b, "  %gR, Risk: %g, Reward: %g ($)\n", reward, risk, realized)
		}
	}
	return b.String()
}

// round2 rounds at cent granularity, half away from zero over the decimal
// representation so that exact ties like 2.005 land on 2.01. Every monetary
// aggregate is rounded at the point of computation, not once at the end.
func round2(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}
