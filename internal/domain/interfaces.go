package domain

import (
	"context"
	"time"
)

// EntryAction is the broker trade action that opens a position.
type EntryAction string

// ExitAction is the broker trade action that closes a position.
type ExitAction string

const (
	EntryBuy       EntryAction = "BUY"
	EntrySellShort EntryAction = "SELLSHORT"

	ExitSell       ExitAction = "SELL"
	ExitBuyToCover ExitAction = "BUYTOCOVER"
)

// Broker places and amends orders on the brokerage account.
type Broker interface {
	// PlaceBracketOrder submits a market entry with a conditional StopMarket
	// child on the opposite side.
	PlaceBracketOrder(ctx context.Context, symbol string, action EntryAction, quantity int, stopPrice float64) error
	PlaceExitOrder(ctx context.Context, symbol string, action ExitAction, quantity int) error
	AmendStopOrder(ctx context.Context, orderID string, quantity int, stopPrice float64) error
	CancelOrder(ctx context.Context, orderID string) error
}

// TradeSummary is the journaled projection of one trade's state.
type TradeSummary struct {
	FirstOrderID   string
	Symbol         string
	Orders         int
	OpenedShares   int
	RiskAmount     float64
	RealizedAmount float64
	RealizedReward float64
	Closed         bool
	UpdatedAt      time.Time
}

// SessionJournal records the session's accepted order events and per-trade
// summaries. Persistence is scoped to a single trading session.
type SessionJournal interface {
	RecordOrder(ctx context.Context, o *Order) error
	RecordTrade(ctx context.Context, s *TradeSummary) error
	ListOrders(ctx context.Context) ([]*Order, error)
	ListTrades(ctx context.Context, limit int) ([]*TradeSummary, error)
	Close() error
}
