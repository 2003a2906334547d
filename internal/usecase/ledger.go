package usecase

import (
	"fmt"
	"sync"

	"github.com/ethan1027/quick-trades/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func round2(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}

// eventKey is the signature of one delivery of an order event. The stream is
// at-least-once; a redelivery carries identical fields, while a genuine
// lifecycle update for the same order id changes at least one of them. A stop
// amendment keeps the status and executed quantity but moves the stop price
// or the ordered size, so both take part in the key.
type eventKey struct {
	status          string
	execQuantity    int
	orderedQuantity int
	stopPrice       float64
}

// Ledger is the session-wide trade history: per symbol, the chronological
// list of trades, plus a flat log of every accepted order event. Append is
// the single mutation entrypoint; reads never block behind ingestion for
// longer than one append.
type Ledger struct {
	mu       sync.RWMutex
	trades   map[string][]*domain.Trade
	orders   []*domain.Order
	lastSeen map[string]eventKey
	halted   map[string]error
	logger   *zap.Logger
}

func NewLedger(logger *zap.Logger) *Ledger {
	return &Ledger{
		trades:   make(map[string][]*domain.Trade),
		lastSeen: make(map[string]eventKey),
		halted:   make(map[string]error),
		logger:   logger,
	}
}

// Append classifies the order against the symbol's latest trade: it continues
// that trade while it is open (or the order is the conditional child of its
// latest stop), otherwise it starts a new trade. Duplicate deliveries of the
// same event are dropped. A share-imbalance error halts the symbol; appends
// for other symbols are unaffected.
func (l *Ledger) Append(o *domain.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cause, ok := l.halted[o.Symbol]; ok {
		return fmt.Errorf("%w %s: %v", domain.ErrSymbolHalted, o.Symbol, cause)
	}

	key := eventKey{
		status:          o.Status,
		execQuantity:    o.ExecQuantity,
		orderedQuantity: o.OrderedQuantity,
		stopPrice:       o.StopPrice,
	}
	if prev, ok := l.lastSeen[o.ID]; ok && prev == key {
		l.logger.Debug("dropping duplicate order event",
			zap.String("order_id", o.ID), zap.String("status", o.Status))
		return nil
	}

	trades := l.trades[o.Symbol]
	if n := len(trades); n > 0 {
		accepted, err := trades[n-1].Append(o)
		if err != nil {
			l.halted[o.Symbol] = err
			return fmt.Errorf("append order %s: %w", o.ID, err)
		}
		if !accepted {
			l.trades[o.Symbol] = append(trades, domain.NewTrade(o))
		}
	} else {
		l.trades[o.Symbol] = append(trades, domain.NewTrade(o))
	}

	l.lastSeen[o.ID] = key
	l.orders = append(l.orders, o)
	return nil
}

// GetPositions returns, per symbol, its latest trade if and only if that
// trade still holds shares. Trades are snapshots: readers never see an order
// list that a concurrent Append is growing.
func (l *Ledger) GetPositions() map[string]*domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[string]*domain.Trade)
	for symbol, trades := range l.trades {
		if n := len(trades); n > 0 && trades[n-1].IsOpen() {
			positions[symbol] = trades[n-1].Snapshot()
		}
	}
	return positions
}

// GetStopOrder returns the latest stop order of the symbol's most recent
// trade, used to amend or cancel the protective stop on a partial exit.
func (l *Ledger) GetStopOrder(symbol string) (*domain.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	trades := l.trades[symbol]
	if len(trades) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	return trades[len(trades)-1].LatestStopOrder()
}

// LastTrade returns a snapshot of the symbol's most recent trade, open or
// closed.
func (l *Ledger) LastTrade(symbol string) (*domain.Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	trades := l.trades[symbol]
	if len(trades) == 0 {
		return nil, false
	}
	return trades[len(trades)-1].Snapshot(), true
}

// Trades returns the full per-symbol trade history as snapshots.
func (l *Ledger) Trades() map[string][]*domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string][]*domain.Trade, len(l.trades))
	for symbol, trades := range l.trades {
		cp := make([]*domain.Trade, len(trades))
		for i, trade := range trades {
			cp[i] = trade.Snapshot()
		}
		out[symbol] = cp
	}
	return out
}

// Orders returns a copy of the flat order log.
func (l *Ledger) Orders() []*domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// RealizedPnL sums the realized amount over the session's closed trades.
// Open trades and trades without a stop order contribute nothing.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0.0
	for _, trades := range l.trades {
		for _, t := range trades {
			if !t.Closed() {
				continue
			}
			realized, err := t.RealizedAmount()
			if err != nil {
				continue
			}
			total += realized
		}
	}
	return round2(total)
}

// Halted returns the symbols whose ledgers hit a consistency error.
func (l *Ledger) Halted() map[string]error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]error, len(l.halted))
	for symbol, err := range l.halted {
		out[symbol] = err
	}
	return out
}
