package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/ethan1027/quick-trades/internal/domain"
	"go.uber.org/zap"
)

// QuoteTick is one partial quote update for a symbol as produced by the
// stream reader.
type QuoteTick struct {
	Symbol string
	Update domain.QuoteUpdate
}

// Ingestor funnels both stream feeds through one sequential consumer. The
// single loop preserves per-stream event order, so the order-sensitive trade
// state machine never sees two fills reordered.
type Ingestor struct {
	ledger  *Ledger
	quotes  *QuoteBook
	journal domain.SessionJournal
	logger  *zap.Logger

	orderCh chan *domain.Order
	quoteCh chan QuoteTick
}

// NewIngestor wires the two stores behind the ingest loop. The journal may be
// nil when the session runs without persistence.
func NewIngestor(ledger *Ledger, quotes *QuoteBook, journal domain.SessionJournal, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		ledger:  ledger,
		quotes:  quotes,
		journal: journal,
		logger:  logger,
		orderCh: make(chan *domain.Order, 64),
		quoteCh: make(chan QuoteTick, 256),
	}
}

// OrderCh is the producer side of the order feed.
func (in *Ingestor) OrderCh() chan<- *domain.Order {
	return in.orderCh
}

// QuoteCh is the producer side of the quote feed.
func (in *Ingestor) QuoteCh() chan<- QuoteTick {
	return in.quoteCh
}

// Run consumes both feeds until the context is cancelled.
func (in *Ingestor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o := <-in.orderCh:
			in.applyOrder(ctx, o)
		case tick := <-in.quoteCh:
			in.quotes.Update(tick.Symbol, tick.Update)
		}
	}
}

func (in *Ingestor) applyOrder(ctx context.Context, o *domain.Order) {
	in.logger.Info("order event", zap.String("order", o.String()))

	if err := in.ledger.Append(o); err != nil {
		if errors.Is(err, domain.ErrSymbolHalted) || errors.Is(err, domain.ErrShareImbalance) {
			in.logger.Error("ledger halted for symbol",
				zap.String("symbol", o.Symbol), zap.Error(err))
		} else {
			in.logger.Warn("order event rejected",
				zap.String("symbol", o.Symbol), zap.Error(err))
		}
		return
	}

	if in.journal == nil {
		return
	}
	if err := in.journal.RecordOrder(ctx, o); err != nil {
		in.logger.Warn("journal order write failed", zap.Error(err))
	}
	if trade, ok := in.ledger.LastTrade(o.Symbol); ok {
		if err := in.journal.RecordTrade(ctx, Summarize(trade)); err != nil {
			in.logger.Warn("journal trade write failed", zap.Error(err))
		}
	}
}

// Summarize projects a trade into its journaled form. Metrics that need a
// stop order report zero until one arrives; realized figures are only
// meaningful once the trade has closed.
func Summarize(t *domain.Trade) *domain.TradeSummary {
	orders := t.Orders()
	s := &domain.TradeSummary{
		Symbol:       t.Symbol(),
		Orders:       len(orders),
		OpenedShares: t.OpenedShares(),
		Closed:       t.Closed(),
		UpdatedAt:    time.Now().UTC(),
	}
	if len(orders) > 0 {
		s.FirstOrderID = orders[0].ID
	}
	if risk, err := t.RiskAmount(); err == nil {
		s.RiskAmount = risk
	}
	if s.Closed {
		if realized, err := t.RealizedAmount(); err == nil {
			s.RealizedAmount = realized
		}
		if reward, err := t.RealizedReward(); err == nil {
			s.RealizedReward = reward
		}
	}
	return s
}
