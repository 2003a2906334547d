package web

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sort"

	"github.com/ethan1027/quick-trades/internal/domain"
	"github.com/ethan1027/quick-trades/internal/usecase"
	"go.uber.org/zap"
)

type positionView struct {
	Symbol           string   `json:"symbol"`
	OpenedShares     int      `json:"opened_shares"`
	EntryQuantity    int      `json:"entry_quantity"`
	SideFactor       int      `json:"side_factor,omitempty"`
	RiskAmount       float64  `json:"risk_amount,omitempty"`
	UnrealizedReward *float64 `json:"unrealized_reward,omitempty"`
	RewardPosition   *float64 `json:"reward_position,omitempty"`
}

type orderView struct {
	OrderID           string  `json:"order_id"`
	Symbol            string  `json:"symbol"`
	Type              string  `json:"type"`
	StatusDescription string  `json:"status_description"`
	StopPrice         float64 `json:"stop_price,omitempty"`
	Quantity          int     `json:"quantity"`
	ConditionalID     string  `json:"conditional_order_id,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	halted := make([]string, 0)
	for symbol := range s.ledger.Halted() {
		halted = append(halted, symbol)
	}
	sort.Strings(halted)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"open_positions": len(s.ledger.GetPositions()),
		"realized_pnl":   s.ledger.RealizedPnL(),
		"halted_symbols": halted,
	})
}

// positionViews prices every open trade against the quote book. Metrics that
// cannot be computed yet (no stop order, no quote) are simply omitted.
func (s *Server) positionViews() []positionView {
	positions := s.ledger.GetPositions()
	views := make([]positionView, 0, len(positions))
	for symbol, trade := range positions {
		view := positionView{
			Symbol:        symbol,
			OpenedShares:  trade.OpenedShares(),
			EntryQuantity: trade.EntryQuantity(),
		}
		if factor, err := trade.SideFactor(); err == nil {
			view.SideFactor = factor
		}
		if risk, err := trade.RiskAmount(); err == nil {
			view.RiskAmount = risk
		}
		if quote, ok := s.quotes.Get(symbol); ok {
			if unrealized, err := trade.UnrealizedReward(&quote); err == nil {
				view.UnrealizedReward = &unrealized
			}
			if reward, err := trade.RewardPosition(&quote); err == nil {
				view.RewardPosition = &reward
			}
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Symbol < views[j].Symbol })
	return views
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.positionViews())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	history := s.ledger.Trades()
	summaries := make([]*domain.TradeSummary, 0)
	for _, trades := range history {
		for _, trade := range trades {
			summaries = append(summaries, usecase.Summarize(trade))
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Symbol != summaries[j].Symbol {
			return summaries[i].Symbol < summaries[j].Symbol
		}
		return summaries[i].FirstOrderID < summaries[j].FirstOrderID
	})

	s.writeJSON(w, http.StatusOK, map[string]any{
		"trades":       summaries,
		"realized_pnl": s.ledger.RealizedPnL(),
	})
}

func (s *Server) handleStopOrder(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	stop, err := s.ledger.GetStopOrder(symbol)
	if err != nil {
		if errors.Is(err, domain.ErrSymbolNotFound) || errors.Is(err, domain.ErrNoStopOrder) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Error("stop order lookup", zap.String("symbol", symbol), zap.Error(err))
		http.Error(w, "stop order lookup failed", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, orderView{
		OrderID:           stop.ID,
		Symbol:            stop.Symbol,
		Type:              stop.Type,
		StatusDescription: stop.StatusDescription,
		StopPrice:         stop.StopPrice,
		Quantity:          stop.OrderedQuantity,
		ConditionalID:     stop.ConditionalOrderID,
	})
}

type entryOrderRequest struct {
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"` // BUY or SELLSHORT
	StopPrice float64 `json:"stop_price"`
	Risk      float64 `json:"risk"`
}

// handleEntryOrder sizes the bracket from the configured risk and the
// distance to the stop, priced off the side that would fill the entry.
func (s *Server) handleEntryOrder(w http.ResponseWriter, r *http.Request) {
	var req entryOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	action := domain.EntryAction(req.Action)
	if action != domain.EntryBuy && action != domain.EntrySellShort {
		http.Error(w, "action must be BUY or SELLSHORT", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" || req.StopPrice <= 0 || req.Risk <= 0 {
		http.Error(w, "symbol, stop_price and risk are required", http.StatusBadRequest)
		return
	}

	quote, ok := s.quotes.Get(req.Symbol)
	if !ok {
		http.Error(w, "no quote for symbol", http.StatusConflict)
		return
	}
	var price float64
	var err error
	if action == domain.EntryBuy {
		price, err = quote.Ask()
	} else {
		price, err = quote.Bid()
	}
	if err != nil {
		http.Error(w, "quote has no usable price", http.StatusConflict)
		return
	}

	distance := math.Abs(req.StopPrice - price)
	if distance == 0 {
		http.Error(w, "stop price equals quote price", http.StatusBadRequest)
		return
	}
	shares := int(req.Risk / distance)
	if shares <= 0 {
		http.Error(w, "risk too small for one share", http.StatusBadRequest)
		return
	}

	if err := s.broker.PlaceBracketOrder(r.Context(), req.Symbol, action, shares, req.StopPrice); err != nil {
		s.logger.Error("bracket order failed", zap.String("symbol", req.Symbol), zap.Error(err))
		http.Error(w, "order placement failed", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"symbol": req.Symbol, "shares": shares})
}

type exitOrderRequest struct {
	Symbol  string  `json:"symbol"`
	Percent float64 `json:"percent"`
}

// handleExitOrder scales out the open position: a market exit for the
// requested fraction, with the working stop amended to the kept share count
// or pulled entirely on a full exit.
func (s *Server) handleExitOrder(w http.ResponseWriter, r *http.Request) {
	var req exitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" || req.Percent <= 0 || req.Percent > 1 {
		http.Error(w, "symbol and percent in (0, 1] are required", http.StatusBadRequest)
		return
	}

	trade, ok := s.ledger.GetPositions()[req.Symbol]
	if !ok {
		http.Error(w, "not in position", http.StatusNotFound)
		return
	}
	currentShares := trade.OpenedShares()
	sharesToExit := int(math.Ceil(float64(currentShares) * req.Percent))
	sharesToKeep := currentShares - sharesToExit

	if stop, err := s.ledger.GetStopOrder(req.Symbol); err == nil && stop.StatusDescription != "Cancelled" {
		if sharesToKeep > 0 {
			if err := s.broker.AmendStopOrder(r.Context(), stop.ID, sharesToKeep, stop.StopPrice); err != nil {
				s.logger.Error("amend stop failed", zap.String("order_id", stop.ID), zap.Error(err))
				http.Error(w, "stop amendment failed", http.StatusBadGateway)
				return
			}
		} else {
			if err := s.broker.CancelOrder(r.Context(), stop.ID); err != nil {
				s.logger.Error("cancel stop failed", zap.String("order_id", stop.ID), zap.Error(err))
				http.Error(w, "stop cancellation failed", http.StatusBadGateway)
				return
			}
		}
	}

	action := domain.ExitSell
	if factor, err := trade.SideFactor(); err == nil && factor == -1 {
		action = domain.ExitBuyToCover
	}
	if err := s.broker.PlaceExitOrder(r.Context(), req.Symbol, action, sharesToExit); err != nil {
		s.logger.Error("exit order failed", zap.String("symbol", req.Symbol), zap.Error(err))
		http.Error(w, "order placement failed", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"symbol":        req.Symbol,
		"shares_exited": sharesToExit,
		"shares_kept":   sharesToKeep,
		"exit_action":   action,
	})
}
