package domain

import (
	"fmt"
	"strconv"
)

// Side is the direction of an order leg.
type Side string

const (
	SideBuy        Side = "Buy"
	SideSell       Side = "Sell"
	SideSellShort  Side = "SellShort"
	SideBuyToCover Side = "BuyToCover"
)

// Intent marks whether a leg opens or closes a position. Some synthetic legs
// carry no intent at all.
type Intent string

const (
	IntentOpen  Intent = "Open"
	IntentClose Intent = "Close"
)

const (
	OrderTypeMarket     = "Market"
	OrderTypeStopMarket = "StopMarket"
)

// statusFilled is the broker's status code for a fully filled order.
const statusFilled = "FLL"

// OrderEvent is the raw payload of one line on the brokerage order stream.
// Numeric fields arrive as strings.
type OrderEvent struct {
	OrderID           string             `json:"OrderID"`
	OrderType         string             `json:"OrderType"`
	Status            string             `json:"Status"`
	StatusDescription string             `json:"StatusDescription"`
	FilledPrice       string             `json:"FilledPrice"`
	StopPrice         string             `json:"StopPrice,omitempty"`
	OpenedDateTime    string             `json:"OpenedDateTime"`
	CommissionFee     string             `json:"CommissionFee"`
	Legs              []OrderLeg         `json:"Legs"`
	ConditionalOrders []ConditionalOrder `json:"ConditionalOrders,omitempty"`
}

type OrderLeg struct {
	Symbol          string `json:"Symbol"`
	BuyOrSell       string `json:"BuyOrSell"`
	OpenOrClose     string `json:"OpenOrClose,omitempty"`
	ExecQuantity    string `json:"ExecQuantity"`
	QuantityOrdered string `json:"QuantityOrdered"`
}

type ConditionalOrder struct {
	OrderID      string `json:"OrderID"`
	Relationship string `json:"Relationship,omitempty"`
}

// Order is the normalized, immutable view of one order fill/status event.
// Only leg 0 is read; multi-leg orders are not supported.
type Order struct {
	ID                string
	Type              string
	Status            string
	StatusDescription string
	// FilledPrice of 0 means the order has not filled. The broker sends "0"
	// on every event until the fill, so zero is never a valid fill price.
	FilledPrice        float64
	StopPrice          float64
	OpenedAt           string
	CommissionFee      float64
	Symbol             string
	Side               Side
	Intent             Intent
	ExecQuantity       int
	OrderedQuantity    int
	ConditionalOrderID string
}

// NewOrder converts a raw order event into an Order, failing on any field the
// accounting layer requires.
func NewOrder(ev OrderEvent) (*Order, error) {
	if ev.OrderID == "" {
		return nil, fmt.Errorf("%w: OrderID", ErrMissingField)
	}
	if len(ev.Legs) == 0 {
		return nil, fmt.Errorf("%w: Legs", ErrMissingField)
	}
	leg := ev.Legs[0]
	if leg.Symbol == "" {
		return nil, fmt.Errorf("%w: Legs[0].Symbol", ErrMissingField)
	}
	if leg.ExecQuantity == "" {
		return nil, fmt.Errorf("%w: Legs[0].ExecQuantity", ErrMissingField)
	}
	if leg.QuantityOrdered == "" {
		return nil, fmt.Errorf("%w: Legs[0].QuantityOrdered", ErrMissingField)
	}

	execQty, err := strconv.Atoi(leg.ExecQuantity)
	if err != nil {
		return nil, fmt.Errorf("order %s: parse ExecQuantity: %w", ev.OrderID, err)
	}
	orderedQty, err := strconv.Atoi(leg.QuantityOrdered)
	if err != nil {
		return nil, fmt.Errorf("order %s: parse QuantityOrdered: %w", ev.OrderID, err)
	}
	filledPrice, err := optionalFloat(ev.FilledPrice)
	if err != nil {
		return nil, fmt.Errorf("order %s: parse FilledPrice: %w", ev.OrderID, err)
	}
	stopPrice, err := optionalFloat(ev.StopPrice)
	if err != nil {
		return nil, fmt.Errorf("order %s: parse StopPrice: %w", ev.OrderID, err)
	}
	commission, err := optionalFloat(ev.CommissionFee)
	if err != nil {
		return nil, fmt.Errorf("order %s: parse CommissionFee: %w", ev.OrderID, err)
	}

	statusDesc := ev.StatusDescription
	if statusDesc == "UROut" {
		statusDesc = "Cancelled"
	}

	var conditionalID string
	if len(ev.ConditionalOrders) > 0 {
		conditionalID = ev.ConditionalOrders[0].OrderID
	}

	return &Order{
		ID:                 ev.OrderID,
		Type:               ev.OrderType,
		Status:             ev.Status,
		StatusDescription:  statusDesc,
		FilledPrice:        filledPrice,
		StopPrice:          stopPrice,
		OpenedAt:           ev.OpenedDateTime,
		CommissionFee:      commission,
		Symbol:             leg.Symbol,
		Side:               Side(leg.BuyOrSell),
		Intent:             Intent(leg.OpenOrClose),
		ExecQuantity:       execQty,
		OrderedQuantity:    orderedQty,
		ConditionalOrderID: conditionalID,
	}, nil
}

func optionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// IsOpen reports whether the leg increases the position.
func (o *Order) IsOpen() bool {
	return o.Intent == IntentOpen
}

// IsFilled reports whether the order has fully filled.
func (o *Order) IsFilled() bool {
	return o.Status == statusFilled
}

// IsStop reports whether the order is a protective stop.
func (o *Order) IsStop() bool {
	return o.Type == OrderTypeStopMarket
}

func (o *Order) String() string {
	fillStr := ""
	if o.FilledPrice != 0 {
		fillStr = fmt.Sprintf(" @ $%g", o.FilledPrice)
	}
	stopStr := ""
	if o.StopPrice != 0 {
		stopStr = fmt.Sprintf(" with StopPrice @ $%g", o.StopPrice)
	}
	return fmt.Sprintf("%s %s %s %s %s %s order is %s for %d/%d%s%s",
		o.OpenedAt, o.ID, o.Symbol, o.Intent, o.Side, o.Type,
		o.StatusDescription, o.ExecQuantity, o.OrderedQuantity, fillStr, stopStr)
}
