package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ethan1027/quick-trades/internal/domain"
	"go.uber.org/zap"
)

// The order-execution API takes quantities and prices as strings.

type timeInForce struct {
	Duration string `json:"Duration"`
}

type stopLegRequest struct {
	AccountID   string      `json:"AccountID"`
	TimeInForce timeInForce `json:"TimeInForce"`
	Quantity    string      `json:"Quantity"`
	OrderType   string      `json:"OrderType"`
	Symbol      string      `json:"Symbol"`
	TradeAction string      `json:"TradeAction"`
	Route       string      `json:"Route"`
	StopPrice   string      `json:"StopPrice"`
}

type osoGroup struct {
	Type   string           `json:"Type"`
	Orders []stopLegRequest `json:"Orders"`
}

type orderRequest struct {
	AccountID   string      `json:"AccountID"`
	TimeInForce timeInForce `json:"TimeInForce"`
	Quantity    string      `json:"Quantity"`
	OrderType   string      `json:"OrderType"`
	Symbol      string      `json:"Symbol"`
	TradeAction string      `json:"TradeAction"`
	Route       string      `json:"Route"`
	OSOs        []osoGroup  `json:"OSOs,omitempty"`
}

type amendStopRequest struct {
	Quantity  string `json:"Quantity"`
	OrderType string `json:"OrderType"`
	StopPrice string `json:"StopPrice"`
}

type orderResult struct {
	OrderID string `json:"OrderID"`
	Message string `json:"Message"`
	Error   string `json:"Error,omitempty"`
}

type orderResponse struct {
	Orders []orderResult `json:"Orders"`
	Errors []orderResult `json:"Errors,omitempty"`
}

// PlaceBracketOrder submits a DAY market entry carrying a GTC StopMarket
// child on the opposite side, activated by the entry fill.
func (c *Client) PlaceBracketOrder(ctx context.Context, symbol string, action domain.EntryAction, quantity int, stopPrice float64) error {
	stopAction := string(domain.ExitBuyToCover)
	if action == domain.EntryBuy {
		stopAction = string(domain.ExitSell)
	}

	payload := orderRequest{
		AccountID:   c.account(),
		TimeInForce: timeInForce{Duration: "DAY"},
		Quantity:    strconv.Itoa(quantity),
		OrderType:   domain.OrderTypeMarket,
		Symbol:      symbol,
		TradeAction: string(action),
		Route:       "Intelligent",
		OSOs: []osoGroup{{
			Type: "NORMAL",
			Orders: []stopLegRequest{{
				AccountID:   c.account(),
				TimeInForce: timeInForce{Duration: "GTC"},
				Quantity:    strconv.Itoa(quantity),
				OrderType:   domain.OrderTypeStopMarket,
				Symbol:      symbol,
				TradeAction: stopAction,
				Route:       "Intelligent",
				StopPrice:   strconv.FormatFloat(stopPrice, 'f', -1, 64),
			}},
		}},
	}
	return c.submitOrder(ctx, payload)
}

// PlaceExitOrder submits a plain DAY market order reducing the position.
func (c *Client) PlaceExitOrder(ctx context.Context, symbol string, action domain.ExitAction, quantity int) error {
	payload := orderRequest{
		AccountID:   c.account(),
		TimeInForce: timeInForce{Duration: "DAY"},
		Quantity:    strconv.Itoa(quantity),
		OrderType:   domain.OrderTypeMarket,
		Symbol:      symbol,
		TradeAction: string(action),
		Route:       "Intelligent",
	}
	return c.submitOrder(ctx, payload)
}

func (c *Client) submitOrder(ctx context.Context, payload orderRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.opts.APIBaseURL+"/orderexecution/orders", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("Authorization", c.bearer())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("submit order: status %d: %s", resp.StatusCode, raw)
	}

	var parsed orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("submit order: decode: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("submit order rejected: %s: %s", parsed.Errors[0].Error, parsed.Errors[0].Message)
	}
	for _, order := range parsed.Orders {
		c.logger.Info("order accepted",
			zap.String("order_id", order.OrderID), zap.String("message", order.Message))
	}
	return nil
}

// AmendStopOrder resizes a working stop, keeping its stop price.
func (c *Client) AmendStopOrder(ctx context.Context, orderID string, quantity int, stopPrice float64) error {
	payload := amendStopRequest{
		Quantity:  strconv.Itoa(quantity),
		OrderType: domain.OrderTypeStopMarket,
		StopPrice: strconv.FormatFloat(stopPrice, 'f', -1, 64),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.opts.APIBaseURL+"/orderexecution/orders/"+orderID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("Authorization", c.bearer())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("amend stop %s: %w", orderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("amend stop %s: status %d: %s", orderID, resp.StatusCode, raw)
	}
	return nil
}

// CancelOrder pulls a working order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.opts.APIBaseURL+"/orderexecution/orders/"+orderID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.bearer())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel order %s: status %d: %s", orderID, resp.StatusCode, raw)
	}
	return nil
}
