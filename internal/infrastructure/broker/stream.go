package broker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethan1027/quick-trades/internal/domain"
	"github.com/ethan1027/quick-trades/internal/usecase"
	"go.uber.org/zap"
)

// errResubscribe signals that the quote stream must reopen with a new symbol
// set. It does not count against the retry budget.
var errResubscribe = fmt.Errorf("symbol set changed")

// StreamOrders reads the order stream for the given accounts and pushes
// normalized orders into out. Lines without an OrderID are heartbeats.
// Malformed events are logged and dropped; the stream keeps going. Transport
// failures retry with backoff up to the configured attempt budget, after
// which the stream is reported as terminally failed.
func (c *Client) StreamOrders(ctx context.Context, accountIDs []string, out chan<- *domain.Order) error {
	streamURL := fmt.Sprintf("%s/brokerage/stream/accounts/%s/orders",
		c.opts.APIBaseURL, strings.Join(accountIDs, ","))

	var lastErr error
	for attempt := 1; attempt <= c.opts.StreamRetries; attempt++ {
		if attempt > 1 {
			c.logger.Info("reconnecting order stream", zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.StreamBackoff):
			}
		}

		lastErr = c.streamOrdersOnce(ctx, streamURL, out)
		if lastErr == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("order stream dropped", zap.Error(lastErr))
	}
	return fmt.Errorf("order stream: giving up after %d attempts: %w", c.opts.StreamRetries, lastErr)
}

func (c *Client) streamOrdersOnce(ctx context.Context, streamURL string, out chan<- *domain.Order) error {
	lines, closeBody, err := c.openStream(ctx, streamURL)
	if err != nil {
		return err
	}
	defer closeBody()

	for lines.Scan() {
		line := lines.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev domain.OrderEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			c.logger.Warn("undecodable order event", zap.Error(err))
			continue
		}
		if ev.OrderID == "" {
			// heartbeat or stream status line
			continue
		}

		order, err := domain.NewOrder(ev)
		if err != nil {
			c.logger.Warn("rejecting malformed order event",
				zap.String("order_id", ev.OrderID), zap.Error(err))
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- order:
		}
	}
	if err := lines.Err(); err != nil {
		return err
	}
	return fmt.Errorf("order stream closed by server")
}

// quoteEvent is one raw line off the quote stream. Prices are strings and any
// of them may be absent on a given tick.
type quoteEvent struct {
	Symbol string `json:"Symbol"`
	Bid    string `json:"Bid,omitempty"`
	Ask    string `json:"Ask,omitempty"`
	Last   string `json:"Last,omitempty"`
}

func (ev quoteEvent) toUpdate() (domain.QuoteUpdate, error) {
	var u domain.QuoteUpdate
	var err error
	if u.Bid, err = parsePrice(ev.Bid); err != nil {
		return u, fmt.Errorf("parse Bid: %w", err)
	}
	if u.Ask, err = parsePrice(ev.Ask); err != nil {
		return u, fmt.Errorf("parse Ask: %w", err)
	}
	if u.Last, err = parsePrice(ev.Last); err != nil {
		return u, fmt.Errorf("parse Last: %w", err)
	}
	return u, nil
}

func parsePrice(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// StreamQuotes follows the quote stream for the symbol set reported by
// symbols, reopening whenever that set changes. Only transport failures
// consume the retry budget.
func (c *Client) StreamQuotes(ctx context.Context, symbols func() []string, out chan<- usecase.QuoteTick) error {
	var lastErr error
	attempt := 0
	for attempt < c.opts.StreamRetries {
		subscribed := strings.Join(symbols(), ",")
		if subscribed == "" {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.StreamBackoff):
			}
			continue
		}

		err := c.streamQuotesOnce(ctx, subscribed, symbols, out)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err == errResubscribe:
			c.logger.Info("quote symbol set changed", zap.String("was", subscribed))
			continue
		default:
			attempt++
			lastErr = err
			c.logger.Warn("quote stream dropped", zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.StreamBackoff):
			}
		}
	}
	return fmt.Errorf("quote stream: giving up after %d attempts: %w", c.opts.StreamRetries, lastErr)
}

func (c *Client) streamQuotesOnce(ctx context.Context, subscribed string, symbols func() []string, out chan<- usecase.QuoteTick) error {
	streamURL := fmt.Sprintf("%s/marketdata/stream/quotes/%s", c.opts.APIBaseURL, subscribed)
	lines, closeBody, err := c.openStream(ctx, streamURL)
	if err != nil {
		return err
	}
	defer closeBody()

	c.logger.Info("quote stream open", zap.String("symbols", subscribed))

	for lines.Scan() {
		if strings.Join(symbols(), ",") != subscribed {
			return errResubscribe
		}
		line := lines.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev quoteEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			c.logger.Warn("undecodable quote event", zap.Error(err))
			continue
		}
		if ev.Symbol == "" {
			continue
		}
		update, err := ev.toUpdate()
		if err != nil {
			c.logger.Warn("rejecting malformed quote event",
				zap.String("symbol", ev.Symbol), zap.Error(err))
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- usecase.QuoteTick{Symbol: ev.Symbol, Update: update}:
		}
	}
	if err := lines.Err(); err != nil {
		return err
	}
	return fmt.Errorf("quote stream closed by server")
}

func (c *Client) openStream(ctx context.Context, streamURL string) (*bufio.Scanner, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", c.bearer())

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("open stream: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return scanner, func() { resp.Body.Close() }, nil
}
