package domain

import "fmt"

// QuoteUpdate is one partial tick off the quote stream. Nil fields were not
// present in the update and leave the previous value alone.
type QuoteUpdate struct {
	Bid  *float64
	Ask  *float64
	Last *float64
}

// Quote is the latest bid/ask snapshot for one symbol, merged in place from
// partial updates. Either side falls back to the last-trade price when the
// feed has never sent it.
type Quote struct {
	bid  *float64
	ask  *float64
	last *float64
}

func NewQuote(u QuoteUpdate) *Quote {
	q := &Quote{}
	q.Update(u)
	return q
}

// Update merges a partial tick over the snapshot. Present fields overwrite,
// absent fields persist.
func (q *Quote) Update(u QuoteUpdate) {
	if u.Bid != nil {
		q.bid = u.Bid
	}
	if u.Ask != nil {
		q.ask = u.Ask
	}
	if u.Last != nil {
		q.last = u.Last
	}
}

func (q *Quote) Bid() (float64, error) {
	if q.bid != nil {
		return *q.bid, nil
	}
	if q.last != nil {
		return *q.last, nil
	}
	return 0, fmt.Errorf("%w: bid", ErrNoQuotePrice)
}

func (q *Quote) Ask() (float64, error) {
	if q.ask != nil {
		return *q.ask, nil
	}
	if q.last != nil {
		return *q.last, nil
	}
	return 0, fmt.Errorf("%w: ask", ErrNoQuotePrice)
}
