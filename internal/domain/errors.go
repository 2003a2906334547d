package domain

import "errors"

var (
	// ErrMissingField rejects a raw broker event that lacks a field the
	// accounting layer depends on. The event must be dropped, never defaulted.
	ErrMissingField = errors.New("order event missing required field")

	// ErrShareImbalance means a close-intent fill would push a trade's opened
	// share count below zero. The trade's bookkeeping can no longer be trusted.
	ErrShareImbalance = errors.New("exit quantity exceeds opened shares")

	// ErrSymbolHalted is returned for any append to a symbol whose ledger hit
	// a consistency error. Other symbols keep processing.
	ErrSymbolHalted = errors.New("ledger halted for symbol")

	// ErrSymbolNotFound reports a lookup for a symbol with no trade history.
	ErrSymbolNotFound = errors.New("no trade history for symbol")

	// ErrNoStopOrder means a trade has no StopMarket order yet, so metrics
	// derived from the initial stop cannot be computed.
	ErrNoStopOrder = errors.New("trade has no stop order")

	// ErrNoEntryFill means a trade has no filled open-intent order yet.
	ErrNoEntryFill = errors.New("trade has no filled entry order")

	// ErrZeroRisk means the entry and the initial stop imply no risk, so
	// R-multiples are undefined.
	ErrZeroRisk = errors.New("trade has zero risk amount")

	// ErrNoQuotePrice means a quote has neither the requested side nor a
	// last-trade price to fall back on.
	ErrNoQuotePrice = errors.New("quote has no price for requested side")
)
