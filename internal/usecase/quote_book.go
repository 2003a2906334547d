package usecase

import (
	"sort"
	"sync"

	"github.com/ethan1027/quick-trades/internal/domain"
)

// QuoteBook holds the latest quote snapshot per symbol. Updates are
// last-write-wins per symbol; no cross-symbol ordering is required.
type QuoteBook struct {
	mu     sync.RWMutex
	quotes map[string]*domain.Quote
}

func NewQuoteBook() *QuoteBook {
	return &QuoteBook{quotes: make(map[string]*domain.Quote)}
}

// Update merges a partial tick over the symbol's snapshot, creating it on the
// first tick.
func (b *QuoteBook) Update(symbol string, u domain.QuoteUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.quotes[symbol]; ok {
		q.Update(u)
		return
	}
	b.quotes[symbol] = domain.NewQuote(u)
}

// Get returns a copy of the symbol's snapshot.
func (b *QuoteBook) Get(symbol string) (domain.Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.quotes[symbol]
	if !ok {
		return domain.Quote{}, false
	}
	return *q, true
}

// Remove drops a symbol the consumer no longer tracks.
func (b *QuoteBook) Remove(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.quotes, symbol)
}

func (b *QuoteBook) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	symbols := make([]string, 0, len(b.quotes))
	for s := range b.quotes {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
