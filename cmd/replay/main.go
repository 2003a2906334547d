// Replays a recorded session journal through a fresh accounting engine and
// prints the reconstructed trades with their R-multiples.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ethan1027/quick-trades/internal/infrastructure/storage"
	"github.com/ethan1027/quick-trades/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	dbPath := flag.String("db", "session.db", "path to session journal")
	flag.Parse()

	journal, err := storage.NewSQLiteJournal(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
		os.Exit(1)
	}
	defer journal.Close()

	orders, err := journal.ListOrders(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read orders: %v\n", err)
		os.Exit(1)
	}

	ledger := usecase.NewLedger(zap.NewNop())
	for _, order := range orders {
		if err := ledger.Append(order); err != nil {
			fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		}
	}

	fmt.Println("Trade History:")
	for _, trades := range ledger.Trades() {
		for _, trade := range trades {
			fmt.Println(trade)
		}
	}
	fmt.Printf("Daily Realized PnL: $%g\n", ledger.RealizedPnL())
}
