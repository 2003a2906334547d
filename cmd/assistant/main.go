package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/ethan1027/quick-trades/internal/config"
	"github.com/ethan1027/quick-trades/internal/infrastructure/broker"
	"github.com/ethan1027/quick-trades/internal/infrastructure/logger"
	"github.com/ethan1027/quick-trades/internal/infrastructure/storage"
	"github.com/ethan1027/quick-trades/internal/usecase"
	"github.com/ethan1027/quick-trades/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Broker.Mode == "live" {
		log.Info("live trading mode")
	} else {
		log.Info("sim trading mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, err := storage.NewSQLiteJournal(cfg.Storage.Path)
	if err != nil {
		log.Fatal("failed to open session journal", zap.Error(err))
	}
	defer journal.Close()

	ledger := usecase.NewLedger(log)
	quotes := usecase.NewQuoteBook()
	ingestor := usecase.NewIngestor(ledger, quotes, journal, log)

	client := broker.NewClient(broker.Options{
		APIBaseURL:    cfg.APIBaseURL(),
		SigninBaseURL: cfg.SigninBaseURL(),
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RedirectURL:   cfg.RedirectURL,
		RefreshToken:  cfg.RefreshToken,
		StreamRetries: cfg.Broker.StreamRetries,
		StreamBackoff: time.Duration(cfg.Broker.StreamBackoffMs) * time.Millisecond,
	}, log)

	if err := client.RefreshAccessToken(ctx); err != nil {
		log.Fatal("initial token refresh failed", zap.Error(err))
	}
	accounts, err := client.GetAccounts(ctx)
	if err != nil {
		log.Fatal("failed to fetch accounts", zap.Error(err))
	}
	margin, ok := accounts["Margin"]
	if !ok {
		log.Fatal("no active margin account")
	}
	client.UseAccount(margin.AccountID)

	accountIDs := make([]string, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.AccountID)
	}
	sort.Strings(accountIDs)
	log.Info("trading account selected",
		zap.String("account_id", margin.AccountID), zap.Strings("all_accounts", accountIDs))

	server := web.NewServer(cfg.Server.Port, ledger, quotes, client, log)

	focusSymbol := strings.ToUpper(cfg.Broker.FocusSymbol)
	liveSymbols := func() []string {
		seen := map[string]bool{focusSymbol: true}
		for symbol := range ledger.GetPositions() {
			seen[symbol] = true
		}
		symbols := make([]string, 0, len(seen))
		for symbol := range seen {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		return symbols
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.RunTokenRefresher(gctx, time.Duration(cfg.Broker.TokenRefreshMin)*time.Minute)
	})
	g.Go(func() error {
		return client.StreamOrders(gctx, accountIDs, ingestor.OrderCh())
	})
	g.Go(func() error {
		return client.StreamQuotes(gctx, liveSymbols, ingestor.QuoteCh())
	})
	g.Go(func() error {
		return ingestor.Run(gctx)
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("session ended with error", zap.Error(err))
	}
	log.Info("session closed", zap.Float64("realized_pnl", ledger.RealizedPnL()))
}
