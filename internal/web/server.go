package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethan1027/quick-trades/internal/domain"
	"github.com/ethan1027/quick-trades/internal/usecase"
	"go.uber.org/zap"
)

// Server is the JSON surface the display layer consumes: read projections
// over the ledger and quote book, plus the two order entrypoints that drive
// the broker.
type Server struct {
	router *http.ServeMux
	server *http.Server
	ledger *usecase.Ledger
	quotes *usecase.QuoteBook
	broker domain.Broker
	logger *zap.Logger
}

func NewServer(
	port int,
	ledger *usecase.Ledger,
	quotes *usecase.QuoteBook,
	broker domain.Broker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router: http.NewServeMux(),
		ledger: ledger,
		quotes: quotes,
		broker: broker,
		logger: logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Read projections
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /api/positions", s.handlePositions)
	s.router.HandleFunc("GET /api/trades", s.handleTrades)
	s.router.HandleFunc("GET /api/stop/{symbol}", s.handleStopOrder)

	// Order entry
	s.router.HandleFunc("POST /api/orders/entry", s.handleEntryOrder)
	s.router.HandleFunc("POST /api/orders/exit", s.handleExitOrder)

	// Live position push
	s.router.HandleFunc("GET /ws", s.handleWS)
}

func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
