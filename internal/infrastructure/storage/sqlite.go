package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ethan1027/quick-trades/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal is the session journal: every accepted order event appended
// in arrival order, plus one summary row per trade upserted as it evolves.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			order_type TEXT NOT NULL,
			status TEXT NOT NULL,
			status_description TEXT NOT NULL,
			filled_price REAL NOT NULL,
			stop_price REAL NOT NULL,
			opened_at TEXT NOT NULL,
			commission_fee REAL NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			intent TEXT NOT NULL,
			exec_quantity INTEGER NOT NULL,
			ordered_quantity INTEGER NOT NULL,
			conditional_order_id TEXT NOT NULL DEFAULT '',
			recorded_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);`,
		`CREATE TABLE IF NOT EXISTS trades (
			first_order_id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			orders INTEGER NOT NULL,
			opened_shares INTEGER NOT NULL,
			risk_amount REAL NOT NULL,
			realized_amount REAL NOT NULL,
			realized_reward REAL NOT NULL,
			closed BOOLEAN NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := j.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (j *SQLiteJournal) RecordOrder(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO orders (order_id, order_type, status, status_description,
			filled_price, stop_price, opened_at, commission_fee, symbol, side, intent,
			exec_quantity, ordered_quantity, conditional_order_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.ExecContext(ctx, query,
		o.ID, o.Type, o.Status, o.StatusDescription,
		o.FilledPrice, o.StopPrice, o.OpenedAt, o.CommissionFee,
		o.Symbol, string(o.Side), string(o.Intent),
		o.ExecQuantity, o.OrderedQuantity, o.ConditionalOrderID, time.Now().UTC())
	return err
}

func (j *SQLiteJournal) RecordTrade(ctx context.Context, s *domain.TradeSummary) error {
	query := `INSERT INTO trades (first_order_id, symbol, orders, opened_shares,
			risk_amount, realized_amount, realized_reward, closed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(first_order_id) DO UPDATE SET
			orders=excluded.orders,
			opened_shares=excluded.opened_shares,
			risk_amount=excluded.risk_amount,
			realized_amount=excluded.realized_amount,
			realized_reward=excluded.realized_reward,
			closed=excluded.closed,
			updated_at=excluded.updated_at`
	_, err := j.db.ExecContext(ctx, query,
		s.FirstOrderID, s.Symbol, s.Orders, s.OpenedShares,
		s.RiskAmount, s.RealizedAmount, s.RealizedReward, s.Closed, s.UpdatedAt)
	return err
}

// ListOrders returns the journaled order events in arrival order, suitable
// for replaying through a fresh ledger.
func (j *SQLiteJournal) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT order_id, order_type, status, status_description, filled_price,
			stop_price, opened_at, commission_fee, symbol, side, intent,
			exec_quantity, ordered_quantity, conditional_order_id
		FROM orders ORDER BY seq ASC`
	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var o domain.Order
		var side, intent string
		if err := rows.Scan(&o.ID, &o.Type, &o.Status, &o.StatusDescription, &o.FilledPrice,
			&o.StopPrice, &o.OpenedAt, &o.CommissionFee, &o.Symbol, &side, &intent,
			&o.ExecQuantity, &o.OrderedQuantity, &o.ConditionalOrderID); err != nil {
			return nil, err
		}
		o.Side = domain.Side(side)
		o.Intent = domain.Intent(intent)
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func (j *SQLiteJournal) ListTrades(ctx context.Context, limit int) ([]*domain.TradeSummary, error) {
	query := `SELECT first_order_id, symbol, orders, opened_shares, risk_amount,
			realized_amount, realized_reward, closed, updated_at
		FROM trades ORDER BY updated_at DESC LIMIT ?`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.TradeSummary
	for rows.Next() {
		var s domain.TradeSummary
		if err := rows.Scan(&s.FirstOrderID, &s.Symbol, &s.Orders, &s.OpenedShares,
			&s.RiskAmount, &s.RealizedAmount, &s.RealizedReward, &s.Closed, &s.UpdatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, &s)
	}
	return trades, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
