package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS mmfs_trades (
	position_id     TEXT PRIMARY KEY,
	symbol          TEXT NOT NULL,
	setup           TEXT NOT NULL,
	direction       TEXT NOT NULL,
	entry_price     NUMERIC(14,2) NOT NULL,
	exit_price      NUMERIC(14,2) NOT NULL,
	quantity        INTEGER NOT NULL,
	entry_time      TIMESTAMPTZ NOT NULL,
	exit_time       TIMESTAMPTZ NOT NULL,
	exit_reason     TEXT NOT NULL,
	gross_pnl       NUMERIC(14,4) NOT NULL,
	charges         NUMERIC(14,6) NOT NULL,
	net_pnl         NUMERIC(14,4) NOT NULL,
	mfe             NUMERIC(14,2) NOT NULL,
	mae             NUMERIC(14,2) NOT NULL,
	holding_minutes REAL NOT NULL,
	breakeven       BOOLEAN NOT NULL DEFAULT FALSE,
	gap_pct         REAL NOT NULL,
	breadth         TEXT NOT NULL,
	confidence      REAL NOT NULL,
	created_at      TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_mmfs_trades_exit_time ON mmfs_trades(exit_time);
`

const insertSQL = `
INSERT INTO mmfs_trades (
	position_id, symbol, setup, direction, entry_price, exit_price, quantity,
	entry_time, exit_time, exit_reason, gross_pnl, charges, net_pnl, mfe, mae,
	holding_minutes, breakeven, gap_pct, breadth, confidence
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
ON CONFLICT (position_id) DO NOTHING`

// Postgres stores trades in the mmfs_trades table.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects, pings and creates the schema if it is missing.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres journal needs a dsn (journal.dsn or DATABASE_URL)")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func (p *Postgres) Record(ctx context.Context, t position.TradeResult) error {
	_, err := p.db.ExecContext(ctx, insertSQL,
		t.PositionID, t.Symbol, string(t.Setup), string(t.Direction),
		dec(t.EntryPrice), dec(t.ExitPrice), t.Quantity,
		t.EntryTime, t.ExitTime, string(t.ExitReason),
		dec(t.GrossPnl), dec(t.Charges.Total), dec(t.NetPnl),
		dec(t.MaxFavorableExcursion), dec(t.MaxAdverseExcursion),
		t.HoldingMinutes, t.MovedToBreakeven, t.Gap.GapPct, string(t.Breadth), t.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to log trade %s: %w", t.PositionID, err)
	}
	return nil
}

// Count returns the number of journaled trades.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mmfs_trades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

func (p *Postgres) Close() error { return p.db.Close() }
