package ohlc

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteTable serves the pre-loaded OHLC table from a read-only SQLite file.
//
// Expected schema:
//
//	CREATE TABLE ohlc (
//		symbol TEXT    NOT NULL,
//		date   TEXT    NOT NULL,  -- "YYYY-MM-DD"
//		close  REAL    NOT NULL
//	);
//	CREATE INDEX idx_ohlc_symbol_date ON ohlc(symbol, date);
type SQLiteTable struct {
	db *sql.DB
}

// OpenSQLite opens the OHLC database for reading.
func OpenSQLite(path string) (*SQLiteTable, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		return nil, fmt.Errorf("sqlite open ohlc: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	slog.Info("opened ohlc table", "path", path)
	return &SQLiteTable{db: db}, nil
}

// DB returns the underlying sql.DB for health probes.
func (t *SQLiteTable) DB() *sql.DB { return t.db }

// Rows implements Table. Dates are stored as "YYYY-MM-DD" text, which sorts
// and compares lexicographically in date order.
func (t *SQLiteTable) Rows(ctx context.Context, symbol string, start, end model.Date) ([]model.OHLCRow, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT symbol, date, close
		FROM ohlc
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite query ohlc: %w", err)
	}
	defer rows.Close()

	var out []model.OHLCRow
	for rows.Next() {
		var r model.OHLCRow
		var dateStr string
		if err := rows.Scan(&r.Symbol, &dateStr, &r.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan ohlc: %w", err)
		}
		r.Date, err = model.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("sqlite ohlc row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping verifies the database is reachable, with a bounded wait.
func (t *SQLiteTable) Ping(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return t.db.PingContext(ctx)
}

// Close closes the table.
func (t *SQLiteTable) Close() error { return t.db.Close() }
