// Package ohlc provides the queryable OHLC table the indicator engine reads
// from. Ingestion is out of scope — the table is assumed pre-loaded.
package ohlc

import (
	"context"
	"sort"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
)

// Table is the read port for historical close prices.
type Table interface {
	// Rows returns the rows for one symbol within [start, end] inclusive,
	// ascending by date.
	Rows(ctx context.Context, symbol string, start, end model.Date) ([]model.OHLCRow, error)
}

// MemoryTable is an in-memory Table, used in tests and for small datasets.
type MemoryTable struct {
	bySymbol map[string][]model.OHLCRow
}

// NewMemoryTable builds a table from the given rows. Rows are sorted by
// date per symbol at load time.
func NewMemoryTable(rows []model.OHLCRow) *MemoryTable {
	t := &MemoryTable{bySymbol: make(map[string][]model.OHLCRow)}
	for _, r := range rows {
		t.bySymbol[r.Symbol] = append(t.bySymbol[r.Symbol], r)
	}
	for sym := range t.bySymbol {
		rs := t.bySymbol[sym]
		sort.Slice(rs, func(i, j int) bool { return rs[j].Date.After(rs[i].Date) })
	}
	return t
}

// Rows implements Table.
func (t *MemoryTable) Rows(_ context.Context, symbol string, start, end model.Date) ([]model.OHLCRow, error) {
	var out []model.OHLCRow
	for _, r := range t.bySymbol[symbol] {
		if start.After(r.Date) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
