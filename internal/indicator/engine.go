// Package indicator computes technical indicators over a filtered,
// date-ordered slice of OHLC rows.
//
// All computations return one result row per input row, ascending by date,
// retaining the original symbol/date/close columns plus the computed
// field(s). Warm-up rows carry an explicit null value — they are never
// silently dropped.
package indicator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/ohlc"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/tier"
)

var (
	// ErrInvalidRange is returned when the requested start date is after the end.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrRangeExceeded is returned when the requested span exceeds the
	// tier's lookback allowance.
	ErrRangeExceeded = errors.New("date range exceeds tier lookback")

	// ErrMissingParameters is returned when a computation's windowing
	// parameters are absent or not positive.
	ErrMissingParameters = errors.New("missing parameters")
)

// Params carries the windowing parameters for a computation. Window applies
// to SMA, EMA, RSI, and Bollinger; the three periods apply to MACD and must
// be provided together.
type Params struct {
	Window       int
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

type computeFunc func(rows []model.OHLCRow, p Params) ([]model.ResultRow, error)

// computations is the closed dispatch table from indicator identifier to its
// computation. Permission checks validate against the same tier.Indicator
// enum, so every permitted indicator has an entry here.
var computations = map[tier.Indicator]computeFunc{
	tier.SMA:       computeSMA,
	tier.EMA:       computeEMA,
	tier.RSI:       computeRSI,
	tier.MACD:      computeMACD,
	tier.Bollinger: computeBollinger,
}

// Engine filters the OHLC table by date range and tier lookback, and runs
// indicator computations on the result. Stateless and safe for concurrent use.
type Engine struct {
	table ohlc.Table

	// exactCalendar switches the lookback check from the fixed
	// 30-day-per-month approximation to real calendar months.
	exactCalendar bool
}

// NewEngine creates an engine over the given table.
func NewEngine(table ohlc.Table, exactCalendarLookback bool) *Engine {
	return &Engine{table: table, exactCalendar: exactCalendarLookback}
}

// Filter returns the rows for symbol within [start, end], after validating
// the range against the tier's lookback allowance. A span exactly at the
// allowance is permitted.
func (e *Engine) Filter(ctx context.Context, symbol string, start, end model.Date, tc tier.Config) ([]model.OHLCRow, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start, end)
	}
	if e.exceedsLookback(start, end, tc.MaxLookbackMonths) {
		return nil, fmt.Errorf("%w: limit is %d months for tier %s", ErrRangeExceeded, tc.MaxLookbackMonths, tc.Name)
	}
	return e.table.Rows(ctx, symbol, start, end)
}

// exceedsLookback applies the 30-day-per-month approximation by default.
// The approximation keeps behavior reproducible across deployments;
// exact-calendar mode is opt-in.
func (e *Engine) exceedsLookback(start, end model.Date, months int) bool {
	if e.exactCalendar {
		return end.After(start.AddMonths(months))
	}
	maxSpan := time.Duration(months) * 30 * 24 * time.Hour
	return end.Sub(start) > maxSpan
}

// Compute dispatches to the computation bound to the indicator.
func (e *Engine) Compute(ind tier.Indicator, rows []model.OHLCRow, p Params) ([]model.ResultRow, error) {
	fn, ok := computations[ind]
	if !ok {
		return nil, fmt.Errorf("no computation bound for indicator %q", ind)
	}
	return fn(rows, p)
}

// resultRow copies the source columns and attaches the computed fields.
func resultRow(r model.OHLCRow, fields ...model.Field) model.ResultRow {
	return model.ResultRow{
		Symbol: r.Symbol,
		Date:   r.Date,
		Close:  r.Close,
		Fields: fields,
	}
}

func requireWindow(p Params) error {
	if p.Window < 1 {
		return fmt.Errorf("%w: window must be a positive integer", ErrMissingParameters)
	}
	return nil
}
