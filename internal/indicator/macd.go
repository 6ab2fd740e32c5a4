package indicator

import (
	"fmt"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
)

// computeMACD produces the MACD line (EMA fast minus EMA slow over close)
// and its signal line (EMA of the MACD line). All three periods must be
// provided together.
func computeMACD(rows []model.OHLCRow, p Params) ([]model.ResultRow, error) {
	if p.FastPeriod < 1 || p.SlowPeriod < 1 || p.SignalPeriod < 1 {
		return nil, fmt.Errorf("%w: macd requires fast, slow, and signal periods", ErrMissingParameters)
	}

	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r.Close
	}

	fast := emaSeries(closes, p.FastPeriod)
	slow := emaSeries(closes, p.SlowPeriod)
	macd := make([]float64, len(rows))
	for i := range macd {
		macd[i] = fast[i] - slow[i]
	}
	signal := emaSeries(macd, p.SignalPeriod)

	out := make([]model.ResultRow, len(rows))
	for i, r := range rows {
		m, s := macd[i], signal[i]
		out[i] = resultRow(r,
			model.Field{Name: "macd_line", Value: &m},
			model.Field{Name: "signal_line", Value: &s},
		)
	}
	return out, nil
}
