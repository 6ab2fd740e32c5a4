package indicator

import (
	"fmt"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
)

// emaSeries applies the recursive exponential average with
// alpha = 2/(span+1), seeded from the first observation. No bias
// adjustment — the first value is taken as-is.
func emaSeries(values []float64, span int) []float64 {
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(values))
	for i, v := range values {
		if i == 0 {
			out[0] = v
			continue
		}
		out[i] = alpha*v + (1.0-alpha)*out[i-1]
	}
	return out
}

// computeEMA produces the exponentially weighted mean of close with
// span = Window. Every row has a defined value.
func computeEMA(rows []model.OHLCRow, p Params) ([]model.ResultRow, error) {
	if err := requireWindow(p); err != nil {
		return nil, err
	}

	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r.Close
	}
	ema := emaSeries(closes, p.Window)

	name := fmt.Sprintf("ema_%d", p.Window)
	out := make([]model.ResultRow, len(rows))
	for i, r := range rows {
		v := ema[i]
		out[i] = resultRow(r, model.Field{Name: name, Value: &v})
	}
	return out, nil
}
