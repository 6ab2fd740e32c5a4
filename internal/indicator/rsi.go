package indicator

import (
	"fmt"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
)

// computeRSI produces the Relative Strength Index with Wilder's exponential
// smoothing: alpha = 1/window, no bias adjustment, seeded from the first
// delta. Whenever the smoothed loss is zero the RSI is forced to exactly
// 100 — including the first row, which has no prior delta at all.
func computeRSI(rows []model.OHLCRow, p Params) ([]model.ResultRow, error) {
	if err := requireWindow(p); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("rsi_%d", p.Window)
	alpha := 1.0 / float64(p.Window)

	out := make([]model.ResultRow, len(rows))
	var avgGain, avgLoss float64
	for i, r := range rows {
		if i == 0 {
			v := 100.0
			out[i] = resultRow(r, model.Field{Name: name, Value: &v})
			continue
		}

		delta := r.Close - rows[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		if i == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1.0-alpha)*avgGain
			avgLoss = alpha*loss + (1.0-alpha)*avgLoss
		}

		v := 100.0
		if avgLoss != 0 {
			rs := avgGain / avgLoss
			v = 100.0 - 100.0/(1.0+rs)
		}
		out[i] = resultRow(r, model.Field{Name: name, Value: &v})
	}
	return out, nil
}
