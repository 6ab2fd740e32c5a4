package indicator

import (
	"math"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
)

// Band width in standard deviations.
const bollingerNumStd = 2.0

// computeBollinger produces the upper and lower Bollinger bands around the
// rolling mean. The rolling standard deviation is the sample deviation
// (window-1 denominator). The first window-1 rows have no defined value.
func computeBollinger(rows []model.OHLCRow, p Params) ([]model.ResultRow, error) {
	if err := requireWindow(p); err != nil {
		return nil, err
	}

	w := p.Window
	out := make([]model.ResultRow, len(rows))
	var sum, sumSq float64
	for i, r := range rows {
		sum += r.Close
		sumSq += r.Close * r.Close
		if i >= w {
			old := rows[i-w].Close
			sum -= old
			sumSq -= old * old
		}

		var upper, lower *float64
		if i >= w-1 {
			mean := sum / float64(w)
			variance := 0.0
			if w > 1 {
				variance = (sumSq - sum*sum/float64(w)) / float64(w-1)
				if variance < 0 {
					// Floating-point cancellation can nudge a flat
					// window slightly negative.
					variance = 0
				}
			}
			std := math.Sqrt(variance)
			u := mean + bollingerNumStd*std
			l := mean - bollingerNumStd*std
			upper, lower = &u, &l
		}
		out[i] = resultRow(r,
			model.Field{Name: "upper_band", Value: upper},
			model.Field{Name: "lower_band", Value: lower},
		)
	}
	return out, nil
}
