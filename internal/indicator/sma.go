package indicator

import (
	"fmt"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
)

// computeSMA produces the simple moving average of close over a trailing
// window of Window observations. The first window-1 rows have no defined
// value.
func computeSMA(rows []model.OHLCRow, p Params) ([]model.ResultRow, error) {
	if err := requireWindow(p); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("sma_%d", p.Window)
	out := make([]model.ResultRow, len(rows))
	var sum float64
	for i, r := range rows {
		sum += r.Close
		if i >= p.Window {
			sum -= rows[i-p.Window].Close
		}
		var v *float64
		if i >= p.Window-1 {
			mean := sum / float64(p.Window)
			v = &mean
		}
		out[i] = resultRow(r, model.Field{Name: name, Value: v})
	}
	return out, nil
}
