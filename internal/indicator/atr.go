package indicator

import (
	"math"

	"github.com/JDkeyzl/getStocksData/internal/model"
)

// TrueRange returns the per-day true range series:
//
//	max(high-low, |high-prev_close|, |low-prev_close|)
//
// The first day has no previous close, so its true range is high-low.
func TrueRange(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		hl := bars[i].High - bars[i].Low
		if i == 0 {
			out[i] = hl
			continue
		}
		prevClose := bars[i-1].Close
		hc := math.Abs(bars[i].High - prevClose)
		lc := math.Abs(bars[i].Low - prevClose)
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR returns the Average True Range: the exponentially weighted mean of the
// true range over the given window, seeded by the first day's value.
func ATR(bars []model.Bar, window int) []float64 {
	return EWMMean(TrueRange(bars), window)
}
