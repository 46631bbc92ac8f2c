// Package indicator computes derived numeric series (moving averages, ATR,
// Donchian channels, volatility regime, trend state) from raw daily bars.
//
// All functions are pure: rolling windows look backward only, and positions
// before a window's warmup carry NaN rather than partial values. Downstream
// consumers must treat NaN as "condition false": in Go every comparison
// against NaN already evaluates to false, so gating logic needs no special
// casing.
package indicator

import (
	"math"
	"sort"
)

// Defined reports whether an indicator value is usable (not NaN/Inf).
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// RollingMean returns the simple moving average over a trailing window
// (inclusive of the current position). Positions before window-1 are NaN.
func RollingMean(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// RollingMax returns the trailing-window maximum, inclusive of the current
// position. Positions before window-1 are NaN.
func RollingMax(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	for i := window - 1; i < len(xs); i++ {
		m := xs[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if xs[j] > m {
				m = xs[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMin returns the trailing-window minimum, inclusive of the current
// position. Positions before window-1 are NaN.
func RollingMin(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	for i := window - 1; i < len(xs); i++ {
		m := xs[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if xs[j] < m {
				m = xs[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMedian returns the trailing-window median, inclusive of the current
// position. Positions before window-1 are NaN. Even windows average the two
// middle values.
func RollingMedian(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	buf := make([]float64, window)
	for i := window - 1; i < len(xs); i++ {
		copy(buf, xs[i-window+1:i+1])
		sort.Float64s(buf)
		if window%2 == 1 {
			out[i] = buf[window/2]
		} else {
			out[i] = (buf[window/2-1] + buf[window/2]) / 2
		}
	}
	return out
}

// EWMMean returns the exponentially weighted mean with the smoothing factor
// derived from a span: alpha = 2/(span+1), seeded with the first value
// (recursive form, no adjustment).
func EWMMean(xs []float64, span int) []float64 {
	out := nanSlice(len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}
