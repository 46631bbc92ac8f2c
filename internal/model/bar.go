// Package model defines the core market data types shared across the system.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for trading dates ("2006-01-02").
const DateLayout = "2006-01-02"

// Bar represents one trading day of OHLCV data for a single instrument.
// Prices are positive floats as delivered by the provider; Volume may be
// approximated from the traded amount when the provider omits it.
// A Bar is immutable once loaded.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// DateString returns the bar date formatted as "2006-01-02".
func (b *Bar) DateString() string {
	return b.Date.Format(DateLayout)
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// ParseBar builds a Bar from provider string fields. The provider delivers all
// numerics as strings; volume may be empty, in which case it is approximated
// as amount/close. A parse failure on any field returns an error so the caller
// can drop the single record without aborting the series.
func ParseBar(date, open, high, low, closePx, volume, amount string) (Bar, error) {
	ts, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), time.UTC)
	if err != nil {
		return Bar{}, fmt.Errorf("bad date %q: %w", date, err)
	}

	o, err := parsePrice("open", open)
	if err != nil {
		return Bar{}, err
	}
	h, err := parsePrice("high", high)
	if err != nil {
		return Bar{}, err
	}
	l, err := parsePrice("low", low)
	if err != nil {
		return Bar{}, err
	}
	c, err := parsePrice("close", closePx)
	if err != nil {
		return Bar{}, err
	}

	v := 0.0
	if strings.TrimSpace(volume) != "" {
		v, err = strconv.ParseFloat(strings.TrimSpace(volume), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad volume %q: %w", volume, err)
		}
	} else if strings.TrimSpace(amount) != "" {
		// Provider omitted volume; approximate as traded amount / close.
		amt, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad amount %q: %w", amount, err)
		}
		v = amt / c
	}
	if v < 0 {
		return Bar{}, fmt.Errorf("negative volume %f on %s", v, date)
	}

	return Bar{Date: ts, Open: o, High: h, Low: l, Close: c, Volume: v}, nil
}

func parsePrice(field, s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", field, s, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("non-positive %s %f", field, f)
	}
	return f, nil
}

// ValidateSeries checks the invariants the signal pipeline depends on:
// ascending unique dates, positive prices, non-negative volume, high >= low.
// Returns an error naming the first offending bar.
func ValidateSeries(bars []Bar) error {
	for i := range bars {
		b := &bars[i]
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("bar %s: non-positive price", b.DateString())
		}
		if b.High < b.Low {
			return fmt.Errorf("bar %s: high %f below low %f", b.DateString(), b.High, b.Low)
		}
		if b.Volume < 0 {
			return fmt.Errorf("bar %s: negative volume", b.DateString())
		}
		if i > 0 {
			prev := &bars[i-1]
			if !b.Date.After(prev.Date) {
				return fmt.Errorf("bar %s: date not after %s (series must be ascending with unique dates)",
					b.DateString(), prev.DateString())
			}
		}
	}
	return nil
}
