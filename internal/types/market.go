package types

import (
	"fmt"
	"time"
)

// Bar is one OHLCV record for a fixed time bucket. Time is the bar's closing
// boundary (the exclusive upper bound of the interval it summarizes), not its
// opening time. Bars are immutable once produced and strictly time-ordered
// within a series.
type Bar struct {
	Time   time.Time `csv:"time"`
	Open   float64   `csv:"open"`
	High   float64   `csv:"high"`
	Low    float64   `csv:"low"`
	Close  float64   `csv:"close"`
	Volume float64   `csv:"volume"`
}

// Validate checks the per-bar invariants: low <= open,close <= high and a
// non-negative volume.
func (b Bar) Validate() error {
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("bar at %s violates low <= open,close <= high (o=%f h=%f l=%f c=%f)",
			b.Time.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close)
	}

	if b.Volume < 0 {
		return fmt.Errorf("bar at %s has negative volume %f", b.Time.Format(time.RFC3339), b.Volume)
	}

	return nil
}
