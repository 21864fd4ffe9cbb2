package types

import "time"

// PivotType marks which side of the price range a pivot sits on.
type PivotType string

const (
	PivotHigh PivotType = "high"
	PivotLow  PivotType = "low"
)

// Signal is the trade direction implied by a pivot: a high pivot signals
// short, a low pivot signals long.
type Signal string

const (
	SignalLong  Signal = "long"
	SignalShort Signal = "short"
)

// Opposite returns the inverted signal.
func (s Signal) Opposite() Signal {
	if s == SignalLong {
		return SignalShort
	}

	return SignalLong
}

// Pivot is a local price extremum qualifying as a potential reversal point.
// Pivots are immutable and time-ordered within one timeframe's stream.
type Pivot struct {
	Type      PivotType `csv:"type"`
	Price     float64   `csv:"price"`
	Time      time.Time `csv:"time"`
	BarIndex  int       `csv:"bar_index"`
	Signal    Signal    `csv:"signal"`
	SwingPct  float64   `csv:"swing_pct"`
	Timeframe string    `csv:"timeframe"`
}
