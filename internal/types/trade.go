package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of a simulated position. A trade moves
// from open to closed exactly once; after closing it is append-only history.
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

// ExitReason records which rule closed a trade. Exactly one reason is ever
// set per trade.
type ExitReason string

const (
	ExitTakeProfit         ExitReason = "take_profit"
	ExitStopLoss           ExitReason = "stop_loss"
	ExitTrailingTakeProfit ExitReason = "trailing_take_profit"
	ExitTrailingStopLoss   ExitReason = "trailing_stop_loss"
	ExitTimeout            ExitReason = "timeout"
	ExitFlip               ExitReason = "flip"
	ExitEndOfData          ExitReason = "end_of_data"
)

// FundingCharge is one periodic funding debit accrued while a trade is open.
type FundingCharge struct {
	Time   time.Time `csv:"time"`
	Amount float64   `csv:"amount"`
}

// Trade is a simulated position opened on a confirmed cascade signal.
// Mutable while open, frozen after close.
type Trade struct {
	ID        string      `csv:"id"`
	Type      Signal      `csv:"type"`
	Timeframe string      `csv:"timeframe"`
	Status    TradeStatus `csv:"status"`

	EntryPrice         float64   `csv:"entry_price"`
	OriginalEntryPrice float64   `csv:"original_entry_price"`
	EntryTime          time.Time `csv:"entry_time"`
	TradeSize          float64   `csv:"trade_size"`
	Leverage           float64   `csv:"leverage"`

	TakeProfitPrice float64 `csv:"take_profit_price"`
	StopLossPrice   float64 `csv:"stop_loss_price"`

	// Trailing state. Armed levels ratchet toward BestPriceSeen and never
	// retreat; once armed they replace the corresponding static level.
	BestPriceSeen            float64 `csv:"best_price_seen"`
	TrailingTakeProfitArmed  bool    `csv:"trailing_take_profit_armed"`
	TrailingTakeProfitPrice  float64 `csv:"trailing_take_profit_price"`
	TrailingStopLossArmed    bool    `csv:"trailing_stop_loss_armed"`
	TrailingStopLossPrice    float64 `csv:"trailing_stop_loss_price"`

	ExitPrice  float64    `csv:"exit_price"`
	ExitTime   time.Time  `csv:"exit_time"`
	ExitReason ExitReason `csv:"exit_reason"`

	PnL          float64         `csv:"pnl"`
	Fees         float64         `csv:"fees"`
	FundingCosts []FundingCharge `csv:"-"`

	Pivot Pivot `csv:"-"`
}

// IsLong reports whether the trade profits from rising prices.
func (t *Trade) IsLong() bool {
	return t.Type == SignalLong
}

// GrossPnL computes (exit-entry)/entry * direction * size * leverage using
// decimal arithmetic for the final combination.
func (t *Trade) GrossPnL(exitPrice float64) float64 {
	change := exitPrice - t.EntryPrice
	if !t.IsLong() {
		change = -change
	}

	changeDec := decimal.NewFromFloat(change).Div(decimal.NewFromFloat(t.EntryPrice))
	notional := decimal.NewFromFloat(t.TradeSize).Mul(decimal.NewFromFloat(t.Leverage))
	result, _ := changeDec.Mul(notional).Float64()

	return result
}

// TotalFunding sums the accrued funding debits.
func (t *Trade) TotalFunding() float64 {
	total := decimal.Zero
	for _, charge := range t.FundingCosts {
		total = total.Add(decimal.NewFromFloat(charge.Amount))
	}

	result, _ := total.Float64()

	return result
}
