package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine/engine_v1/fees"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/logger"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
)

// TradeEngine owns capital and every position of a run. It opens trades on
// confirmed signals, walks open trades forward on each one-minute close and
// settles PnL, fees and funding when a trade closes. Capital only changes at
// close time.
type TradeEngine struct {
	cfg      TradeConfig
	feeModel fees.FeeModel
	log      *logger.Logger
	bars     *barIndex

	capital    float64
	liquidated bool

	openTrades   []*types.Trade
	closedTrades []*types.Trade

	// Flip tracking. A run of confirmed signals opposing the open position
	// direction; any same-direction signal resets it.
	opposingStreak    int
	opposingDirection types.Signal

	fundingKey    int64
	fundingKeySet bool

	skippedEntries int
}

// NewTradeEngine builds the engine with the full starting capital. baseBars
// must be the one-minute series the simulation ticks over; entry fills are
// looked up against it.
func NewTradeEngine(cfg TradeConfig, baseBars []types.Bar, log *logger.Logger) *TradeEngine {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &TradeEngine{
		cfg:      cfg,
		feeModel: fees.GetFeeModel(cfg.FeeSchedule, cfg.FeeRatePct),
		log:      log,
		bars:     newBarIndex(baseBars),
		capital:  cfg.InitialCapital,
	}
}

// Capital returns the current capital. It reflects closed trades only.
func (e *TradeEngine) Capital() float64 {
	return e.capital
}

// Liquidated reports whether capital hit the zero floor.
func (e *TradeEngine) Liquidated() bool {
	return e.liquidated
}

// OpenTrades returns the currently open positions.
func (e *TradeEngine) OpenTrades() []*types.Trade {
	return e.openTrades
}

// ClosedTrades returns every settled trade in close order.
func (e *TradeEngine) ClosedTrades() []*types.Trade {
	return e.closedTrades
}

// SkippedEntries counts confirmed signals that produced no trade because no
// fill bar existed within the tolerance.
func (e *TradeEngine) SkippedEntries() int {
	return e.skippedEntries
}

// ApplyFunding accrues the periodic funding debit against every open trade
// when the tick crosses a funding interval boundary. Funding reduces the
// trade's net PnL at close; capital is not touched here.
func (e *TradeEngine) ApplyFunding(now time.Time) {
	if e.cfg.FundingRatePct <= 0 {
		return
	}

	intervalMs := int64(e.cfg.FundingIntervalHours) * 3_600_000
	key := now.UnixMilli() / intervalMs

	if !e.fundingKeySet {
		e.fundingKey = key
		e.fundingKeySet = true

		return
	}

	crossed := key - e.fundingKey
	if crossed <= 0 {
		return
	}

	e.fundingKey = key

	for _, trade := range e.openTrades {
		if trade.EntryTime.After(now) {
			continue
		}

		for i := int64(0); i < crossed; i++ {
			amount, _ := decimal.NewFromFloat(trade.TradeSize).
				Mul(decimal.NewFromFloat(e.cfg.FundingRatePct)).
				Div(decimal.NewFromInt(100)).Float64()

			trade.FundingCosts = append(trade.FundingCosts, types.FundingCharge{
				Time:   now,
				Amount: amount,
			})
		}
	}
}

// OnConfirmedSignal turns a confirmed cascade into a position, subject to the
// direction filter, the flip rule, capacity and capital. A signal that
// cannot be filled within the tolerance is dropped, not deferred.
func (e *TradeEngine) OnConfirmedSignal(signal ConfirmedSignal, now time.Time) {
	if e.liquidated {
		return
	}

	direction, tradable := e.filterDirection(signal.Window.PrimaryPivot.Signal)
	if !tradable {
		return
	}

	e.applyFlip(direction, signal, now)

	if len(e.openTrades) >= e.cfg.MaxConcurrentTrades {
		return
	}

	size := e.tradeSize()
	if size <= 0 {
		return
	}

	fillTime := signal.ExecutionTime.Add(time.Duration(e.cfg.EntryDelayMinutes) * time.Minute)

	fillBar, ok := e.bars.At(fillTime)
	if !ok {
		e.skippedEntries++
		e.log.Warn("no fill bar near execution time, skipping entry",
			zap.Time("execution_time", fillTime),
		)

		return
	}

	entry := e.slippedEntry(fillBar.Close, direction)

	trade := &types.Trade{
		ID:                 uuid.New().String(),
		Type:               direction,
		Timeframe:          signal.Window.PrimaryPivot.Timeframe,
		Status:             types.TradeStatusOpen,
		EntryPrice:         entry,
		OriginalEntryPrice: fillBar.Close,
		EntryTime:          fillBar.Time,
		TradeSize:          size,
		Leverage:           e.cfg.Leverage,
		BestPriceSeen:      entry,
		Pivot:              signal.Window.PrimaryPivot,
	}

	if direction == types.SignalLong {
		trade.TakeProfitPrice = entry * (1 + e.cfg.TakeProfitPct/100)
		trade.StopLossPrice = entry * (1 - e.cfg.StopLossPct/100)
	} else {
		trade.TakeProfitPrice = entry * (1 - e.cfg.TakeProfitPct/100)
		trade.StopLossPrice = entry * (1 + e.cfg.StopLossPct/100)
	}

	e.openTrades = append(e.openTrades, trade)
}

// filterDirection maps a pivot signal through the configured direction
// filter. The second return is false when the signal must be ignored.
func (e *TradeEngine) filterDirection(signal types.Signal) (types.Signal, bool) {
	switch e.cfg.Direction {
	case DirectionBuy:
		return types.SignalLong, signal == types.SignalLong
	case DirectionSell:
		return types.SignalShort, signal == types.SignalShort
	case DirectionAlternate:
		return signal.Opposite(), true
	default:
		return signal, true
	}
}

// applyFlip tracks consecutive signals opposing the open position direction
// and closes the opposing positions once the streak reaches the threshold.
func (e *TradeEngine) applyFlip(direction types.Signal, signal ConfirmedSignal, now time.Time) {
	if e.cfg.FlipThreshold <= 0 || len(e.openTrades) == 0 {
		return
	}

	opposing := false

	for _, trade := range e.openTrades {
		if trade.Type != direction {
			opposing = true

			break
		}
	}

	if !opposing {
		e.opposingStreak = 0

		return
	}

	if e.opposingDirection != direction {
		e.opposingDirection = direction
		e.opposingStreak = 0
	}

	e.opposingStreak++

	if e.opposingStreak < e.cfg.FlipThreshold {
		return
	}

	e.opposingStreak = 0

	fillTime := signal.ExecutionTime.Add(time.Duration(e.cfg.EntryDelayMinutes) * time.Minute)

	fillBar, ok := e.bars.At(fillTime)
	if !ok {
		return
	}

	remaining := e.openTrades[:0]

	for _, trade := range e.openTrades {
		if trade.Type == direction {
			remaining = append(remaining, trade)

			continue
		}

		e.closeTrade(trade, fillBar.Close, fillBar.Time, types.ExitFlip)
	}

	e.openTrades = remaining
}

// tradeSize computes the notional margin of a new trade per the sizing mode.
// Fixed sizing is capped by remaining capital; percent sizing is a share of
// it; minimum sizing raises the percent result to a floor.
func (e *TradeEngine) tradeSize() float64 {
	switch e.cfg.SizingMode {
	case SizingFixed:
		if e.cfg.AmountPerTrade < e.capital {
			return e.cfg.AmountPerTrade
		}

		return e.capital
	case SizingMinimum:
		size := e.capital * e.cfg.RiskPerTradePct / 100
		if size < e.cfg.MinimumTradeAmount {
			return e.cfg.MinimumTradeAmount
		}

		return size
	default:
		return e.capital * e.cfg.RiskPerTradePct / 100
	}
}

func (e *TradeEngine) slippedEntry(price float64, direction types.Signal) float64 {
	slip := e.cfg.EntrySlippagePct / 100
	if direction == types.SignalLong {
		return price * (1 + slip)
	}

	return price * (1 - slip)
}

// UpdateOpenTrades walks every open trade forward over one one-minute close:
// refresh the best price, arm and ratchet trailing levels, then check exits.
// Timeout preempts price exits; armed trailing levels replace their static
// counterparts.
func (e *TradeEngine) UpdateOpenTrades(bar types.Bar) {
	if len(e.openTrades) == 0 {
		return
	}

	remaining := e.openTrades[:0]

	for _, trade := range e.openTrades {
		if trade.EntryTime.After(bar.Time) {
			remaining = append(remaining, trade)

			continue
		}

		e.updateTrailing(trade, bar.Close)

		price, reason, exited := e.checkExit(trade, bar)
		if !exited {
			remaining = append(remaining, trade)

			continue
		}

		e.closeTrade(trade, price, bar.Time, reason)
	}

	e.openTrades = remaining
}

func (e *TradeEngine) updateTrailing(trade *types.Trade, close float64) {
	long := trade.IsLong()

	if long && close > trade.BestPriceSeen {
		trade.BestPriceSeen = close
	}

	if !long && close < trade.BestPriceSeen {
		trade.BestPriceSeen = close
	}

	profitPct := (trade.BestPriceSeen - trade.EntryPrice) / trade.EntryPrice * 100
	if !long {
		profitPct = -profitPct
	}

	if e.cfg.TrailingTakeProfit.Enabled && profitPct >= e.cfg.TrailingTakeProfit.TriggerPct {
		level := trailLevel(trade.BestPriceSeen, e.cfg.TrailingTakeProfit.DistancePct, long)

		if !trade.TrailingTakeProfitArmed || betterLevel(level, trade.TrailingTakeProfitPrice, long) {
			trade.TrailingTakeProfitPrice = level
		}

		trade.TrailingTakeProfitArmed = true
	}

	if e.cfg.TrailingStopLoss.Enabled && profitPct >= e.cfg.TrailingStopLoss.TriggerPct {
		level := trailLevel(trade.BestPriceSeen, e.cfg.TrailingStopLoss.DistancePct, long)

		if !trade.TrailingStopLossArmed || betterLevel(level, trade.TrailingStopLossPrice, long) {
			trade.TrailingStopLossPrice = level
		}

		trade.TrailingStopLossArmed = true
	}
}

// trailLevel is the exit level at distancePct behind the best price seen.
func trailLevel(best, distancePct float64, long bool) float64 {
	if long {
		return best * (1 - distancePct/100)
	}

	return best * (1 + distancePct/100)
}

// betterLevel reports whether a new trailing level locks in more profit than
// the current one. Levels ratchet, they never retreat.
func betterLevel(level, current float64, long bool) bool {
	if long {
		return level > current
	}

	return level < current
}

// checkExit evaluates the exit rules in priority order. Price-triggered
// exits fill at their level; the timeout fills at the current close.
func (e *TradeEngine) checkExit(trade *types.Trade, bar types.Bar) (float64, types.ExitReason, bool) {
	if e.cfg.MaxTradeDurationMinutes > 0 {
		age := bar.Time.Sub(trade.EntryTime)
		if age >= time.Duration(e.cfg.MaxTradeDurationMinutes)*time.Minute {
			return bar.Close, types.ExitTimeout, true
		}
	}

	long := trade.IsLong()
	close := bar.Close

	if trade.TrailingTakeProfitArmed && crossedAgainst(close, trade.TrailingTakeProfitPrice, long) {
		return trade.TrailingTakeProfitPrice, types.ExitTrailingTakeProfit, true
	}

	if trade.TrailingStopLossArmed && crossedAgainst(close, trade.TrailingStopLossPrice, long) {
		return trade.TrailingStopLossPrice, types.ExitTrailingStopLoss, true
	}

	if !trade.TrailingTakeProfitArmed && crossedFor(close, trade.TakeProfitPrice, long) {
		return trade.TakeProfitPrice, types.ExitTakeProfit, true
	}

	if !trade.TrailingStopLossArmed && crossedAgainst(close, trade.StopLossPrice, long) {
		return trade.StopLossPrice, types.ExitStopLoss, true
	}

	return 0, "", false
}

// crossedFor reports whether the close reached a profit-side level.
func crossedFor(close, level float64, long bool) bool {
	if long {
		return close >= level
	}

	return close <= level
}

// crossedAgainst reports whether the close reached a loss-side level.
func crossedAgainst(close, level float64, long bool) bool {
	if long {
		return close <= level
	}

	return close >= level
}

// CloseAll force-closes every remaining position at the final close. Called
// once when the data runs out.
func (e *TradeEngine) CloseAll(lastBar types.Bar) {
	for _, trade := range e.openTrades {
		e.closeTrade(trade, lastBar.Close, lastBar.Time, types.ExitEndOfData)
	}

	e.openTrades = nil
}

// closeTrade settles one trade: exit slippage at half the entry rate against
// the trader, gross PnL, round-trip fees on the leveraged notional, accrued
// funding, then the capital update with its zero floor.
func (e *TradeEngine) closeTrade(trade *types.Trade, price float64, t time.Time, reason types.ExitReason) {
	exitSlip := e.cfg.EntrySlippagePct / 2 / 100

	if trade.IsLong() {
		price *= 1 - exitSlip
	} else {
		price *= 1 + exitSlip
	}

	gross := trade.GrossPnL(price)
	tradeFees := e.feeModel.RoundTrip(trade.TradeSize * trade.Leverage)
	funding := trade.TotalFunding()

	net, _ := decimal.NewFromFloat(gross).
		Sub(decimal.NewFromFloat(tradeFees)).
		Sub(decimal.NewFromFloat(funding)).Float64()

	trade.Status = types.TradeStatusClosed
	trade.ExitPrice = price
	trade.ExitTime = t
	trade.ExitReason = reason
	trade.PnL = net
	trade.Fees = tradeFees

	capital, _ := decimal.NewFromFloat(e.capital).Add(decimal.NewFromFloat(net)).Float64()

	if capital <= 0 {
		capital = 0
		e.liquidated = true

		e.log.Warn("capital exhausted, run liquidated",
			zap.Time("time", t),
			zap.String("trade_id", trade.ID),
		)
	}

	e.capital = capital

	e.closedTrades = append(e.closedTrades, trade)
}
