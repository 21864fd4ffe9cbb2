package engine

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/logger"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// pivotKey identifies one pivot detection result for reuse across runs that
// share a timeframe and detector settings.
type pivotKey struct {
	minutes     int
	lookback    int
	minSwingPct float64
	minLegBars  int
	mode        PriceMode
}

// SimCaches holds aggregation and pivot detection results keyed by their
// inputs. Sweep workers reuse one cache across hundreds of runs over the
// same base series; a single run can pass nil.
type SimCaches struct {
	bars   map[int][]types.Bar
	pivots map[pivotKey][]types.Pivot
}

// NewSimCaches builds an empty cache. Not safe for concurrent use; each
// worker owns its own.
func NewSimCaches() *SimCaches {
	return &SimCaches{
		bars:   make(map[int][]types.Bar),
		pivots: make(map[pivotKey][]types.Pivot),
	}
}

func (c *SimCaches) aggregated(baseBars []types.Bar, minutes int, log *logger.Logger) ([]types.Bar, error) {
	if minutes == 1 {
		return baseBars, nil
	}

	if c != nil {
		if bars, ok := c.bars[minutes]; ok {
			return bars, nil
		}
	}

	bars, err := Aggregate(baseBars, minutes, log)
	if err != nil {
		return nil, err
	}

	if c != nil {
		c.bars[minutes] = bars
	}

	return bars, nil
}

func (c *SimCaches) detected(bars []types.Bar, key pivotKey, cfg PivotConfig) []types.Pivot {
	if c != nil {
		if pivots, ok := c.pivots[key]; ok {
			return pivots
		}
	}

	pivots := DetectPivots(bars, cfg)

	if c != nil {
		c.pivots[key] = pivots
	}

	return pivots
}

// RunSimulation executes one full backtest over a one-minute base series:
// aggregate each configured timeframe, detect its pivots, then tick through
// the base bars driving funding, open-trade updates, cascade evaluation and
// window opening in that order. Window opening comes last so a window opened
// at tick T is first evaluated at T+1.
func RunSimulation(baseBars []types.Bar, cfg *BacktestConfigV1, log *logger.Logger, caches *SimCaches, onProgress func(current, total int)) (types.RunResult, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if len(baseBars) == 0 {
		return types.RunResult{}, errors.New(errors.ErrCodeNoDataFound, "no base bars to simulate")
	}

	baseBars = filterByRange(baseBars, cfg)
	if len(baseBars) == 0 {
		return types.RunResult{}, errors.New(errors.ErrCodeNoDataFound, "no base bars inside the configured time range")
	}

	pivotsByTimeframe := make(map[string][]types.Pivot, len(cfg.Timeframes))

	var primaryPivots []types.Pivot

	for _, tf := range cfg.Timeframes {
		minutes, err := tf.Minutes()
		if err != nil {
			return types.RunResult{}, errors.Wrapf(errors.ErrCodeInvalidTimeframe, err, "invalid interval %q", tf.Interval)
		}

		bars, err := caches.aggregated(baseBars, minutes, log)
		if err != nil {
			return types.RunResult{}, err
		}

		key := pivotKey{
			minutes:     minutes,
			lookback:    tf.Lookback,
			minSwingPct: tf.MinSwingPct,
			minLegBars:  tf.MinLegBars,
			mode:        cfg.PivotPriceMode,
		}

		pivots := caches.detected(bars, key, PivotConfig{
			Lookback:    tf.Lookback,
			MinSwingPct: tf.MinSwingPct,
			MinLegBars:  tf.MinLegBars,
			PriceMode:   cfg.PivotPriceMode,
		})

		stream := make([]types.Pivot, len(pivots))
		for i, pivot := range pivots {
			pivot.Timeframe = tf.Interval
			stream[i] = pivot
		}

		pivotsByTimeframe[tf.Interval] = stream

		if tf.Role == RolePrimary {
			primaryPivots = stream
		}

		log.Debug("timeframe prepared",
			zap.String("interval", tf.Interval),
			zap.Int("bars", len(bars)),
			zap.Int("pivots", len(stream)),
		)
	}

	cascade := NewCascadeEngine(cfg, pivotsByTimeframe)
	trading := NewTradeEngine(cfg.Trade, baseBars, log)

	primaryByTime := make(map[int64]types.Pivot, len(primaryPivots))
	for _, pivot := range primaryPivots {
		primaryByTime[pivot.Time.UnixMilli()] = pivot
	}

	totalSignals := 0
	confirmedSignals := 0
	total := len(baseBars)

	for i, bar := range baseBars {
		trading.ApplyFunding(bar.Time)
		trading.UpdateOpenTrades(bar)

		for _, confirmed := range cascade.Evaluate(bar.Time) {
			confirmedSignals++

			trading.OnConfirmedSignal(confirmed, bar.Time)
		}

		if pivot, ok := primaryByTime[bar.Time.UnixMilli()]; ok {
			totalSignals++

			cascade.OpenWindow(pivot, bar.Time)
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	trading.CloseAll(baseBars[len(baseBars)-1])

	result := types.RunResult{
		ID:               uuid.New().String(),
		Timestamp:        time.Now().UTC(),
		TotalSignals:     totalSignals,
		ConfirmedSignals: confirmedSignals,
		ExecutedTrades:   len(trading.ClosedTrades()),
		InitialCapital:   cfg.Trade.InitialCapital,
		FinalCapital:     trading.Capital(),
		Trades:           trading.ClosedTrades(),
	}

	result.Summary = summarize(result, trading, baseBars)

	return result, nil
}

// filterByRange restricts the base series to the configured optional start
// and end times. The bounds are inclusive.
func filterByRange(baseBars []types.Bar, cfg *BacktestConfigV1) []types.Bar {
	if cfg.StartTime.IsNone() && cfg.EndTime.IsNone() {
		return baseBars
	}

	filtered := make([]types.Bar, 0, len(baseBars))

	for _, bar := range baseBars {
		if cfg.StartTime.IsSome() && bar.Time.Before(cfg.StartTime.Unwrap()) {
			continue
		}

		if cfg.EndTime.IsSome() && bar.Time.After(cfg.EndTime.Unwrap()) {
			continue
		}

		filtered = append(filtered, bar)
	}

	return filtered
}

func summarize(result types.RunResult, trading *TradeEngine, baseBars []types.Bar) types.PerformanceSummary {
	summary := types.PerformanceSummary{
		TotalTrades: len(result.Trades),
		Liquidated:  trading.Liquidated(),
	}

	for _, trade := range result.Trades {
		if trade.PnL > 0 {
			summary.WinningTrades++
		} else {
			summary.LosingTrades++
		}

		summary.TotalPnL += trade.PnL
		summary.TotalFees += trade.Fees
		summary.TotalFunding += trade.TotalFunding()
	}

	if summary.TotalTrades > 0 {
		summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades) * 100
	}

	if result.InitialCapital > 0 {
		summary.TotalReturnPct = (result.FinalCapital - result.InitialCapital) / result.InitialCapital * 100
	}

	span := baseBars[len(baseBars)-1].Time.Sub(baseBars[0].Time)
	summary.DataSpanDays = span.Hours() / 24

	if summary.DataSpanDays > 0 {
		summary.SignalsPerDay = float64(result.TotalSignals) / summary.DataSpanDays
		summary.ConfirmedPerDay = float64(result.ConfirmedSignals) / summary.DataSpanDays
	}

	return summary
}
