package engine

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine/engine_v1/fees"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

type SimulationTestSuite struct {
	suite.Suite
	start time.Time
}

func TestSimulationSuite(t *testing.T) {
	suite.Run(t, new(SimulationTestSuite))
}

func (suite *SimulationTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// scenarioBars builds 100 one-minute bars forming twenty 5-minute buckets:
// eight flat buckets at 100, a spike bucket closing at 110, eight declining
// buckets of roughly 1.5% each, a drop bucket closing at 95 and two flat
// tail buckets. With a lookback of one and a 2% swing floor the 5-minute
// stream holds exactly one high pivot (110) and one low pivot (95).
func (suite *SimulationTestSuite) scenarioBars() []types.Bar {
	bucketCloses := []float64{
		100, 100, 100, 100, 100, 100, 100, 100,
		110,
		108.35, 106.7, 105.1, 103.6, 102.1, 100.6, 99.1, 97.6,
		95,
		95, 95,
	}

	var bars []types.Bar

	for b, close := range bucketCloses {
		for m := 0; m < 5; m++ {
			i := b*5 + m
			bars = append(bars, types.Bar{
				Time:   suite.start.Add(time.Duration(i+1) * time.Minute),
				Open:   close,
				High:   close,
				Low:    close,
				Close:  close,
				Volume: 1,
			})
		}
	}

	return bars
}

func (suite *SimulationTestSuite) scenarioConfig() *BacktestConfigV1 {
	cfg := &BacktestConfigV1{
		Timeframes: []TimeframeConfig{
			{Interval: "5m", Role: RolePrimary, Lookback: 1, MinSwingPct: 2},
		},
		Cascade: CascadeSettings{
			MinTimeframesRequired: 1,
		},
		Trade: TradeConfig{
			InitialCapital:       1000,
			TakeProfitPct:        2,
			StopLossPct:          5,
			Leverage:             1,
			FeeSchedule:          fees.ScheduleZero,
			MaxConcurrentTrades:  1,
			SizingMode:           SizingPercent,
			RiskPerTradePct:      100,
			FundingIntervalHours: 8,
		},
	}
	cfg.ApplyDefaults()
	cfg.Cascade.MinTimeframesRequired = 1

	suite.Require().NoError(cfg.Validate())

	return cfg
}

func (suite *SimulationTestSuite) TestEndToEndRun() {
	bars := suite.scenarioBars()
	cfg := suite.scenarioConfig()

	result, err := RunSimulation(bars, cfg, nil, NewSimCaches(), nil)
	suite.Require().NoError(err)

	// One high pivot at 110 and one low pivot at 95, both confirmed on the
	// tick after their window opened.
	suite.Equal(2, result.TotalSignals)
	suite.Equal(2, result.ConfirmedSignals)
	suite.Require().Len(result.Trades, 2)

	short := result.Trades[0]
	suite.Equal(types.SignalShort, short.Type)
	suite.InDelta(110.0, short.EntryPrice, 1e-9)
	suite.Equal(types.ExitTakeProfit, short.ExitReason)
	suite.InDelta(110*0.98, short.ExitPrice, 1e-9)
	suite.InDelta(20.0, short.PnL, 1e-6)

	long := result.Trades[1]
	suite.Equal(types.SignalLong, long.Type)
	suite.InDelta(95.0, long.EntryPrice, 1e-9)
	suite.Equal(types.ExitEndOfData, long.ExitReason)
	suite.InDelta(0.0, long.PnL, 1e-6)

	suite.InDelta(1020.0, result.FinalCapital, 1e-6)
	suite.Equal(2, result.Summary.TotalTrades)
	suite.Equal(1, result.Summary.WinningTrades)
	suite.InDelta(50.0, result.Summary.WinRate, 1e-9)
	suite.False(result.Summary.Liquidated)
}

func (suite *SimulationTestSuite) TestProgressCallback() {
	bars := suite.scenarioBars()
	cfg := suite.scenarioConfig()

	var last, total int

	_, err := RunSimulation(bars, cfg, nil, NewSimCaches(), func(current, t int) {
		last = current
		total = t
	})
	suite.Require().NoError(err)
	suite.Equal(len(bars), last)
	suite.Equal(len(bars), total)
}

func (suite *SimulationTestSuite) TestEmptyInputFails() {
	cfg := suite.scenarioConfig()

	_, err := RunSimulation(nil, cfg, nil, NewSimCaches(), nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoDataFound))
}

func (suite *SimulationTestSuite) TestTimeRangeFilter() {
	bars := suite.scenarioBars()
	cfg := suite.scenarioConfig()

	// Restrict the run to the flat head of the series: no swing clears the
	// filter, so no signals fire.
	cfg.EndTime = optional.Some(suite.start.Add(40 * time.Minute))

	result, err := RunSimulation(bars, cfg, nil, NewSimCaches(), nil)
	suite.Require().NoError(err)
	suite.Zero(result.TotalSignals)
	suite.Empty(result.Trades)
	suite.InDelta(1000.0, result.FinalCapital, 1e-9)
}

func (suite *SimulationTestSuite) TestRangeOutsideDataFails() {
	bars := suite.scenarioBars()
	cfg := suite.scenarioConfig()
	cfg.StartTime = optional.Some(suite.start.Add(24 * time.Hour))

	_, err := RunSimulation(bars, cfg, nil, NewSimCaches(), nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoDataFound))
}

func (suite *SimulationTestSuite) TestCachesReused() {
	bars := suite.scenarioBars()
	cfg := suite.scenarioConfig()
	caches := NewSimCaches()

	first, err := RunSimulation(bars, cfg, nil, caches, nil)
	suite.Require().NoError(err)

	second, err := RunSimulation(bars, cfg, nil, caches, nil)
	suite.Require().NoError(err)

	suite.Equal(first.TotalSignals, second.TotalSignals)
	suite.Equal(first.ConfirmedSignals, second.ConfirmedSignals)
	suite.InDelta(first.FinalCapital, second.FinalCapital, 1e-9)
	suite.Len(caches.bars, 1)
	suite.Len(caches.pivots, 1)
}
