package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine/engine_v1/fees"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

const validConfig = `
pivot_price_mode: close
timeframes:
  - interval: 5m
    role: primary
    lookback: 1
    min_swing_pct: 2
  - interval: 15m
    role: secondary
    lookback: 2
cascade:
  min_timeframes_required: 2
  require_primary: true
trade:
  initial_capital: 1000
  take_profit_pct: 2
  stop_loss_pct: 1
  leverage: 3
start_time: 2024-01-01T00:00:00Z
end_time: 2024-02-01T00:00:00Z
`

func (suite *ConfigTestSuite) TestParseValidConfig() {
	cfg, err := ParseConfig(validConfig)
	suite.Require().NoError(err)

	suite.Len(cfg.Timeframes, 2)
	suite.Equal("5m", cfg.PrimaryTimeframe().Interval)
	suite.Equal(1, cfg.PrimaryTimeframe().Lookback)
	suite.True(cfg.Cascade.RequirePrimary)
	suite.InDelta(3.0, cfg.Trade.Leverage, 1e-9)

	suite.True(cfg.StartTime.IsSome())
	suite.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartTime.Unwrap())
	suite.True(cfg.EndTime.IsSome())
}

func (suite *ConfigTestSuite) TestDefaultsApplied() {
	cfg, err := ParseConfig(`
timeframes:
  - interval: 5m
    role: primary
trade:
  initial_capital: 1000
  take_profit_pct: 2
  stop_loss_pct: 1
  leverage: 1
`)
	suite.Require().NoError(err)

	suite.Equal(PriceModeClose, cfg.PivotPriceMode)
	suite.Equal(2, cfg.Cascade.MinTimeframesRequired)
	suite.Equal(DirectionBoth, cfg.Trade.Direction)
	suite.Equal(SizingPercent, cfg.Trade.SizingMode)
	suite.InDelta(100.0, cfg.Trade.RiskPerTradePct, 1e-9)
	suite.Equal(1, cfg.Trade.MaxConcurrentTrades)
	suite.Equal(fees.SchedulePercent, cfg.Trade.FeeSchedule)
	suite.Equal(8, cfg.Trade.FundingIntervalHours)
	suite.InDelta(1.0, cfg.Timeframes[0].Weight, 1e-9)
	suite.True(cfg.StartTime.IsNone())
}

func (suite *ConfigTestSuite) TestNoPrimaryTimeframe() {
	_, err := ParseConfig(`
timeframes:
  - interval: 5m
    role: secondary
trade:
  initial_capital: 1000
  take_profit_pct: 2
  stop_loss_pct: 1
  leverage: 1
`)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoPrimaryTimeframe))
}

func (suite *ConfigTestSuite) TestMultiplePrimariesRejected() {
	_, err := ParseConfig(`
timeframes:
  - interval: 5m
    role: primary
  - interval: 15m
    role: primary
trade:
  initial_capital: 1000
  take_profit_pct: 2
  stop_loss_pct: 1
  leverage: 1
`)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoPrimaryTimeframe))
}

func (suite *ConfigTestSuite) TestInvalidIntervalRejected() {
	_, err := ParseConfig(`
timeframes:
  - interval: banana
    role: primary
trade:
  initial_capital: 1000
  take_profit_pct: 2
  stop_loss_pct: 1
  leverage: 1
`)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimeframe))
}

func (suite *ConfigTestSuite) TestInvalidTradeValuesRejected() {
	_, err := ParseConfig(`
timeframes:
  - interval: 5m
    role: primary
trade:
  initial_capital: 0
  take_profit_pct: 2
  stop_loss_pct: 1
  leverage: 1
`)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestMalformedYAML() {
	_, err := ParseConfig(`{{not yaml`)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestGenerateSchema() {
	cfg, err := ParseConfig(validConfig)
	suite.Require().NoError(err)

	schemaJSON, err := cfg.GenerateSchemaJSON()
	suite.Require().NoError(err)
	suite.Contains(schemaJSON, "take_profit_pct")
	suite.Contains(schemaJSON, "min_timeframes_required")
	suite.Contains(schemaJSON, "date-time")
}
