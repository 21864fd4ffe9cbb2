package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/logger"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
)

type StateTestSuite struct {
	suite.Suite
	state *BacktestState
}

func TestStateSuite(t *testing.T) {
	suite.Run(t, new(StateTestSuite))
}

func (suite *StateTestSuite) SetupTest() {
	suite.state = NewBacktestState(logger.NewNopLogger())
	suite.Require().NotNil(suite.state)
	suite.Require().NoError(suite.state.Initialize())
}

func (suite *StateTestSuite) TearDownTest() {
	suite.state.Close()
}

func (suite *StateTestSuite) sampleTrades() []*types.Trade {
	entry := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	return []*types.Trade{
		{
			ID:         "t1",
			Type:       types.SignalLong,
			Timeframe:  "5m",
			Status:     types.TradeStatusClosed,
			EntryPrice: 100,
			EntryTime:  entry,
			TradeSize:  1000,
			Leverage:   1,
			ExitPrice:  102,
			ExitTime:   entry.Add(30 * time.Minute),
			ExitReason: types.ExitTakeProfit,
			PnL:        20,
		},
		{
			ID:         "t2",
			Type:       types.SignalShort,
			Timeframe:  "5m",
			Status:     types.TradeStatusClosed,
			EntryPrice: 110,
			EntryTime:  entry.Add(time.Hour),
			TradeSize:  1000,
			Leverage:   1,
			ExitPrice:  111.1,
			ExitTime:   entry.Add(90 * time.Minute),
			ExitReason: types.ExitStopLoss,
			PnL:        -10,
		},
		{
			ID:         "t3",
			Type:       types.SignalLong,
			Timeframe:  "5m",
			Status:     types.TradeStatusClosed,
			EntryPrice: 95,
			EntryTime:  entry.Add(2 * time.Hour),
			TradeSize:  1000,
			Leverage:   1,
			ExitPrice:  96.9,
			ExitTime:   entry.Add(3 * time.Hour),
			ExitReason: types.ExitTakeProfit,
			PnL:        20,
		},
	}
}

func (suite *StateTestSuite) TestRecordAndBreakdown() {
	suite.Require().NoError(suite.state.RecordTrades(suite.sampleTrades()))

	stats, err := suite.state.ExitReasonBreakdown()
	suite.Require().NoError(err)
	suite.Require().Len(stats, 2)

	suite.Equal(string(types.ExitTakeProfit), stats[0].Reason)
	suite.Equal(2, stats[0].Count)
	suite.InDelta(40.0, stats[0].PnL, 1e-9)

	suite.Equal(string(types.ExitStopLoss), stats[1].Reason)
	suite.Equal(1, stats[1].Count)
	suite.InDelta(-10.0, stats[1].PnL, 1e-9)
}

func (suite *StateTestSuite) TestCalculateStats() {
	suite.Require().NoError(suite.state.RecordTrades(suite.sampleTrades()))

	stats, err := suite.state.CalculateStats()
	suite.Require().NoError(err)
	suite.Equal(3, stats.TotalTrades)
	suite.Equal(2, stats.WinningTrades)
	suite.InDelta(66.666, stats.WinRate, 0.01)
	suite.InDelta(30.0, stats.TotalPnL, 1e-9)
	suite.InDelta(-10.0, stats.MaxLoss, 1e-9)
}

func (suite *StateTestSuite) TestHoldingTime() {
	suite.Require().NoError(suite.state.RecordTrades(suite.sampleTrades()))

	holding, err := suite.state.CalculateHoldingTime()
	suite.Require().NoError(err)
	suite.InDelta(30.0, holding.Min, 1e-6)
	suite.InDelta(60.0, holding.Max, 1e-6)
	suite.InDelta(40.0, holding.Avg, 1e-6)
}

func (suite *StateTestSuite) TestWriteParquet() {
	suite.Require().NoError(suite.state.RecordTrades(suite.sampleTrades()))

	dir := suite.T().TempDir()
	suite.Require().NoError(suite.state.Write(dir))

	info, err := os.Stat(filepath.Join(dir, "trades.parquet"))
	suite.Require().NoError(err)
	suite.Greater(info.Size(), int64(0))
}

func (suite *StateTestSuite) TestCleanupResets() {
	suite.Require().NoError(suite.state.RecordTrades(suite.sampleTrades()))
	suite.Require().NoError(suite.state.Cleanup())

	stats, err := suite.state.ExitReasonBreakdown()
	suite.Require().NoError(err)
	suite.Empty(stats)
}

func (suite *StateTestSuite) TestRecordNothing() {
	suite.NoError(suite.state.RecordTrades(nil))
}
