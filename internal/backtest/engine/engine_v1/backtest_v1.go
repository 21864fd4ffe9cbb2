package engine

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	backtestengine "github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine/engine_v1/datasource"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/logger"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// BacktestEngineV1 is the file-in, folder-out wrapper around one simulation
// run: it loads the config and the base series, runs the simulation and
// writes the run result YAML plus the trades Parquet into the results
// folder.
type BacktestEngineV1 struct {
	config        BacktestConfigV1
	initialized   bool
	dataSource    datasource.DataSource
	resultsFolder string
	state         *BacktestState
	log           *logger.Logger
}

func NewBacktestEngineV1() backtestengine.Engine {
	log, err := logger.NewLogger()
	if err != nil {
		log = logger.NewNopLogger()
	}

	return &BacktestEngineV1{
		log: log,
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	parsed, err := ParseConfig(config)
	if err != nil {
		b.log.Error("Failed to parse config", zap.Error(err))

		return err
	}

	b.config = parsed
	b.initialized = true

	b.log.Debug("Backtest engine initialized",
		zap.Int("timeframes", len(parsed.Timeframes)),
	)

	return nil
}

// SetConfigPath implements engine.Engine.
func (b *BacktestEngineV1) SetConfigPath(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return b.Initialize(string(content))
}

// SetDataPath implements engine.Engine.
func (b *BacktestEngineV1) SetDataPath(path string) error {
	source, err := datasource.NewDataSource(":memory:", b.log)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNoDataFound, "failed to open data source", err)
	}

	if err := source.Initialize(path); err != nil {
		return err
	}

	b.dataSource = source

	return nil
}

// SetDataSource implements engine.Engine.
func (b *BacktestEngineV1) SetDataSource(dataSource datasource.DataSource) error {
	b.dataSource = dataSource

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder

	return nil
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, onProcessData backtestengine.OnProcessDataCallback) error {
	if err := b.preRunCheck(); err != nil {
		return err
	}

	if _, err := os.Stat(b.resultsFolder); err == nil {
		os.RemoveAll(b.resultsFolder)
	}

	if err := os.MkdirAll(b.resultsFolder, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to create results folder", err)
	}

	baseBars, err := b.dataSource.ReadAll()
	if err != nil {
		return err
	}

	b.log.Info("Loaded base series", zap.Int("bars", len(baseBars)))

	progress := func(current, total int) {
		if ctx.Err() != nil {
			return
		}

		if onProcessData != nil {
			onProcessData(current, total)
		}
	}

	result, err := RunSimulation(baseBars, &b.config, b.log, NewSimCaches(), progress)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return b.writeResults(result)
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	return b.config.GenerateSchemaJSON()
}

func (b *BacktestEngineV1) preRunCheck() error {
	if !b.initialized {
		b.log.Error("Engine not initialized")

		return errors.New(errors.ErrCodeInvalidConfiguration, "engine not initialized")
	}

	if b.dataSource == nil {
		b.log.Error("No data path set")

		return errors.New(errors.ErrCodeNoDataFound, "no data path set")
	}

	if b.resultsFolder == "" {
		b.log.Error("No results folder set")

		return errors.New(errors.ErrCodeInvalidConfiguration, "no results folder set")
	}

	return nil
}

func (b *BacktestEngineV1) writeResults(result types.RunResult) error {
	b.state = NewBacktestState(b.log)
	if b.state == nil {
		return errors.New(errors.ErrCodeStateFailed, "failed to open state database")
	}
	defer b.state.Close()

	if err := b.state.Initialize(); err != nil {
		return err
	}

	if err := b.state.RecordTrades(result.Trades); err != nil {
		return err
	}

	if err := b.state.Write(b.resultsFolder); err != nil {
		return err
	}

	resultPath := filepath.Join(b.resultsFolder, "result.yaml")
	if err := types.WriteRunResult(resultPath, result); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write run result", err)
	}

	b.logTradeStats()

	b.log.Info("Backtest finished",
		zap.String("result", resultPath),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("final_capital", result.FinalCapital),
	)

	return nil
}

// logTradeStats surfaces the SQL-side aggregates after a run. Failures here
// only cost log lines, the result files are already on disk.
func (b *BacktestEngineV1) logTradeStats() {
	stats, err := b.state.CalculateStats()
	if err != nil {
		b.log.Warn("Failed to calculate trade stats", zap.Error(err))

		return
	}

	if stats.TotalTrades == 0 {
		return
	}

	b.log.Info("Trade stats",
		zap.Int("total_trades", stats.TotalTrades),
		zap.Int("winning_trades", stats.WinningTrades),
		zap.Float64("win_rate", stats.WinRate),
		zap.Float64("total_pnl", stats.TotalPnL),
		zap.Float64("max_loss", stats.MaxLoss),
	)

	if holding, err := b.state.CalculateHoldingTime(); err == nil {
		b.log.Info("Holding time (minutes)",
			zap.Float64("min", holding.Min),
			zap.Float64("max", holding.Max),
			zap.Float64("avg", holding.Avg),
		)
	}

	breakdown, err := b.state.ExitReasonBreakdown()
	if err != nil {
		return
	}

	for _, stat := range breakdown {
		b.log.Info("Exit reason",
			zap.String("reason", stat.Reason),
			zap.Int("count", stat.Count),
			zap.Float64("pnl", stat.PnL),
		)
	}
}
