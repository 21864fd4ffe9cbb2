package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PerformanceSummary aggregates the outcome of one simulation run.
type PerformanceSummary struct {
	// Count of all closed trades.
	TotalTrades int `yaml:"total_trades"`
	// Count of trades with positive pnl.
	WinningTrades int `yaml:"winning_trades"`
	// Count of trades with zero or negative pnl.
	LosingTrades int `yaml:"losing_trades"`
	// Win rate in percent.
	WinRate float64 `yaml:"win_rate"`
	// Sum of all realized pnl after fees and funding.
	TotalPnL float64 `yaml:"total_pnl"`
	// Total return relative to the initial capital, in percent.
	TotalReturnPct float64 `yaml:"total_return_pct"`
	// Total fees paid across all trades.
	TotalFees float64 `yaml:"total_fees"`
	// Total funding debited across all trades.
	TotalFunding float64 `yaml:"total_funding"`
	// Primary pivot signals per day over the data span.
	SignalsPerDay float64 `yaml:"signals_per_day"`
	// Confirmed cascade signals per day over the data span.
	ConfirmedPerDay float64 `yaml:"confirmed_per_day"`
	// Data span in days.
	DataSpanDays float64 `yaml:"data_span_days"`
	// Whether the run ended in liquidation (capital floored at zero).
	Liquidated bool `yaml:"liquidated"`
}

// RunResult is the output of one backtest run: signal counts, the trade
// history and the final capital. Formatting is left to the caller.
type RunResult struct {
	ID               string             `yaml:"id"`
	Timestamp        time.Time          `yaml:"timestamp"`
	TotalSignals     int                `yaml:"total_signals"`
	ConfirmedSignals int                `yaml:"confirmed_signals"`
	ExecutedTrades   int                `yaml:"executed_trades"`
	InitialCapital   float64            `yaml:"initial_capital"`
	FinalCapital     float64            `yaml:"final_capital"`
	Summary          PerformanceSummary `yaml:"summary"`
	Trades           []*Trade           `yaml:"-"`
}

// WriteRunResult writes the run result (without the trade list) to a YAML
// file.
func WriteRunResult(path string, result RunResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run result to file: %w", err)
	}

	return nil
}
