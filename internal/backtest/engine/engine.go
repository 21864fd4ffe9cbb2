package engine

import (
	"context"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine/engine_v1/datasource"
)

// OnProcessDataCallback is called for each base bar processed.
type OnProcessDataCallback func(current int, total int)

type Engine interface {
	// Initialize the engine with the given YAML configuration content.
	Initialize(config string) error
	// SetConfigPath loads the configuration from a file.
	SetConfigPath(path string) error
	// SetDataPath sets the path to the one-minute bar file. CSV and Parquet
	// are supported.
	SetDataPath(path string) error
	// SetDataSource sets the data source for the engine directly.
	SetDataSource(dataSource datasource.DataSource) error
	// SetResultsFolder sets the output directory for run results.
	SetResultsFolder(folder string) error
	// Run executes the backtest. The context can cancel the run between
	// bars; the optional callback reports progress.
	Run(ctx context.Context, onProcessData OnProcessDataCallback) error
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
