package datasource

import (
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
)

// DataSource loads the one-minute base series a backtest runs over.
type DataSource interface {
	// Initialize points the data source at a data file. CSV and Parquet are
	// supported, selected by extension.
	Initialize(path string) error
	// ReadAll returns the full base series in ascending time order.
	// Duplicate timestamps keep the first-seen row.
	ReadAll() ([]types.Bar, error)
	// Count returns the number of rows in the data source.
	Count() (int, error)
	// Close closes the data source and releases any resources.
	Close() error
}
