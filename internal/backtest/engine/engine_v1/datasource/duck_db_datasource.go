package datasource

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/logger"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// DuckDBDataSource loads bar files through duckdb. CSV and Parquet are read
// with the native scanners, so large files never pass through Go row by row
// until ReadAll.
type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDataSource creates a new DuckDB data source instance. The path
// parameter is the database location; use :memory: for backtests.
func NewDataSource(path string, logger *logger.Logger) (DataSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	return &DuckDBDataSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements DataSource. The bar file becomes a view named bars;
// re-initializing replaces it.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("Initializing DuckDB data source", zap.String("path", path))

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS bars;`); err != nil {
		return errors.Wrap(errors.ErrCodeNoDataFound, "failed to drop existing view", err)
	}

	var reader string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		reader = fmt.Sprintf(`read_csv_auto('%s')`, path)
	case ".parquet":
		reader = fmt.Sprintf(`read_parquet('%s')`, path)
	default:
		return errors.Newf(errors.ErrCodeNoDataFound, "unsupported data file extension %q", filepath.Ext(path))
	}

	// Raw SQL, Squirrel doesn't support CREATE VIEW.
	if _, err := d.db.Exec(fmt.Sprintf(`CREATE VIEW bars AS SELECT * FROM %s;`, reader)); err != nil {
		return errors.Wrapf(errors.ErrCodeNoDataFound, err, "failed to read data file %s", path)
	}

	return nil
}

// ReadAll implements DataSource. Rows come back ordered by timestamp;
// duplicate timestamps keep the first-seen row with a warning.
func (d *DuckDBDataSource) ReadAll() ([]types.Bar, error) {
	query := d.sq.
		Select("timestamp_ms", "open", "high", "low", "close", "volume").
		From("bars").
		OrderBy("timestamp_ms ASC").
		RunWith(d.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err)
	}
	defer rows.Close()

	var bars []types.Bar

	prevMs := int64(-1)

	for rows.Next() {
		var (
			ms  int64
			bar types.Bar
		)

		if err := rows.Scan(&ms, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar row", err)
		}

		if ms == prevMs {
			d.logger.Warn("duplicate bar timestamp in data file, keeping first",
				zap.Int64("timestamp_ms", ms),
			)

			continue
		}

		prevMs = ms

		bar.Time = msToTime(ms)
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read bar rows", err)
	}

	return bars, nil
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count() (int, error) {
	var count int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM bars`).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}
