package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/logger"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// BacktestState records closed trades into an in-memory duckdb database so
// results can be queried with SQL and exported to Parquet.
type BacktestState struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

func NewBacktestState(logger *logger.Logger) *BacktestState {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return nil
	}

	return &BacktestState{
		logger: logger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Initialize creates the trades table.
func (b *BacktestState) Initialize() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			type TEXT,
			timeframe TEXT,
			entry_price DOUBLE,
			original_entry_price DOUBLE,
			entry_time TIMESTAMP,
			trade_size DOUBLE,
			leverage DOUBLE,
			exit_price DOUBLE,
			exit_time TIMESTAMP,
			exit_reason TEXT,
			pnl DOUBLE,
			fees DOUBLE,
			funding DOUBLE,
			pivot_price DOUBLE,
			pivot_swing_pct DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateFailed, "failed to create trades table", err)
	}

	return nil
}

// RecordTrades inserts the closed trades of a run in a single transaction.
func (b *BacktestState) RecordTrades(trades []*types.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := b.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateFailed, "failed to begin transaction", err)
	}

	for _, trade := range trades {
		insertQuery := b.sq.
			Insert("trades").
			Columns(
				"id", "type", "timeframe", "entry_price", "original_entry_price",
				"entry_time", "trade_size", "leverage", "exit_price", "exit_time",
				"exit_reason", "pnl", "fees", "funding", "pivot_price", "pivot_swing_pct",
			).
			Values(
				trade.ID, trade.Type, trade.Timeframe, trade.EntryPrice, trade.OriginalEntryPrice,
				trade.EntryTime, trade.TradeSize, trade.Leverage, trade.ExitPrice, trade.ExitTime,
				trade.ExitReason, trade.PnL, trade.Fees, trade.TotalFunding(),
				trade.Pivot.Price, trade.Pivot.SwingPct,
			).
			RunWith(tx)

		if _, err := insertQuery.Exec(); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrCodeStateFailed, "failed to insert trade", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStateFailed, "failed to commit transaction", err)
	}

	return nil
}

// ExitReasonStat is the per-exit-reason breakdown of closed trades.
type ExitReasonStat struct {
	Reason string
	Count  int
	PnL    float64
}

// ExitReasonBreakdown groups closed trades by exit reason.
func (b *BacktestState) ExitReasonBreakdown() ([]ExitReasonStat, error) {
	query := b.sq.
		Select("exit_reason", "COUNT(*)", "COALESCE(SUM(pnl), 0)").
		From("trades").
		GroupBy("exit_reason").
		OrderBy("COUNT(*) DESC").
		RunWith(b.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query exit reasons", err)
	}
	defer rows.Close()

	var stats []ExitReasonStat

	for rows.Next() {
		var stat ExitReasonStat
		if err := rows.Scan(&stat.Reason, &stat.Count, &stat.PnL); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan exit reason row", err)
		}

		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// TradeStats is the SQL-side aggregate over the recorded trades.
type TradeStats struct {
	TotalTrades   int
	WinningTrades int
	WinRate       float64
	TotalPnL      float64
	MaxLoss       float64
}

// CalculateStats computes win rate and PnL totals with a single query.
func (b *BacktestState) CalculateStats() (TradeStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(pnl), 0),
			COALESCE(MIN(pnl), 0)
		FROM trades
	`

	var stats TradeStats
	if err := b.db.QueryRow(query).Scan(&stats.TotalTrades, &stats.WinningTrades, &stats.TotalPnL, &stats.MaxLoss); err != nil {
		return TradeStats{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to calculate trade stats", err)
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	}

	return stats, nil
}

// HoldingTime is the min/max/avg trade duration in minutes.
type HoldingTime struct {
	Min float64
	Max float64
	Avg float64
}

// CalculateHoldingTime computes trade durations with SQL.
func (b *BacktestState) CalculateHoldingTime() (HoldingTime, error) {
	// Raw SQL, Squirrel has no EXTRACT support.
	query := `
		SELECT
			COALESCE(MIN(EXTRACT(EPOCH FROM (exit_time - entry_time)) / 60), 0),
			COALESCE(MAX(EXTRACT(EPOCH FROM (exit_time - entry_time)) / 60), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (exit_time - entry_time)) / 60), 0)
		FROM trades
	`

	var holding HoldingTime
	if err := b.db.QueryRow(query).Scan(&holding.Min, &holding.Max, &holding.Avg); err != nil {
		return HoldingTime{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to calculate holding time", err)
	}

	return holding, nil
}

// Write exports the trades table to a Parquet file in the given directory.
func (b *BacktestState) Write(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to create directory", err)
	}

	// Raw SQL, Squirrel doesn't support COPY.
	tradesPath := filepath.Join(path, "trades.parquet")
	if _, err := b.db.Exec(fmt.Sprintf(`COPY trades TO '%s' (FORMAT PARQUET)`, tradesPath)); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to export trades to Parquet", err)
	}

	b.logger.Info("Exported trades to Parquet",
		zap.String("trades", tradesPath),
	)

	return nil
}

// Cleanup resets the database state.
func (b *BacktestState) Cleanup() error {
	if _, err := b.db.Exec(`DROP TABLE IF EXISTS trades`); err != nil {
		return errors.Wrap(errors.ErrCodeStateFailed, "failed to cleanup tables", err)
	}

	return b.Initialize()
}

// Close closes the underlying database.
func (b *BacktestState) Close() error {
	return b.db.Close()
}
