package sweep

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// ResultWriter receives sweep outcomes one row at a time.
type ResultWriter interface {
	WriteHeader() error
	WriteOutcome(outcome RunOutcome) error
	Flush() error
}

var csvHeader = []string{
	"take_profit_pct",
	"stop_loss_pct",
	"leverage",
	"primary_lookback",
	"sizing_mode",
	"timeframes",
	"total_signals",
	"confirmed_signals",
	"total_trades",
	"win_rate",
	"total_pnl",
	"final_capital",
	"liquidated",
	"error",
}

// CSVResultWriter streams sweep outcomes as CSV rows. Failed cells keep
// their parameter columns and carry the error message in the last column.
type CSVResultWriter struct {
	w *csv.Writer
}

func NewCSVResultWriter(w io.Writer) *CSVResultWriter {
	return &CSVResultWriter{w: csv.NewWriter(w)}
}

// WriteHeader implements ResultWriter.
func (c *CSVResultWriter) WriteHeader() error {
	if err := c.w.Write(csvHeader); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write csv header", err)
	}

	return nil
}

// WriteOutcome implements ResultWriter.
func (c *CSVResultWriter) WriteOutcome(outcome RunOutcome) error {
	cfg := outcome.Config

	row := []string{
		formatFloat(cfg.Trade.TakeProfitPct),
		formatFloat(cfg.Trade.StopLossPct),
		formatFloat(cfg.Trade.Leverage),
		strconv.Itoa(cfg.PrimaryTimeframe().Lookback),
		string(cfg.Trade.SizingMode),
		describeTimeframes(cfg),
	}

	if outcome.Err != nil {
		row = append(row, "", "", "", "", "", "", "", outcome.Err.Error())
	} else {
		result := outcome.Result
		row = append(row,
			strconv.Itoa(result.TotalSignals),
			strconv.Itoa(result.ConfirmedSignals),
			strconv.Itoa(result.Summary.TotalTrades),
			formatFloat(result.Summary.WinRate),
			formatFloat(result.Summary.TotalPnL),
			formatFloat(result.FinalCapital),
			strconv.FormatBool(result.Summary.Liquidated),
			"",
		)
	}

	if err := c.w.Write(row); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write csv row", err)
	}

	return nil
}

// Flush implements ResultWriter.
func (c *CSVResultWriter) Flush() error {
	c.w.Flush()

	if err := c.w.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to flush csv", err)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
