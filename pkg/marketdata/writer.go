package marketdata

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

var barHeader = []string{"timestamp_ms", "open", "high", "low", "close", "volume"}

// CSVBarWriter streams downloaded bars into the canonical CSV layout the
// backtest data source reads: millisecond closing timestamps and float
// prices.
type CSVBarWriter struct {
	w      *csv.Writer
	closer io.Closer
	wrote  bool
}

// NewCSVBarWriter wraps a writer. When it also implements io.Closer, Close
// forwards to it.
func NewCSVBarWriter(w io.Writer) *CSVBarWriter {
	writer := &CSVBarWriter{w: csv.NewWriter(w)}

	if closer, ok := w.(io.Closer); ok {
		writer.closer = closer
	}

	return writer
}

// WriteBars implements BarWriter. The header goes out before the first
// batch.
func (c *CSVBarWriter) WriteBars(bars []types.Bar) error {
	if !c.wrote {
		if err := c.w.Write(barHeader); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write csv header", err)
		}

		c.wrote = true
	}

	for _, bar := range bars {
		row := []string{
			strconv.FormatInt(bar.Time.UnixMilli(), 10),
			strconv.FormatFloat(bar.Open, 'f', -1, 64),
			strconv.FormatFloat(bar.High, 'f', -1, 64),
			strconv.FormatFloat(bar.Low, 'f', -1, 64),
			strconv.FormatFloat(bar.Close, 'f', -1, 64),
			strconv.FormatFloat(bar.Volume, 'f', -1, 64),
		}

		if err := c.w.Write(row); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write bar row", err)
		}
	}

	return nil
}

// Close implements BarWriter.
func (c *CSVBarWriter) Close() error {
	c.w.Flush()

	if err := c.w.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to flush csv", err)
	}

	if c.closer != nil {
		return c.closer.Close()
	}

	return nil
}
