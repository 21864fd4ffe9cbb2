package engine

import (
	"math"

	"go.uber.org/zap"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/logger"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// Aggregate folds one-minute bars into targetMinutes buckets in a single
// pass. A base bar belongs to the bucket whose closing boundary is the
// smallest multiple of targetMinutes that is >= the bar's own closing time.
// Only complete buckets are emitted: a bucket must hold exactly
// targetMinutes base bars, so a partial trailing bucket or a bucket with
// gaps is dropped rather than gap-filled.
//
// Within a bucket open is the first bar's open, close the last bar's close,
// high/low the extremes and volume the sum. Output is ascending by time.
//
// Duplicate base timestamps keep the first-seen record and log a warning;
// out-of-order input is an error.
func Aggregate(baseBars []types.Bar, targetMinutes int, log *logger.Logger) ([]types.Bar, error) {
	if targetMinutes <= 0 {
		return nil, errors.Newf(errors.ErrCodeAggregationFailed, "target duration must be positive, got %d", targetMinutes)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	intervalMs := int64(targetMinutes) * 60_000

	var (
		aggregated []types.Bar
		current    types.Bar
		currentEnd int64
		count      int
	)

	prevTime := int64(math.MinInt64)

	flush := func() {
		if count == targetMinutes {
			aggregated = append(aggregated, current)
		}
	}

	for _, bar := range baseBars {
		t := bar.Time.UnixMilli()

		if t == prevTime {
			log.Warn("duplicate base bar timestamp, keeping first",
				zap.Time("time", bar.Time),
			)

			continue
		}

		if t < prevTime {
			return nil, errors.Newf(errors.ErrCodeUnorderedSeries,
				"base bars not in ascending time order at %s", bar.Time)
		}

		prevTime = t

		// Smallest multiple of the interval >= the bar's closing time.
		bucketEnd := ((t + intervalMs - 1) / intervalMs) * intervalMs

		if bucketEnd != currentEnd {
			flush()

			currentEnd = bucketEnd
			count = 0
			current = types.Bar{Time: msToTime(bucketEnd)}
		}

		if count == 0 {
			current.Open = bar.Open
			current.High = bar.High
			current.Low = bar.Low
		} else {
			if bar.High > current.High {
				current.High = bar.High
			}

			if bar.Low < current.Low {
				current.Low = bar.Low
			}
		}

		current.Close = bar.Close
		current.Volume += bar.Volume
		count++
	}

	flush()

	return aggregated, nil
}
