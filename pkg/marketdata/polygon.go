package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// polygonPageSize is the aggregate page size per day request.
const polygonPageSize = 50000

// PolygonProvider downloads one-minute aggregates day by day through the
// Polygon REST iterator.
type PolygonProvider struct {
	client *polygon.Client
}

func NewPolygonProvider(apiKey string) *PolygonProvider {
	return &PolygonProvider{
		client: polygon.New(apiKey),
	}
}

// Download implements Provider. Polygon stamps aggregates with their window
// start, so one minute is added to land on the closing boundary.
func (p *PolygonProvider) Download(ctx context.Context, symbol string, start, end time.Time, writer BarWriter) (int, error) {
	total := 0

	for date := start; date.Before(end); date = date.AddDate(0, 0, 1) {
		dayEnd := date.Add(24 * time.Hour)
		if dayEnd.After(end) {
			dayEnd = end
		}

		params := models.ListAggsParams{
			Ticker:     symbol,
			From:       models.Millis(date),
			To:         models.Millis(dayEnd.Add(-time.Millisecond)),
			Multiplier: 1,
			Timespan:   models.Minute,
		}
		params = *params.WithLimit(polygonPageSize).WithOrder(models.Asc)

		iter := p.client.ListAggs(ctx, &params)

		var bars []types.Bar

		for iter.Next() {
			agg := iter.Item()

			bars = append(bars, types.Bar{
				Time:   time.Time(agg.Timestamp).Add(time.Minute).UTC(),
				Open:   agg.Open,
				High:   agg.High,
				Low:    agg.Low,
				Close:  agg.Close,
				Volume: agg.Volume,
			})
		}

		if err := iter.Err(); err != nil {
			return total, errors.Wrapf(errors.ErrCodeDownloadFailed, err, "failed to fetch aggregates for %s", symbol)
		}

		if len(bars) == 0 {
			continue
		}

		if err := writer.WriteBars(bars); err != nil {
			return total, err
		}

		total += len(bars)
	}

	return total, nil
}
