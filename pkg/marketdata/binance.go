package marketdata

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// binancePageSize is the kline page size requested per API call.
const binancePageSize = 500

// KlinesService abstracts the Binance klines endpoint for testing.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	StartTime(startTime int64) KlinesService
	EndTime(endTime int64) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

type binanceKlinesService struct {
	svc *binance.KlinesService
}

func (s *binanceKlinesService) Symbol(symbol string) KlinesService {
	s.svc = s.svc.Symbol(symbol)
	return s
}

func (s *binanceKlinesService) Interval(interval string) KlinesService {
	s.svc = s.svc.Interval(interval)
	return s
}

func (s *binanceKlinesService) StartTime(startTime int64) KlinesService {
	s.svc = s.svc.StartTime(startTime)
	return s
}

func (s *binanceKlinesService) EndTime(endTime int64) KlinesService {
	s.svc = s.svc.EndTime(endTime)
	return s
}

func (s *binanceKlinesService) Limit(limit int) KlinesService {
	s.svc = s.svc.Limit(limit)
	return s
}

func (s *binanceKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.svc.Do(ctx)
}

// BinanceProvider downloads one-minute klines in 500-row pages, resuming
// each page from the close time of the previous one. Public market data
// needs no credentials.
type BinanceProvider struct {
	newKlines func() KlinesService
}

func NewBinanceProvider() *BinanceProvider {
	client := binance.NewClient("", "")

	return &BinanceProvider{
		newKlines: func() KlinesService {
			return &binanceKlinesService{svc: client.NewKlinesService()}
		},
	}
}

// NewBinanceProviderWithService builds a provider on an injected klines
// service.
func NewBinanceProviderWithService(newKlines func() KlinesService) *BinanceProvider {
	return &BinanceProvider{newKlines: newKlines}
}

// Download implements Provider.
func (p *BinanceProvider) Download(ctx context.Context, symbol string, start, end time.Time, writer BarWriter) (int, error) {
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()
	total := 0

	for cursor < endMs {
		klines, err := p.newKlines().
			Symbol(symbol).
			Interval("1m").
			StartTime(cursor).
			EndTime(endMs - 1).
			Limit(binancePageSize).
			Do(ctx)
		if err != nil {
			return total, errors.Wrapf(errors.ErrCodeDownloadFailed, err, "failed to fetch klines for %s", symbol)
		}

		if len(klines) == 0 {
			break
		}

		bars := make([]types.Bar, 0, len(klines))

		for _, kline := range klines {
			bar, err := klineToBar(kline)
			if err != nil {
				return total, err
			}

			bars = append(bars, bar)
		}

		if err := writer.WriteBars(bars); err != nil {
			return total, err
		}

		total += len(bars)
		cursor = klines[len(klines)-1].CloseTime + 1
	}

	return total, nil
}

// klineToBar converts a kline, stamping the bar with its closing boundary.
// Binance close times end at :59.999, so the boundary is close time plus one
// millisecond.
func klineToBar(kline *binance.Kline) (types.Bar, error) {
	open, err := strconv.ParseFloat(kline.Open, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeDownloadFailed, "failed to parse kline open", err)
	}

	high, err := strconv.ParseFloat(kline.High, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeDownloadFailed, "failed to parse kline high", err)
	}

	low, err := strconv.ParseFloat(kline.Low, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeDownloadFailed, "failed to parse kline low", err)
	}

	closePrice, err := strconv.ParseFloat(kline.Close, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeDownloadFailed, "failed to parse kline close", err)
	}

	volume, err := strconv.ParseFloat(kline.Volume, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeDownloadFailed, "failed to parse kline volume", err)
	}

	return types.Bar{
		Time:   time.UnixMilli(kline.CloseTime + 1).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
