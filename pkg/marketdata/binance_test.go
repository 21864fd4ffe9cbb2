package marketdata

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/suite"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
)

type BinanceProviderTestSuite struct {
	suite.Suite
	start time.Time
}

func TestBinanceProviderSuite(t *testing.T) {
	suite.Run(t, new(BinanceProviderTestSuite))
}

func (suite *BinanceProviderTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// fakeKlinesService serves canned one-minute klines, honoring the start
// cursor and page limit the way the real endpoint does.
type fakeKlinesService struct {
	klines []*binance.Kline

	startTime int64
	limit     int
	calls     *int
}

func (f *fakeKlinesService) Symbol(string) KlinesService     { return f }
func (f *fakeKlinesService) Interval(string) KlinesService   { return f }
func (f *fakeKlinesService) EndTime(int64) KlinesService     { return f }
func (f *fakeKlinesService) StartTime(t int64) KlinesService { f.startTime = t; return f }
func (f *fakeKlinesService) Limit(l int) KlinesService       { f.limit = l; return f }

func (f *fakeKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	*f.calls++

	var page []*binance.Kline

	for _, kline := range f.klines {
		if kline.OpenTime < f.startTime {
			continue
		}

		page = append(page, kline)
		if len(page) == f.limit {
			break
		}
	}

	return page, nil
}

// collectWriter buffers everything written to it.
type collectWriter struct {
	bars []types.Bar
}

func (c *collectWriter) WriteBars(bars []types.Bar) error {
	c.bars = append(c.bars, bars...)
	return nil
}

func (c *collectWriter) Close() error { return nil }

func (suite *BinanceProviderTestSuite) minuteKlines(n int) []*binance.Kline {
	klines := make([]*binance.Kline, n)

	for i := range klines {
		openTime := suite.start.Add(time.Duration(i) * time.Minute)
		price := strconv.Itoa(100 + i)

		klines[i] = &binance.Kline{
			OpenTime:  openTime.UnixMilli(),
			CloseTime: openTime.Add(time.Minute).UnixMilli() - 1,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    "1",
		}
	}

	return klines
}

func (suite *BinanceProviderTestSuite) TestDownloadPaginates() {
	klines := suite.minuteKlines(1200)
	calls := 0

	provider := NewBinanceProviderWithService(func() KlinesService {
		return &fakeKlinesService{klines: klines, calls: &calls}
	})

	writer := &collectWriter{}
	end := suite.start.Add(1200 * time.Minute)

	count, err := provider.Download(context.Background(), "BNBUSDT", suite.start, end, writer)
	suite.Require().NoError(err)
	suite.Equal(1200, count)
	suite.Len(writer.bars, 1200)

	// 1200 bars at 500 per page: two full pages and one partial page that
	// reaches the end of the range.
	suite.Equal(3, calls)

	// Bars are stamped with the closing boundary, one minute after the
	// kline open.
	suite.Equal(suite.start.Add(time.Minute), writer.bars[0].Time)
	suite.InDelta(100.0, writer.bars[0].Close, 1e-9)
	suite.Equal(suite.start.Add(1200*time.Minute), writer.bars[1199].Time)
}

func (suite *BinanceProviderTestSuite) TestDownloadEmptyRange() {
	calls := 0

	provider := NewBinanceProviderWithService(func() KlinesService {
		return &fakeKlinesService{calls: &calls}
	})

	writer := &collectWriter{}

	count, err := provider.Download(context.Background(), "BNBUSDT", suite.start, suite.start.Add(time.Hour), writer)
	suite.Require().NoError(err)
	suite.Zero(count)
	suite.Empty(writer.bars)
	suite.Equal(1, calls)
}

func (suite *BinanceProviderTestSuite) TestMalformedKline() {
	klines := suite.minuteKlines(1)
	klines[0].Close = "not-a-number"
	calls := 0

	provider := NewBinanceProviderWithService(func() KlinesService {
		return &fakeKlinesService{klines: klines, calls: &calls}
	})

	_, err := provider.Download(context.Background(), "BNBUSDT", suite.start, suite.start.Add(time.Hour), &collectWriter{})
	suite.Require().Error(err)
}
