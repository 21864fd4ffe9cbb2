package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

type AggregateTestSuite struct {
	suite.Suite
	start time.Time
}

func TestAggregateSuite(t *testing.T) {
	suite.Run(t, new(AggregateTestSuite))
}

func (suite *AggregateTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// minuteBars builds a one-minute series from closes. Bar i covers minute i
// and is stamped with its closing boundary, start+(i+1) minutes.
func (suite *AggregateTestSuite) minuteBars(closes []float64) []types.Bar {
	bars := make([]types.Bar, len(closes))

	for i, close := range closes {
		bars[i] = types.Bar{
			Time:   suite.start.Add(time.Duration(i+1) * time.Minute),
			Open:   close - 0.5,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: 10,
		}
	}

	return bars
}

func (suite *AggregateTestSuite) TestCompleteBuckets() {
	closes := []float64{10, 11, 12, 13, 14, 20, 21, 22, 23, 24}

	aggregated, err := Aggregate(suite.minuteBars(closes), 5, nil)
	suite.Require().NoError(err)
	suite.Require().Len(aggregated, 2)

	first := aggregated[0]
	suite.Equal(suite.start.Add(5*time.Minute), first.Time)
	suite.InDelta(9.5, first.Open, 1e-9)
	suite.InDelta(15.0, first.High, 1e-9)
	suite.InDelta(9.0, first.Low, 1e-9)
	suite.InDelta(14.0, first.Close, 1e-9)
	suite.InDelta(50.0, first.Volume, 1e-9)

	second := aggregated[1]
	suite.Equal(suite.start.Add(10*time.Minute), second.Time)
	suite.InDelta(24.0, second.Close, 1e-9)
}

func (suite *AggregateTestSuite) TestBucketBoundaries() {
	// Four bars closing at :01 through :04 split into two 2-minute buckets
	// ending at :02 and :04.
	closes := []float64{1, 2, 3, 4}

	aggregated, err := Aggregate(suite.minuteBars(closes), 2, nil)
	suite.Require().NoError(err)
	suite.Require().Len(aggregated, 2)

	suite.Equal(suite.start.Add(2*time.Minute), aggregated[0].Time)
	suite.InDelta(2.0, aggregated[0].Close, 1e-9)
	suite.Equal(suite.start.Add(4*time.Minute), aggregated[1].Time)
	suite.InDelta(4.0, aggregated[1].Close, 1e-9)
}

func (suite *AggregateTestSuite) TestPartialTrailingBucketDropped() {
	closes := []float64{1, 2, 3, 4, 5, 6, 7}

	aggregated, err := Aggregate(suite.minuteBars(closes), 5, nil)
	suite.Require().NoError(err)
	suite.Require().Len(aggregated, 1)
	suite.InDelta(5.0, aggregated[0].Close, 1e-9)
}

func (suite *AggregateTestSuite) TestBucketWithGapDropped() {
	bars := suite.minuteBars([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	// Remove one bar from the first bucket; the second stays complete.
	bars = append(bars[:2], bars[3:]...)

	aggregated, err := Aggregate(bars, 5, nil)
	suite.Require().NoError(err)
	suite.Require().Len(aggregated, 1)
	suite.Equal(suite.start.Add(10*time.Minute), aggregated[0].Time)
}

func (suite *AggregateTestSuite) TestDuplicateTimestampKeepsFirst() {
	bars := suite.minuteBars([]float64{1, 2, 3, 4, 5})
	duplicate := bars[2]
	duplicate.Close = 999
	bars = append(bars[:3], append([]types.Bar{duplicate}, bars[3:]...)...)

	aggregated, err := Aggregate(bars, 5, nil)
	suite.Require().NoError(err)
	suite.Require().Len(aggregated, 1)
	suite.InDelta(5.0, aggregated[0].Close, 1e-9)
	suite.Less(aggregated[0].High, 100.0)
}

func (suite *AggregateTestSuite) TestOutOfOrderFails() {
	bars := suite.minuteBars([]float64{1, 2, 3})
	bars[1], bars[2] = bars[2], bars[1]

	_, err := Aggregate(bars, 5, nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUnorderedSeries))
}

func (suite *AggregateTestSuite) TestInvalidTarget() {
	_, err := Aggregate(suite.minuteBars([]float64{1}), 0, nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeAggregationFailed))
}

func (suite *AggregateTestSuite) TestEmptyInput() {
	aggregated, err := Aggregate(nil, 5, nil)
	suite.Require().NoError(err)
	suite.Empty(aggregated)
}
