package marketdata

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
)

type WriterTestSuite struct {
	suite.Suite
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterTestSuite))
}

func (suite *WriterTestSuite) TestCSVRoundTrip() {
	var buf bytes.Buffer
	writer := NewCSVBarWriter(&buf)

	start := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	bars := []types.Bar{
		{Time: start, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{Time: start.Add(time.Minute), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 12},
	}

	suite.Require().NoError(writer.WriteBars(bars[:1]))
	suite.Require().NoError(writer.WriteBars(bars[1:]))
	suite.Require().NoError(writer.Close())

	records, err := csv.NewReader(&buf).ReadAll()
	suite.Require().NoError(err)
	suite.Require().Len(records, 3)
	suite.Equal(barHeader, records[0])
	suite.Equal("1704067260000", records[1][0])
	suite.Equal("100.5", records[1][4])
	suite.Equal("101.5", records[2][4])
}

func (suite *WriterTestSuite) TestProviderConfigValidation() {
	suite.Error(ClientConfig{Provider: "unknown"}.Validate())
	suite.Error(ClientConfig{Provider: ProviderPolygon}.Validate())
	suite.NoError(ClientConfig{Provider: ProviderPolygon, APIKey: "key"}.Validate())
	suite.NoError(ClientConfig{Provider: ProviderBinance}.Validate())
}
