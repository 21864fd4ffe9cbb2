package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type TimeframeTestSuite struct {
	suite.Suite
}

func TestTimeframeSuite(t *testing.T) {
	suite.Run(t, new(TimeframeTestSuite))
}

func (suite *TimeframeTestSuite) TestParseTimeframe() {
	tests := []struct {
		name          string
		input         string
		expected      int
		expectedError bool
	}{
		{name: "minutes", input: "1m", expected: 1},
		{name: "five minutes", input: "5m", expected: 5},
		{name: "hours", input: "2h", expected: 120},
		{name: "days", input: "1d", expected: 1440},
		{name: "weeks", input: "1w", expected: 10080},
		{name: "bare number defaults to minutes", input: "15", expected: 15},
		{name: "uppercase", input: "4H", expected: 240},
		{name: "empty", input: "", expectedError: true},
		{name: "garbage", input: "abc", expectedError: true},
		{name: "zero", input: "0m", expectedError: true},
		{name: "negative", input: "-5m", expectedError: true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			minutes, err := ParseTimeframe(tc.input)
			if tc.expectedError {
				suite.Error(err)
				return
			}
			suite.NoError(err)
			suite.Equal(tc.expected, minutes)
		})
	}
}

func (suite *TimeframeTestSuite) TestTimeframeDuration() {
	d, err := TimeframeDuration("30m")
	suite.NoError(err)
	suite.Equal(30*time.Minute, d)

	_, err = TimeframeDuration("x")
	suite.Error(err)
}
