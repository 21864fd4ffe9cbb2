// Package fees prices the simulated execution costs of a round trip.
package fees

// FeeModel computes the combined entry and exit fee for a position, given
// its leveraged notional in quote currency.
type FeeModel interface {
	// RoundTrip returns the total fee for opening and closing the notional.
	RoundTrip(notional float64) float64
}

// Schedule selects a fee model by name.
type Schedule string

const (
	SchedulePercent Schedule = "percent"
	ScheduleZero    Schedule = "zero"
)

var AllSchedules = []any{
	SchedulePercent,
	ScheduleZero,
}

// GetFeeModel returns the fee model for a schedule. ratePct is the per-side
// fee in percent and only applies to the percent schedule.
func GetFeeModel(schedule Schedule, ratePct float64) FeeModel {
	switch schedule {
	case SchedulePercent:
		return NewPercentFee(ratePct)
	case ScheduleZero:
		return NewZeroFee()
	default:
		return NewPercentFee(ratePct)
	}
}
