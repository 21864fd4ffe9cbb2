package fees

// PercentFee charges a fixed percentage of the notional per side, so a round
// trip costs notional * rate * 2.
type PercentFee struct {
	ratePct float64
}

func NewPercentFee(ratePct float64) FeeModel {
	return &PercentFee{ratePct: ratePct}
}

// RoundTrip implements FeeModel.
func (f *PercentFee) RoundTrip(notional float64) float64 {
	if notional <= 0 {
		return 0
	}

	return notional * (f.ratePct / 100) * 2
}
