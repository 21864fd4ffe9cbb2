package fees

// ZeroFee models a venue without execution fees.
type ZeroFee struct{}

func NewZeroFee() FeeModel {
	return &ZeroFee{}
}

// RoundTrip implements FeeModel.
func (f *ZeroFee) RoundTrip(notional float64) float64 {
	return 0
}
