package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeNoPrimaryTimeframe   ErrorCode = 101
	ErrCodeInvalidTimeframe     ErrorCode = 102
	ErrCodeInvalidRange         ErrorCode = 103

	// Data errors (200-299)
	ErrCodeNoDataFound     ErrorCode = 200
	ErrCodeQueryFailed     ErrorCode = 201
	ErrCodeUnorderedSeries ErrorCode = 202

	// Simulation errors (300-399)
	ErrCodeAggregationFailed ErrorCode = 300
	ErrCodeStateFailed       ErrorCode = 301

	// Market data errors (400-499)
	ErrCodeDownloadFailed ErrorCode = 400
	ErrCodeWriteFailed    ErrorCode = 401
)
