package marketdata

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// ProviderName selects a market data backend.
type ProviderName string

const (
	ProviderBinance ProviderName = "binance"
	ProviderPolygon ProviderName = "polygon"
)

// Provider streams historical one-minute bars for a symbol. Bars arrive in
// ascending time order, stamped with their closing boundary.
type Provider interface {
	// Download fetches bars for [start, end) and hands them to the writer
	// page by page.
	Download(ctx context.Context, symbol string, start, end time.Time, writer BarWriter) (int, error)
}

// ClientConfig selects and authenticates a provider.
type ClientConfig struct {
	Provider ProviderName `yaml:"provider" validate:"required,oneof=binance polygon"`
	APIKey   string       `yaml:"api_key"`
}

// Validate checks the config, including the per-provider key requirement.
func (c ClientConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid market data config", err)
	}

	if c.Provider == ProviderPolygon && c.APIKey == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "polygon requires an api key")
	}

	return nil
}

// NewProvider builds the provider named by the config.
func NewProvider(cfg ClientConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderPolygon:
		return NewPolygonProvider(cfg.APIKey), nil
	default:
		return NewBinanceProvider(), nil
	}
}

// BarWriter is the sink a download streams into.
type BarWriter interface {
	WriteBars(bars []types.Bar) error
	Close() error
}
