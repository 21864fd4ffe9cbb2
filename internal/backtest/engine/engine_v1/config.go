package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v2"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine/engine_v1/fees"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/utils"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// TimeframeRole marks a timeframe as the one driving signals or as a
// confirming stream.
type TimeframeRole string

const (
	RolePrimary   TimeframeRole = "primary"
	RoleSecondary TimeframeRole = "secondary"
)

// PriceMode selects which price the pivot detector compares: bar closes for
// both sides, or highs/lows.
type PriceMode string

const (
	PriceModeClose   PriceMode = "close"
	PriceModeExtreme PriceMode = "extreme"
)

// Direction filters which pivot signals become trades. Alternate inverts
// every signal.
type Direction string

const (
	DirectionBoth      Direction = "both"
	DirectionBuy       Direction = "buy"
	DirectionSell      Direction = "sell"
	DirectionAlternate Direction = "alternate"
)

// SizingMode selects how the notional of a new trade is computed.
type SizingMode string

const (
	SizingFixed   SizingMode = "fixed"
	SizingPercent SizingMode = "percent"
	SizingMinimum SizingMode = "minimum"
)

// TimeframeConfig describes one timeframe participating in a run.
type TimeframeConfig struct {
	Interval    string        `yaml:"interval" json:"interval" validate:"required" jsonschema:"title=Interval,description=Timeframe length such as 1m or 2h"`
	Role        TimeframeRole `yaml:"role" json:"role" validate:"required,oneof=primary secondary"`
	Lookback    int           `yaml:"lookback" json:"lookback" validate:"gte=0"`
	MinSwingPct float64       `yaml:"min_swing_pct" json:"min_swing_pct" validate:"gte=0"`
	MinLegBars  int           `yaml:"min_leg_bars" json:"min_leg_bars" validate:"gte=0"`
	Weight      float64       `yaml:"weight" json:"weight"`
	Opposite    bool          `yaml:"opposite" json:"opposite"`
}

// Minutes parses the interval string.
func (t TimeframeConfig) Minutes() (int, error) {
	return utils.ParseTimeframe(t.Interval)
}

// CascadeSettings control multi-timeframe confirmation.
type CascadeSettings struct {
	MinTimeframesRequired int  `yaml:"min_timeframes_required" json:"min_timeframes_required" validate:"gte=1"`
	RequirePrimary        bool `yaml:"require_primary" json:"require_primary"`
	// ConfirmationWindowMinutes optionally tightens the fixed 5-minute
	// proximity cap per primary interval. It can never loosen it.
	ConfirmationWindowMinutes map[string]int `yaml:"confirmation_window_minutes" json:"confirmation_window_minutes"`
}

// TrailingConfig describes one trailing exit level. TriggerPct is the
// unleveraged profit percentage that arms the level; DistancePct is how far
// the armed level trails the best price seen.
type TrailingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	TriggerPct  float64 `yaml:"trigger_pct" json:"trigger_pct" validate:"gte=0"`
	DistancePct float64 `yaml:"distance_pct" json:"distance_pct" validate:"gte=0"`
}

// TradeConfig holds everything the trade lifecycle engine needs.
type TradeConfig struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting capital for the run in quote currency,minimum=0"`

	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gt=0"`
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gt=0"`
	Leverage      float64 `yaml:"leverage" json:"leverage" validate:"gte=1"`

	Direction  Direction  `yaml:"direction" json:"direction" validate:"omitempty,oneof=both buy sell alternate"`
	SizingMode SizingMode `yaml:"sizing_mode" json:"sizing_mode" validate:"omitempty,oneof=fixed percent minimum"`

	AmountPerTrade     float64 `yaml:"amount_per_trade" json:"amount_per_trade" validate:"gte=0"`
	RiskPerTradePct    float64 `yaml:"risk_per_trade_pct" json:"risk_per_trade_pct" validate:"gte=0,lte=100"`
	MinimumTradeAmount float64 `yaml:"minimum_trade_amount" json:"minimum_trade_amount" validate:"gte=0"`

	MaxConcurrentTrades int `yaml:"max_concurrent_trades" json:"max_concurrent_trades" validate:"gte=1"`
	EntryDelayMinutes   int `yaml:"entry_delay_minutes" json:"entry_delay_minutes" validate:"gte=0"`

	EntrySlippagePct float64 `yaml:"entry_slippage_pct" json:"entry_slippage_pct" validate:"gte=0"`

	FeeSchedule fees.Schedule `yaml:"fee_schedule" json:"fee_schedule" validate:"omitempty,oneof=percent zero"`
	FeeRatePct  float64       `yaml:"fee_rate_pct" json:"fee_rate_pct" validate:"gte=0"`

	FundingRatePct       float64 `yaml:"funding_rate_pct" json:"funding_rate_pct" validate:"gte=0"`
	FundingIntervalHours int     `yaml:"funding_interval_hours" json:"funding_interval_hours" validate:"gte=1"`

	// MaxTradeDurationMinutes closes a trade at the current close once its
	// age reaches the limit. Zero disables the timeout.
	MaxTradeDurationMinutes int `yaml:"max_trade_duration_minutes" json:"max_trade_duration_minutes" validate:"gte=0"`

	TrailingTakeProfit TrailingConfig `yaml:"trailing_take_profit" json:"trailing_take_profit"`
	TrailingStopLoss   TrailingConfig `yaml:"trailing_stop_loss" json:"trailing_stop_loss"`

	// FlipThreshold is the number of consecutive opposing confirmed signals
	// required before open positions are closed and flipped. Zero disables
	// flipping.
	FlipThreshold int `yaml:"flip_threshold" json:"flip_threshold" validate:"gte=0"`
}

// BacktestConfigV1 is the full configuration of one simulation run.
type BacktestConfigV1 struct {
	PivotPriceMode PriceMode                  `yaml:"pivot_price_mode" json:"pivot_price_mode" validate:"omitempty,oneof=close extreme"`
	Timeframes     []TimeframeConfig          `yaml:"timeframes" json:"timeframes" validate:"required,min=1,dive"`
	Cascade        CascadeSettings            `yaml:"cascade" json:"cascade"`
	Trade          TradeConfig                `yaml:"trade" json:"trade"`
	StartTime      optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the backtest period"`
	EndTime        optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the backtest period"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestConfigV1 so the
// optional time fields round-trip through plain pointers.
func (c *BacktestConfigV1) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		PivotPriceMode PriceMode         `yaml:"pivot_price_mode"`
		Timeframes     []TimeframeConfig `yaml:"timeframes"`
		Cascade        CascadeSettings   `yaml:"cascade"`
		Trade          TradeConfig       `yaml:"trade"`
		StartTime      *time.Time        `yaml:"start_time"`
		EndTime        *time.Time        `yaml:"end_time"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.PivotPriceMode = config.PivotPriceMode
	c.Timeframes = config.Timeframes
	c.Cascade = config.Cascade
	c.Trade = config.Trade

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// ParseConfig unmarshals, applies defaults and validates a YAML config.
// Configuration errors are fatal at run start, never discovered mid-run.
func ParseConfig(content string) (BacktestConfigV1, error) {
	var config BacktestConfigV1
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return config, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// ApplyDefaults fills in the zero values that have documented defaults.
func (c *BacktestConfigV1) ApplyDefaults() {
	if c.PivotPriceMode == "" {
		c.PivotPriceMode = PriceModeClose
	}

	if c.Cascade.MinTimeframesRequired == 0 {
		c.Cascade.MinTimeframesRequired = 2
	}

	if c.Trade.Direction == "" {
		c.Trade.Direction = DirectionBoth
	}

	if c.Trade.SizingMode == "" {
		c.Trade.SizingMode = SizingPercent
	}

	if c.Trade.RiskPerTradePct == 0 {
		c.Trade.RiskPerTradePct = 100
	}

	if c.Trade.MaxConcurrentTrades == 0 {
		c.Trade.MaxConcurrentTrades = 1
	}

	if c.Trade.FeeSchedule == "" {
		c.Trade.FeeSchedule = fees.SchedulePercent
	}

	if c.Trade.FundingIntervalHours == 0 {
		c.Trade.FundingIntervalHours = 8
	}

	for i := range c.Timeframes {
		if c.Timeframes[i].Weight == 0 {
			c.Timeframes[i].Weight = 1
		}
	}
}

// Validate checks structural constraints and the cross-field invariants the
// validator tags cannot express: exactly one primary timeframe and parseable
// intervals.
func (c *BacktestConfigV1) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	primaries := 0

	for _, tf := range c.Timeframes {
		if _, err := tf.Minutes(); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidTimeframe, err, "invalid interval %q", tf.Interval)
		}

		if tf.Role == RolePrimary {
			primaries++
		}
	}

	if primaries == 0 {
		return errors.New(errors.ErrCodeNoPrimaryTimeframe, "no primary timeframe configured")
	}

	if primaries > 1 {
		return errors.Newf(errors.ErrCodeNoPrimaryTimeframe, "exactly one primary timeframe required, got %d", primaries)
	}

	return nil
}

// PrimaryTimeframe returns the timeframe with the primary role. Validate
// guarantees exactly one exists.
func (c *BacktestConfigV1) PrimaryTimeframe() TimeframeConfig {
	for _, tf := range c.Timeframes {
		if tf.Role == RolePrimary {
			return tf
		}
	}

	return TimeframeConfig{}
}

// GenerateSchema generates a JSON schema for the BacktestConfigV1.
func (c *BacktestConfigV1) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}
			if strings.Contains(t.String(), "fees.Schedule") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: fees.AllSchedules,
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-config-v1"
	schema.Description = "Configuration schema for one pivot cascade backtest run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestConfigV1.
func (c *BacktestConfigV1) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
