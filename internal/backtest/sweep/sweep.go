package sweep

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	engine "github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine/engine_v1"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/logger"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/errors"
)

// Range is a numeric parameter axis expanded into Start, Start+Step, ... up
// to and including End. A zero Step yields the single value Start.
type Range struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Step  float64 `yaml:"step"`
}

// Values expands the range. The end value is included despite float
// accumulation error.
func (r Range) Values() []float64 {
	if r.Step <= 0 || r.End <= r.Start {
		return []float64{r.Start}
	}

	var values []float64

	for v := r.Start; v <= r.End+r.Step/1e6; v += r.Step {
		values = append(values, v)
	}

	return values
}

// SweepConfig describes a parameter sweep: a base run configuration plus the
// axes to vary. Unset axes keep the base value.
type SweepConfig struct {
	Base engine.BacktestConfigV1 `yaml:"base"`

	TakeProfitPct *Range `yaml:"take_profit_pct"`
	StopLossPct   *Range `yaml:"stop_loss_pct"`
	Leverage      *Range `yaml:"leverage"`

	// PrimaryLookbacks varies the primary timeframe's pivot lookback.
	PrimaryLookbacks []int `yaml:"primary_lookbacks"`

	// Workers bounds the pool size. Zero means NumCPU-1, minimum one.
	Workers int `yaml:"workers"`
}

func (c *SweepConfig) axis(r *Range, base float64) []float64 {
	if r == nil {
		return []float64{base}
	}

	return r.Values()
}

// Combinations expands the Cartesian product of all configured axes into
// complete run configurations, in deterministic order.
func (c *SweepConfig) Combinations() ([]engine.BacktestConfigV1, error) {
	takeProfits := c.axis(c.TakeProfitPct, c.Base.Trade.TakeProfitPct)
	stopLosses := c.axis(c.StopLossPct, c.Base.Trade.StopLossPct)
	leverages := c.axis(c.Leverage, c.Base.Trade.Leverage)

	lookbacks := c.PrimaryLookbacks
	if len(lookbacks) == 0 {
		lookbacks = []int{c.Base.PrimaryTimeframe().Lookback}
	}

	var combos []engine.BacktestConfigV1

	for _, lookback := range lookbacks {
		for _, tp := range takeProfits {
			for _, sl := range stopLosses {
				for _, lev := range leverages {
					cfg := c.Base
					cfg.Timeframes = make([]engine.TimeframeConfig, len(c.Base.Timeframes))
					copy(cfg.Timeframes, c.Base.Timeframes)

					for i := range cfg.Timeframes {
						if cfg.Timeframes[i].Role == engine.RolePrimary {
							cfg.Timeframes[i].Lookback = lookback
						}
					}

					cfg.Trade.TakeProfitPct = tp
					cfg.Trade.StopLossPct = sl
					cfg.Trade.Leverage = lev

					if err := cfg.Validate(); err != nil {
						return nil, err
					}

					combos = append(combos, cfg)
				}
			}
		}
	}

	if len(combos) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidRange, "sweep expands to zero combinations")
	}

	return combos, nil
}

// RunOutcome is one sweep cell: the configuration, the run result and the
// error if the run failed. A failed cell never aborts the sweep.
type RunOutcome struct {
	Index  int
	Config engine.BacktestConfigV1
	Result types.RunResult
	Err    error
}

// Run executes every combination over the shared base series with a bounded
// worker pool and streams outcomes to the writer in combination order.
func Run(ctx context.Context, cfg *SweepConfig, baseBars []types.Bar, writer ResultWriter, log *logger.Logger) error {
	if log == nil {
		log = logger.NewNopLogger()
	}

	combos, err := cfg.Combinations()
	if err != nil {
		return err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
	}

	if workers < 1 {
		workers = 1
	}

	log.Info("Starting sweep",
		zap.Int("combinations", len(combos)),
		zap.Int("workers", workers),
	)

	jobs := make(chan int)
	outcomes := make([]RunOutcome, len(combos))

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			// Caches are per worker, so aggregation and pivot detection run
			// once per timeframe per worker rather than once per cell.
			caches := engine.NewSimCaches()
			workerLog := logger.NewNopLogger()

			for i := range jobs {
				outcomes[i] = runOne(i, combos[i], baseBars, caches, workerLog)
			}
		}()
	}

	for i := range combos {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()

			return ctx.Err()
		case jobs <- i:
		}
	}

	close(jobs)
	wg.Wait()

	if err := writer.WriteHeader(); err != nil {
		return err
	}

	failed := 0

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
		}

		if err := writer.WriteOutcome(outcome); err != nil {
			return err
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	log.Info("Sweep finished",
		zap.Int("combinations", len(combos)),
		zap.Int("failed", failed),
	)

	return nil
}

// runOne executes a single cell, converting a panic in the simulation into
// a failed outcome so one bad cell cannot take down the sweep.
func runOne(index int, cfg engine.BacktestConfigV1, baseBars []types.Bar, caches *engine.SimCaches, log *logger.Logger) (outcome RunOutcome) {
	outcome = RunOutcome{Index: index, Config: cfg}

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = errors.Newf(errors.ErrCodeUnknown, "simulation panicked: %v", r)
		}
	}()

	result, err := engine.RunSimulation(baseBars, &cfg, log, caches, nil)
	outcome.Result = result
	outcome.Err = err

	return outcome
}

// describeTimeframes renders a config's timeframe list for the result sink,
// e.g. "5m(primary) 15m 1h".
func describeTimeframes(cfg engine.BacktestConfigV1) string {
	parts := make([]string, 0, len(cfg.Timeframes))

	for _, tf := range cfg.Timeframes {
		if tf.Role == engine.RolePrimary {
			parts = append(parts, fmt.Sprintf("%s(primary,lb=%d)", tf.Interval, tf.Lookback))
		} else {
			parts = append(parts, tf.Interval)
		}
	}

	return strings.Join(parts, " ")
}
