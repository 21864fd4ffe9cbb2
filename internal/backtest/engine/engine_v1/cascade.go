package engine

import (
	"sort"
	"time"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
)

// proximityCap is the fixed upper bound on how far apart a confirming pivot
// may sit from the primary pivot. A configured per-timeframe window may
// tighten it, never loosen it.
const proximityCap = 5 * time.Minute

// Confirmation records one timeframe agreeing with a primary pivot.
type Confirmation struct {
	Timeframe string
	Role      TimeframeRole
	Weight    float64
	Pivot     types.Pivot
	Inverted  bool
}

// PendingWindow is a primary pivot awaiting confirmation. It is destroyed on
// confirmation or on reaching WindowEnd unconfirmed; exactly one of the two
// happens.
type PendingWindow struct {
	PrimaryPivot types.Pivot
	OpenTime     time.Time
	WindowEnd    time.Time
}

// ConfirmedSignal is a window that met the cascade requirements.
// ExecutionTime is the later of the primary pivot and the latest confirming
// pivot; the entry delay is applied on top of it by the trade engine.
type ConfirmedSignal struct {
	Window        PendingWindow
	Confirmations []Confirmation
	ExecutionTime time.Time
}

// CascadeEngine correlates primary-timeframe pivots against the pivot
// streams of the other configured timeframes within time-bounded windows,
// without look-ahead.
type CascadeEngine struct {
	timeframes      []TimeframeConfig
	settings        CascadeSettings
	pivots          map[string][]types.Pivot
	effectiveWindow time.Duration
	pending         []PendingWindow
	expired         int
}

// NewCascadeEngine builds the engine for one run. pivotsByTimeframe maps a
// timeframe interval to its time-ordered pivot stream.
func NewCascadeEngine(cfg *BacktestConfigV1, pivotsByTimeframe map[string][]types.Pivot) *CascadeEngine {
	effective := proximityCap

	primary := cfg.PrimaryTimeframe()
	if minutes, ok := cfg.Cascade.ConfirmationWindowMinutes[primary.Interval]; ok && minutes > 0 {
		if configured := time.Duration(minutes) * time.Minute; configured < effective {
			effective = configured
		}
	}

	return &CascadeEngine{
		timeframes:      cfg.Timeframes,
		settings:        cfg.Cascade,
		pivots:          pivotsByTimeframe,
		effectiveWindow: effective,
		pending:         nil,
		expired:         0,
	}
}

// EffectiveWindow returns the window actually applied to pending cascades.
func (c *CascadeEngine) EffectiveWindow() time.Duration {
	return c.effectiveWindow
}

// PendingCount returns the number of windows still awaiting an outcome.
func (c *CascadeEngine) PendingCount() int {
	return len(c.pending)
}

// ExpiredCount returns how many windows expired unconfirmed.
func (c *CascadeEngine) ExpiredCount() int {
	return c.expired
}

// OpenWindow registers a new primary pivot. The window is first evaluated on
// the next one-minute tick.
func (c *CascadeEngine) OpenWindow(pivot types.Pivot, now time.Time) {
	c.pending = append(c.pending, PendingWindow{
		PrimaryPivot: pivot,
		OpenTime:     now,
		WindowEnd:    pivot.Time.Add(c.effectiveWindow),
	})
}

// Evaluate advances the engine to tick t. Windows past their end are
// discarded; windows whose confirmations meet the requirements are returned
// and removed. Confirmations only accumulate before expiry, so a window
// confirmed at t would also be confirmed at any later tick inside the
// window.
func (c *CascadeEngine) Evaluate(t time.Time) []ConfirmedSignal {
	var confirmed []ConfirmedSignal

	remaining := c.pending[:0]

	for _, window := range c.pending {
		if t.After(window.WindowEnd) {
			c.expired++

			continue
		}

		confirmations := c.collectConfirmations(window.PrimaryPivot, t)
		if !c.meetsRequirements(confirmations) {
			remaining = append(remaining, window)

			continue
		}

		executionTime := window.PrimaryPivot.Time
		for _, confirmation := range confirmations {
			if confirmation.Pivot.Time.After(executionTime) {
				executionTime = confirmation.Pivot.Time
			}
		}

		confirmed = append(confirmed, ConfirmedSignal{
			Window:        window,
			Confirmations: confirmations,
			ExecutionTime: executionTime,
		})
	}

	c.pending = remaining

	return confirmed
}

// collectConfirmations finds, per configured timeframe, the earliest pivot
// matching the target signal within the effective window of the primary
// pivot. Pivots with a timestamp after the current tick must not count yet.
func (c *CascadeEngine) collectConfirmations(primary types.Pivot, now time.Time) []Confirmation {
	var confirmations []Confirmation

	earliest := primary.Time.Add(-c.effectiveWindow)

	latest := primary.Time.Add(c.effectiveWindow)
	if now.Before(latest) {
		latest = now
	}

	for _, tf := range c.timeframes {
		stream := c.pivots[tf.Interval]
		if len(stream) == 0 {
			continue
		}

		target := primary.Signal
		if tf.Opposite {
			target = target.Opposite()
		}

		// Streams are time-ordered, so restrict the scan to the window.
		start := sort.Search(len(stream), func(i int) bool {
			return !stream[i].Time.Before(earliest)
		})

		for i := start; i < len(stream); i++ {
			pivot := stream[i]
			if pivot.Time.After(latest) {
				break
			}

			if pivot.Signal != target {
				continue
			}

			confirmations = append(confirmations, Confirmation{
				Timeframe: tf.Interval,
				Role:      tf.Role,
				Weight:    tf.Weight,
				Pivot:     pivot,
				Inverted:  tf.Opposite,
			})

			break
		}
	}

	return confirmations
}

func (c *CascadeEngine) meetsRequirements(confirmations []Confirmation) bool {
	if len(confirmations) < c.settings.MinTimeframesRequired {
		return false
	}

	if c.settings.RequirePrimary {
		hasPrimary := false

		for _, confirmation := range confirmations {
			if confirmation.Role == RolePrimary {
				hasPrimary = true

				break
			}
		}

		if !hasPrimary {
			return false
		}
	}

	return true
}
