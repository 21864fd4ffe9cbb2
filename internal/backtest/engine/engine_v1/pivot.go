package engine

import (
	"math"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
)

// PivotConfig holds the per-timeframe pivot detection parameters.
type PivotConfig struct {
	// Lookback is how many preceding bars a candidate must strictly exceed.
	// Zero compares against the single previous bar only.
	Lookback int
	// MinSwingPct rejects pivots whose largest excursion against the
	// compared bars is below this percentage. Zero disables the filter.
	MinSwingPct float64
	// MinLegBars is the minimum bar distance from the last accepted pivot.
	// Rejected candidates do not reset the distance, only acceptance does.
	MinLegBars int
	// PriceMode selects close-only or high/low comparisons.
	PriceMode PriceMode
}

// DetectPivots scans an aggregated bar series and returns its local extrema,
// strictly time-ordered. The detector is a stateless function over the full
// array; callers needing incremental behavior re-run it over the growing
// series. A pivot at index i depends only on bars [0..i].
func DetectPivots(bars []types.Bar, cfg PivotConfig) []types.Pivot {
	var pivots []types.Pivot

	lastAccepted := -1

	for i := range bars {
		pivot, ok := detectPivotAt(bars, i, cfg)
		if !ok {
			continue
		}

		if cfg.MinLegBars > 0 && lastAccepted >= 0 && i-lastAccepted < cfg.MinLegBars {
			continue
		}

		lastAccepted = i
		pivots = append(pivots, pivot)
	}

	return pivots
}

// comparisonPrices returns the high-side and low-side comparison price for a
// bar. Close mode uses the close for both sides.
func comparisonPrices(bar types.Bar, mode PriceMode) (high float64, low float64) {
	if mode == PriceModeExtreme {
		return bar.High, bar.Low
	}

	return bar.Close, bar.Close
}

func detectPivotAt(bars []types.Bar, index int, cfg PivotConfig) (types.Pivot, bool) {
	if index == 0 || index < cfg.Lookback || index >= len(bars) {
		return types.Pivot{}, false
	}

	curHigh, curLow := comparisonPrices(bars[index], cfg.PriceMode)

	lookback := cfg.Lookback
	if lookback == 0 {
		lookback = 1
	}

	isHigh := true
	isLow := true
	maxCompareHigh := math.Inf(-1)
	minCompareLow := math.Inf(1)

	for j := 1; j <= lookback; j++ {
		compareHigh, compareLow := comparisonPrices(bars[index-j], cfg.PriceMode)

		if curHigh <= compareHigh {
			isHigh = false
		}

		if curLow >= compareLow {
			isLow = false
		}

		if compareHigh > maxCompareHigh {
			maxCompareHigh = compareHigh
		}

		if compareLow < minCompareLow {
			minCompareLow = compareLow
		}
	}

	// A bar engulfing the compared range qualifies in both directions
	// (possible at lookback zero in close mode, and generally in extreme
	// mode). The larger excursion wins; an exact tie goes to the upside.
	if isHigh && isLow {
		upExcursion := curHigh - maxCompareHigh
		downExcursion := minCompareLow - curLow

		if upExcursion >= downExcursion {
			isLow = false
		} else {
			isHigh = false
		}
	}

	if !isHigh && !isLow {
		return types.Pivot{}, false
	}

	pivotType := types.PivotLow
	pivotPrice := curLow
	signal := types.SignalLong

	if isHigh {
		pivotType = types.PivotHigh
		pivotPrice = curHigh
		signal = types.SignalShort
	}

	maxSwingPct := 0.0

	if cfg.MinSwingPct > 0 {
		for j := 1; j <= lookback; j++ {
			comparePrice := oppositeSidePrice(bars[index-j], pivotType, cfg.PriceMode)

			swingPct := math.Abs((pivotPrice - comparePrice) / comparePrice * 100)
			if swingPct > maxSwingPct {
				maxSwingPct = swingPct
			}
		}

		if maxSwingPct < cfg.MinSwingPct {
			return types.Pivot{}, false
		}
	}

	return types.Pivot{
		Type:     pivotType,
		Price:    pivotPrice,
		Time:     bars[index].Time,
		BarIndex: index,
		Signal:   signal,
		SwingPct: maxSwingPct,
	}, true
}

// oppositeSidePrice is the price the swing is measured against: the close in
// close mode, otherwise the far side of the compared bar's range.
func oppositeSidePrice(bar types.Bar, pivotType types.PivotType, mode PriceMode) float64 {
	if mode != PriceModeExtreme {
		return bar.Close
	}

	if pivotType == types.PivotHigh {
		return bar.Low
	}

	return bar.High
}
