package engine

import (
	"sort"
	"time"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/types"
)

// entryFillTolerance is how far a fill lookup may drift from the requested
// minute before the entry is skipped entirely.
const entryFillTolerance = 30 * time.Second

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// barIndex answers "what was the one-minute close at time t" for entry
// fills. Exact timestamp matches win; otherwise the nearest bar within the
// fill tolerance is used.
type barIndex struct {
	bars   []types.Bar
	byTime map[int64]int
}

func newBarIndex(bars []types.Bar) *barIndex {
	byTime := make(map[int64]int, len(bars))
	for i, bar := range bars {
		byTime[bar.Time.UnixMilli()] = i
	}

	return &barIndex{bars: bars, byTime: byTime}
}

// At returns the bar at exactly t, or the nearest bar within the fill
// tolerance. The second return is false when no bar qualifies.
func (idx *barIndex) At(t time.Time) (types.Bar, bool) {
	ms := t.UnixMilli()

	if i, ok := idx.byTime[ms]; ok {
		return idx.bars[i], true
	}

	// First bar at or after t.
	after := sort.Search(len(idx.bars), func(i int) bool {
		return idx.bars[i].Time.UnixMilli() >= ms
	})

	best := -1
	bestDelta := int64(entryFillTolerance / time.Millisecond)

	if after < len(idx.bars) {
		if delta := idx.bars[after].Time.UnixMilli() - ms; delta <= bestDelta {
			best = after
			bestDelta = delta
		}
	}

	if after > 0 {
		if delta := ms - idx.bars[after-1].Time.UnixMilli(); delta < bestDelta {
			best = after - 1
		}
	}

	if best < 0 {
		return types.Bar{}, false
	}

	return idx.bars[best], true
}
