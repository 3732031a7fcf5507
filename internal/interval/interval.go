// Package interval implements the canonical watched-interval representation:
// merging raw intervals into a minimal sorted non-overlapping set and deriving
// coverage from it.
package interval

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalid marks a malformed interval (start after end, negative or
// non-finite bounds). Callers match it with errors.Is.
var ErrInvalid = errors.New("invalid interval")

// Interval is a closed time range [Start, End] in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns End - Start.
func (iv Interval) Length() float64 {
	return iv.End - iv.Start
}

// Validate rejects intervals that must never enter a progress record.
func (iv Interval) Validate() error {
	if math.IsNaN(iv.Start) || math.IsInf(iv.Start, 0) || math.IsNaN(iv.End) || math.IsInf(iv.End, 0) {
		return fmt.Errorf("%w: non-finite bounds [%v, %v]", ErrInvalid, iv.Start, iv.End)
	}
	if iv.Start < 0 || iv.End < 0 {
		return fmt.Errorf("%w: negative bounds [%v, %v]", ErrInvalid, iv.Start, iv.End)
	}
	if iv.Start > iv.End {
		return fmt.Errorf("%w: start %v after end %v", ErrInvalid, iv.Start, iv.End)
	}
	return nil
}

// Merge collapses ivs into the canonical set: sorted ascending by Start,
// pairwise non-overlapping and non-touching. Touching intervals
// (next.Start == prev.End) merge into one. Zero-length intervals survive as
// degenerate points unless absorbed by a neighbour. The input is not modified.
//
// Merge is idempotent and order-independent; output length never exceeds
// input length.
func Merge(ivs []Interval) ([]Interval, error) {
	for _, iv := range ivs {
		if err := iv.Validate(); err != nil {
			return nil, err
		}
	}
	if len(ivs) == 0 {
		return []Interval{}, nil
	}

	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := make([]Interval, 0, len(sorted))
	open := sorted[0]
	for _, iv := range sorted[1:] {
		if iv.Start <= open.End {
			if iv.End > open.End {
				open.End = iv.End
			}
			continue
		}
		merged = append(merged, open)
		open = iv
	}
	merged = append(merged, open)
	return merged, nil
}

// WatchedSeconds sums the lengths of a merged set.
func WatchedSeconds(merged []Interval) float64 {
	var total float64
	for _, iv := range merged {
		total += iv.Length()
	}
	return total
}

// Coverage returns the share of duration covered by merged, as a percentage
// clamped to [0, 100] and rounded to two decimals. An absent, zero or
// negative duration yields 0 rather than an error: progress may legitimately
// be queried before the video duration is known.
func Coverage(merged []Interval, duration float64) float64 {
	return Percent(WatchedSeconds(merged), duration)
}

// Percent converts already-summed watched seconds into the clamped,
// two-decimal percentage Coverage returns.
func Percent(watchedSeconds, duration float64) float64 {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0
	}
	pct := watchedSeconds / duration * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return math.Round(pct*100) / 100
}
