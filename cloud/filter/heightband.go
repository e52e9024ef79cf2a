package filter

import (
	"github.com/mapware/pcview/cloud"
)

// HeightBand keeps the points whose display frame vertical coordinate falls
// inside [Min, Max], both normalized against the observed height range of the
// input. Min and Max outside [0, 1] are clamped.
type HeightBand struct {
	Min, Max float32
}

func (f HeightBand) Filter(b *cloud.PointBuffer) (*cloud.PointBuffer, error) {
	if b.Count == 0 {
		return b, nil
	}
	lo, hi := clamp01(f.Min), clamp01(f.Max)
	if lo <= 0 && hi >= 1 {
		// Full band, nothing can be dropped.
		return b, nil
	}
	min, max, err := cloud.HeightRange(b)
	if err != nil {
		return nil, err
	}
	// lerp of the form min*(1-t)+max*t is exact at both endpoints.
	bandLo := min*(1-lo) + max*lo
	bandHi := min*(1-hi) + max*hi
	return passThrough(b, func(i int) bool {
		h := b.DisplayPositions[3*i+1]
		return bandLo <= h && h <= bandHi
	}), nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
