// Package filter provides the post-processing filters applied to a decoded
// point buffer. Filters are pure: re-running one with the same input and
// parameters yields the same output, and the input is never mutated.
package filter

import (
	"github.com/mapware/pcview/cloud"
)

type Filter interface {
	Filter(*cloud.PointBuffer) (*cloud.PointBuffer, error)
}

// passThrough compacts the points selected by fn into a new buffer,
// preserving relative order. Consecutive kept points are copied as a single
// run.
func passThrough(b *cloud.PointBuffer, fn func(i int) bool) *cloud.PointBuffer {
	out := cloud.NewLike(b, b.Count)
	var j int
	var is, js, cnt int
	for i := 0; i < b.Count; i++ {
		if !fn(i) {
			if cnt > 0 {
				cloud.CopyRange(out, b, js, is, cnt)
				cnt = 0
			}
			continue
		}
		if cnt == 0 {
			is, js = i, j
		}
		j++
		cnt++
	}
	if cnt > 0 {
		cloud.CopyRange(out, b, js, is, cnt)
	}
	out.Truncate(j)
	return out
}
