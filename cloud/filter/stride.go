package filter

import (
	"errors"

	"github.com/mapware/pcview/cloud"
)

// Stride keeps every N-th point in original order, yielding exactly
// ceil(count/N) points. N=1 passes the input through unchanged.
type Stride struct {
	N int
}

func (f Stride) Filter(b *cloud.PointBuffer) (*cloud.PointBuffer, error) {
	if f.N < 1 {
		return nil, errors.New("stride must be >=1")
	}
	if f.N == 1 {
		return b, nil
	}
	n := (b.Count + f.N - 1) / f.N
	out := cloud.NewLike(b, n)
	for j := 0; j < n; j++ {
		cloud.CopyRange(out, b, j, j*f.N, 1)
	}
	return out, nil
}
