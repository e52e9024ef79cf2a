package cloud

import (
	"errors"
	"math"

	"github.com/seqsense/pcgol/mat"
)

var errNoPoint = errors.New("no point")

// MinMax returns the per-axis bounds of the buffer in the display frame.
func MinMax(b *PointBuffer) (mat.Vec3, mat.Vec3, error) {
	if b.Count == 0 {
		return mat.Vec3{}, mat.Vec3{}, errNoPoint
	}
	min := mat.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	max := mat.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for i := 0; i < b.Count; i++ {
		v := b.Vec3At(i)
		for j := range v {
			if v[j] < min[j] {
				min[j] = v[j]
			}
			if v[j] > max[j] {
				max[j] = v[j]
			}
		}
	}
	return min, max, nil
}

// HeightRange returns the observed bounds of the display frame vertical
// coordinate. By the frame correspondence this equals the source frame Z
// bounds, which is what the exporter filters against.
func HeightRange(b *PointBuffer) (float32, float32, error) {
	if b.Count == 0 {
		return 0, 0, errNoPoint
	}
	min := float32(math.MaxFloat32)
	max := float32(-math.MaxFloat32)
	for i := 0; i < b.Count; i++ {
		h := b.DisplayPositions[3*i+1]
		if h < min {
			min = h
		}
		if h > max {
			max = h
		}
	}
	return min, max, nil
}
