package cloud

import (
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

// PackColor packs a normalized color triple into a 24-bit integer.
func PackColor(c mat.Vec3) uint32 {
	r := uint32(c[0]*255 + 0.5)
	g := uint32(c[1]*255 + 0.5)
	b := uint32(c[2]*255 + 0.5)
	return r<<16 | g<<8 | b
}

// UnpackColor is the inverse of PackColor up to 1/255 quantization.
func UnpackColor(v uint32) mat.Vec3 {
	return mat.Vec3{
		float32((v>>16)&0xff) / 255,
		float32((v>>8)&0xff) / 255,
		float32(v&0xff) / 255,
	}
}

// ToPointCloud converts a buffer to a x/y/z/rgb pcgol point cloud holding the
// source frame coordinates. It is the bridge to pcgol filters and to the
// binary PCD marshaller.
func ToPointCloud(b *PointBuffer) (*pc.PointCloud, error) {
	pp := &pc.PointCloud{
		PointCloudHeader: pc.PointCloudHeader{
			Version: 0.7,
			Fields:  []string{"x", "y", "z", "rgb"},
			Size:    []int{4, 4, 4, 4},
			Type:    []string{"F", "F", "F", "U"},
			Count:   []int{1, 1, 1, 1},
			Width:   b.Count,
			Height:  1,
		},
		Points: b.Count,
	}
	pp.Data = make([]byte, b.Count*pp.Stride())

	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	itC, err := pp.Uint32Iterator("rgb")
	if err != nil {
		return nil, err
	}
	for i := 0; i < b.Count; i++ {
		it.SetVec3(b.OriginalVec3At(i))
		it.Incr()
		itC.SetUint32(PackColor(b.ColorAt(i)))
		itC.Incr()
	}
	return pp, nil
}

// FromPointCloud converts a pcgol point cloud back to a buffer, treating its
// coordinates as source frame. A missing rgb field yields the default gray.
func FromPointCloud(pp *pc.PointCloud, format Format, name string) (*PointBuffer, error) {
	b := New(format, name, pp.Points)
	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	itC, _ := pp.Uint32Iterator("rgb")
	for i := 0; i < pp.Points; i++ {
		if itC != nil {
			b.Append(it.Vec3(), UnpackColor(itC.Uint32()))
			itC.Incr()
		} else {
			b.AppendGray(it.Vec3())
		}
		it.Incr()
	}
	return b, nil
}
