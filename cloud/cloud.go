// Package cloud provides the in-memory point buffer shared by the decoders,
// the post-processing filters and the exporter.
package cloud

import (
	"fmt"

	"github.com/seqsense/pcgol/mat"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatPCD
	FormatPLY
	FormatLAS
)

func (f Format) String() string {
	switch f {
	case FormatPCD:
		return "pcd"
	case FormatPLY:
		return "ply"
	case FormatLAS:
		return "las"
	}
	return "unknown"
}

// Ext returns the file name extension conventionally used for the format.
func (f Format) Ext() string {
	if f == FormatUnknown {
		return ""
	}
	return "." + f.String()
}

// Color assigned to points of sources without color information.
const (
	DefaultGrayR float32 = 0.7
	DefaultGrayG float32 = 0.7
	DefaultGrayB float32 = 0.7
)

// PointBuffer is the canonical decoded representation of a point cloud.
// DisplayPositions holds coordinates in the display frame, OriginalPositions
// the source frame coordinates verbatim. Both are flat xyz triples of length
// 3*Count, as are Colors (each channel in [0,1]).
//
// Intensity and Classification are optional per-point attributes. The current
// decoders leave them empty; the slots exist so a future decoder revision can
// populate them without a schema change.
//
// A PointBuffer is never mutated after creation. Filters and colorizers
// produce new buffers, possibly sharing position storage with their input.
type PointBuffer struct {
	DisplayPositions  []float32
	OriginalPositions []float32
	Colors            []float32
	Intensity         []float32
	Classification    []uint8

	Count      int
	Format     Format
	SourceName string
}

// New returns an empty buffer with storage preallocated for n points.
func New(format Format, name string, n int) *PointBuffer {
	return &PointBuffer{
		DisplayPositions:  make([]float32, 0, 3*n),
		OriginalPositions: make([]float32, 0, 3*n),
		Colors:            make([]float32, 0, 3*n),
		Format:            format,
		SourceName:        name,
	}
}

// Append adds one point given in the source frame with an already normalized
// color. The display frame coordinate is derived here so the two position
// arrays can not go out of sync.
func (b *PointBuffer) Append(src, color mat.Vec3) {
	d := SourceToDisplay(src)
	b.OriginalPositions = append(b.OriginalPositions, src[0], src[1], src[2])
	b.DisplayPositions = append(b.DisplayPositions, d[0], d[1], d[2])
	b.Colors = append(b.Colors, color[0], color[1], color[2])
	b.Count++
}

// AppendGray adds one uncolored point using the neutral default color.
func (b *PointBuffer) AppendGray(src mat.Vec3) {
	b.Append(src, mat.Vec3{DefaultGrayR, DefaultGrayG, DefaultGrayB})
}

// Len implements pc.Vec3RandomAccessor over the display positions.
func (b *PointBuffer) Len() int {
	return b.Count
}

// Vec3At implements pc.Vec3RandomAccessor over the display positions.
func (b *PointBuffer) Vec3At(i int) mat.Vec3 {
	return mat.Vec3{
		b.DisplayPositions[3*i],
		b.DisplayPositions[3*i+1],
		b.DisplayPositions[3*i+2],
	}
}

// OriginalVec3At returns the i-th point in the source frame.
func (b *PointBuffer) OriginalVec3At(i int) mat.Vec3 {
	return mat.Vec3{
		b.OriginalPositions[3*i],
		b.OriginalPositions[3*i+1],
		b.OriginalPositions[3*i+2],
	}
}

// ColorAt returns the i-th point color.
func (b *PointBuffer) ColorAt(i int) mat.Vec3 {
	return mat.Vec3{b.Colors[3*i], b.Colors[3*i+1], b.Colors[3*i+2]}
}

// Validate checks the length invariants of the buffer.
func (b *PointBuffer) Validate() error {
	if len(b.DisplayPositions) != 3*b.Count ||
		len(b.OriginalPositions) != 3*b.Count ||
		len(b.Colors) != 3*b.Count {
		return fmt.Errorf(
			"inconsistent buffer: %d points, %d display, %d original, %d color values",
			b.Count, len(b.DisplayPositions), len(b.OriginalPositions), len(b.Colors),
		)
	}
	if b.Intensity != nil && len(b.Intensity) != b.Count {
		return fmt.Errorf("inconsistent buffer: %d points, %d intensity values", b.Count, len(b.Intensity))
	}
	if b.Classification != nil && len(b.Classification) != b.Count {
		return fmt.Errorf("inconsistent buffer: %d points, %d classification values", b.Count, len(b.Classification))
	}
	return nil
}

// CopyRange copies n points starting at si of src to di of dst. All point
// attribute arrays present in src are copied. dst must have enough capacity
// committed (length), as produced by newLike.
func CopyRange(dst, src *PointBuffer, di, si, n int) {
	copy(dst.DisplayPositions[3*di:3*(di+n)], src.DisplayPositions[3*si:3*(si+n)])
	copy(dst.OriginalPositions[3*di:3*(di+n)], src.OriginalPositions[3*si:3*(si+n)])
	copy(dst.Colors[3*di:3*(di+n)], src.Colors[3*si:3*(si+n)])
	if src.Intensity != nil {
		copy(dst.Intensity[di:di+n], src.Intensity[si:si+n])
	}
	if src.Classification != nil {
		copy(dst.Classification[di:di+n], src.Classification[si:si+n])
	}
}

// NewLike returns a buffer with the same provenance and attribute set as src,
// with storage committed for n points so it can be filled by CopyRange.
func NewLike(src *PointBuffer, n int) *PointBuffer {
	dst := &PointBuffer{
		DisplayPositions:  make([]float32, 3*n),
		OriginalPositions: make([]float32, 3*n),
		Colors:            make([]float32, 3*n),
		Count:             n,
		Format:            src.Format,
		SourceName:        src.SourceName,
	}
	if src.Intensity != nil {
		dst.Intensity = make([]float32, n)
	}
	if src.Classification != nil {
		dst.Classification = make([]uint8, n)
	}
	return dst
}

// Truncate trims a buffer produced by NewLike down to its first n points.
func (b *PointBuffer) Truncate(n int) {
	b.DisplayPositions = b.DisplayPositions[:3*n:3*n]
	b.OriginalPositions = b.OriginalPositions[:3*n:3*n]
	b.Colors = b.Colors[:3*n:3*n]
	if b.Intensity != nil {
		b.Intensity = b.Intensity[:n:n]
	}
	if b.Classification != nil {
		b.Classification = b.Classification[:n:n]
	}
	b.Count = n
}
