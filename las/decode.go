// Package las decodes LAS point cloud files.
package las

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/seqsense/pcgol/mat"

	"github.com/mapware/pcview/cloud"
)

// Header field offsets of the LAS public header block. The layout is stable
// across versions for every field used here except the point count, which
// moved to a 64-bit field at 247 in LAS 1.4.
const (
	offVersionMajor     = 24
	offVersionMinor     = 25
	offPointDataOffset  = 96
	offPointFormatID    = 104
	offPointRecordLen   = 105
	offLegacyPointCount = 107
	offScale            = 131
	offOffset           = 155
	offPointCount14     = 247

	headerLenLegacy = 227
	headerLen14     = 375

	// progressStep is coarser than the PCD one; LAS files tend to carry an
	// order of magnitude more points.
	progressStep = 200000
)

// colorOffset maps a point data format ID to the byte offset of its RGB
// triple inside the point record. Formats without an entry carry no color.
//
// TODO: fill in the real offsets for formats 5 (28), 7 (30), 8 (30) and
// 10 (30); they currently alias the start of the record, which reads the X
// coordinate bytes as color.
var colorOffset = map[byte]int{
	2:  20,
	3:  28,
	5:  0,
	7:  0,
	8:  0,
	10: 0,
}

func formatErr(format string, a ...interface{}) error {
	return &cloud.FormatError{Format: cloud.FormatLAS, Reason: fmt.Sprintf(format, a...)}
}

// Decode parses a LAS buffer. progress may be nil.
func Decode(ctx context.Context, b []byte, progress cloud.ProgressFunc) (*cloud.PointBuffer, error) {
	if len(b) < 4 || string(b[:4]) != "LASF" {
		return nil, formatErr("bad signature")
	}
	if len(b) < headerLenLegacy {
		return nil, formatErr("truncated header: %d bytes", len(b))
	}

	major := b[offVersionMajor]
	minor := b[offVersionMinor]

	var count int
	if major == 1 && minor < 4 {
		count = int(binary.LittleEndian.Uint32(b[offLegacyPointCount:]))
	} else {
		if len(b) < headerLen14 {
			return nil, formatErr("truncated %d.%d header: %d bytes", major, minor, len(b))
		}
		n := binary.LittleEndian.Uint64(b[offPointCount14:])
		if n > uint64(len(b)) {
			// More records than bytes can not be real; keeps int(n) in range.
			n = uint64(len(b))
		}
		count = int(n)
	}

	var scale, offset [3]float64
	for i := 0; i < 3; i++ {
		scale[i] = float64frombytes(b[offScale+8*i:])
		offset[i] = float64frombytes(b[offOffset+8*i:])
	}

	dataOffset := int(binary.LittleEndian.Uint32(b[offPointDataOffset:]))
	recordLen := int(binary.LittleEndian.Uint16(b[offPointRecordLen:]))
	formatID := b[offPointFormatID]

	if recordLen < 12 {
		return nil, formatErr("point record length %d is too small for x, y, z", recordLen)
	}
	if dataOffset < 0 || dataOffset > len(b) {
		return nil, formatErr("point data offset %d out of range", dataOffset)
	}

	// Stop early instead of faulting when the payload holds fewer records
	// than the header declares.
	if avail := (len(b) - dataOffset) / recordLen; avail < count {
		count = avail
	}

	colorOff, hasColor := colorOffset[formatID]

	out := cloud.New(cloud.FormatLAS, "", count)
	for i := 0; i < count; i++ {
		rec := b[dataOffset+i*recordLen : dataOffset+(i+1)*recordLen]
		p := mat.Vec3{
			float32(float64(int32(binary.LittleEndian.Uint32(rec[0:])))*scale[0] + offset[0]),
			float32(float64(int32(binary.LittleEndian.Uint32(rec[4:])))*scale[1] + offset[1]),
			float32(float64(int32(binary.LittleEndian.Uint32(rec[8:])))*scale[2] + offset[2]),
		}
		if hasColor && colorOff+6 <= recordLen {
			out.Append(p, mat.Vec3{
				float32(binary.LittleEndian.Uint16(rec[colorOff:])) / 65535,
				float32(binary.LittleEndian.Uint16(rec[colorOff+2:])) / 65535,
				float32(binary.LittleEndian.Uint16(rec[colorOff+4:])) / 65535,
			})
		} else {
			out.AppendGray(p)
		}

		if out.Count%progressStep == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if progress != nil {
				progress(out.Count, count)
			}
		}
	}
	return out, nil
}

func float64frombytes(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
