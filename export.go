package pcview

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mapware/pcview/cloud"
	"github.com/mapware/pcview/pcd"
	"github.com/mapware/pcview/ply"
)

// ExportOptions selects the serialization target. The zero value picks the
// format automatically: the source format, except LAS sources which fall back
// to PCD since LAS export is unsupported.
type ExportOptions struct {
	Format cloud.Format
	// Binary selects the binary PCD layout instead of ascii. Only valid
	// together with the PCD target.
	Binary bool
}

// Export reconstructs the subset of the active buffer inside the current
// height band and serializes it. The exported coordinates are the retained
// source frame positions, never the result of inverting the display
// transform, so a re-import reproduces the original values exactly.
// It returns the suggested file name and the serialized bytes.
func (s *Session) Export(opts ExportOptions) (string, []byte, error) {
	b := s.PointBuffer()
	if b == nil {
		return "", nil, errNoPointCloud
	}

	format := opts.Format
	if format == cloud.FormatUnknown {
		format = b.Format
		if format == cloud.FormatLAS || format == cloud.FormatUnknown {
			format = cloud.FormatPCD
		}
	}
	if format == cloud.FormatLAS {
		return "", nil, errors.New("las export is not supported")
	}
	if opts.Binary && format != cloud.FormatPCD {
		return "", nil, errors.New("binary export is only supported for pcd")
	}

	sub, err := s.exportSubset(b)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	switch format {
	case cloud.FormatPCD:
		if opts.Binary {
			err = pcd.Marshal(&buf, sub)
		} else {
			err = pcd.MarshalASCII(&buf, sub)
		}
	case cloud.FormatPLY:
		err = ply.MarshalASCII(&buf, sub)
	default:
		return "", nil, ErrUnsupportedFormat
	}
	if err != nil {
		return "", nil, fmt.Errorf("export: %w", err)
	}
	return exportName(b.SourceName, format), buf.Bytes(), nil
}

// exportSubset keeps the points whose display frame height lies in the
// current band. By the frame correspondence the display height is the source
// frame Z coordinate, so the band is evaluated on the retained originals.
func (s *Session) exportSubset(b *cloud.PointBuffer) (*cloud.PointBuffer, error) {
	lo, hi := s.filter.HeightRange()
	if b.Count == 0 || (lo <= 0 && hi >= 1) {
		return b, nil
	}
	min, max, err := cloud.HeightRange(b)
	if err != nil {
		return nil, err
	}
	bandLo := min*(1-lo) + max*lo
	bandHi := min*(1-hi) + max*hi

	out := cloud.NewLike(b, b.Count)
	var n int
	for i := 0; i < b.Count; i++ {
		h := b.OriginalPositions[3*i+2]
		if h < bandLo || h > bandHi {
			continue
		}
		cloud.CopyRange(out, b, n, i, 1)
		n++
	}
	out.Truncate(n)
	return out, nil
}

func exportName(source string, format cloud.Format) string {
	base := path.Base(source)
	if base == "." || base == "/" || base == "" {
		base = "pointcloud"
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	return base + "_filtered" + format.Ext()
}
