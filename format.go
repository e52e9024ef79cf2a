package pcview

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/mapware/pcview/cloud"
	"github.com/mapware/pcview/las"
	"github.com/mapware/pcview/pcd"
	"github.com/mapware/pcview/ply"
)

// sniffLimit bounds the content inspection window for format detection.
const sniffLimit = 4096

// DetectFormat inspects the payload content to pick a decoder. The file name
// extension is only a fallback hint for payloads whose content is not
// recognizable, never a trusted selector.
func DetectFormat(name string, data []byte) cloud.Format {
	if len(data) >= 4 && string(data[:4]) == "LASF" {
		return cloud.FormatLAS
	}
	head := data
	if len(head) > sniffLimit {
		head = head[:sniffLimit]
	}
	if len(head) >= 3 && string(head[:3]) == "ply" {
		return cloud.FormatPLY
	}
	if bytes.Contains(head, []byte("\nFIELDS ")) || bytes.HasPrefix(head, []byte("FIELDS ")) ||
		bytes.Contains(head, []byte("\nPOINTS ")) {
		return cloud.FormatPCD
	}

	switch strings.ToLower(path.Ext(path.Base(name))) {
	case ".pcd":
		return cloud.FormatPCD
	case ".ply":
		return cloud.FormatPLY
	case ".las":
		return cloud.FormatLAS
	}
	return cloud.FormatUnknown
}

// Decode runs the decoder selected by format over payload. The format set is
// closed; anything else fails with ErrUnsupportedFormat.
func Decode(ctx context.Context, format cloud.Format, name string, payload []byte, progress cloud.ProgressFunc) (*cloud.PointBuffer, error) {
	var b *cloud.PointBuffer
	var err error
	switch format {
	case cloud.FormatPCD:
		b, err = pcd.Decode(ctx, payload, progress)
	case cloud.FormatLAS:
		b, err = las.Decode(ctx, payload, progress)
	case cloud.FormatPLY:
		b, err = ply.Decode(ctx, payload, progress)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	b.SourceName = name
	return b, nil
}
