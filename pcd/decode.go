// Package pcd decodes and encodes PCD point cloud files.
package pcd

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/seqsense/pcgol/mat"

	"github.com/mapware/pcview/cloud"
)

const (
	// headerScanLimit bounds the header search. A header longer than this is
	// rejected as malformed.
	headerScanLimit = 4096

	// progressStep is the decode progress cadence in points.
	progressStep = 50000
)

type dataMode int

const (
	modeAscii dataMode = iota
	modeBinary
)

type header struct {
	fields []string
	size   []int
	count  []int
	points int
	mode   dataMode

	// payload is the byte offset of the first point record.
	payload int
}

func formatErr(format string, a ...interface{}) error {
	return &cloud.FormatError{Format: cloud.FormatPCD, Reason: fmt.Sprintf(format, a...)}
}

// Decode parses a PCD buffer in ascii or binary form. progress may be nil.
func Decode(ctx context.Context, b []byte, progress cloud.ProgressFunc) (*cloud.PointBuffer, error) {
	h, err := parseHeader(b)
	if err != nil {
		return nil, err
	}
	switch h.mode {
	case modeAscii:
		return decodeAscii(ctx, b, h, progress)
	default:
		return decodeBinary(ctx, b, h, progress)
	}
}

func parseHeader(b []byte) (*header, error) {
	head := b
	if len(head) > headerScanLimit {
		head = head[:headerScanLimit]
	}

	h := &header{points: -1}
	var typ []string
	var pos int
	var seenData bool

L_HEADER:
	for pos < len(head) {
		rest := head[pos:]
		n := bytes.IndexByte(rest, '\n')
		var line []byte
		if n < 0 {
			line = rest
			pos = len(head)
		} else {
			line = rest[:n]
			pos += n + 1
		}
		args := strings.Fields(string(line))
		if len(args) == 0 {
			continue
		}
		if len(args) < 2 {
			return nil, formatErr("header field %q must have value", args[0])
		}
		switch args[0] {
		case "FIELDS":
			h.fields = args[1:]
		case "SIZE":
			h.size = make([]int, len(args)-1)
			for i, s := range args[1:] {
				v, err := strconv.Atoi(s)
				if err != nil {
					return nil, formatErr("bad SIZE value %q", s)
				}
				h.size[i] = v
			}
		case "TYPE":
			typ = args[1:]
		case "COUNT":
			h.count = make([]int, len(args)-1)
			for i, s := range args[1:] {
				v, err := strconv.Atoi(s)
				if err != nil {
					return nil, formatErr("bad COUNT value %q", s)
				}
				h.count[i] = v
			}
		case "POINTS":
			v, err := strconv.Atoi(args[1])
			if err != nil || v < 0 {
				return nil, formatErr("bad POINTS value %q", args[1])
			}
			h.points = v
		case "DATA":
			switch args[1] {
			case "ascii":
				h.mode = modeAscii
			case "binary":
				h.mode = modeBinary
			default:
				return nil, formatErr("unsupported DATA mode %q", args[1])
			}
			seenData = true
			h.payload = pos
			break L_HEADER
		}
	}

	if !seenData {
		return nil, formatErr("no DATA line within the first %d bytes", headerScanLimit)
	}
	switch {
	case h.fields == nil:
		return nil, formatErr("missing FIELDS")
	case h.size == nil:
		return nil, formatErr("missing SIZE")
	case typ == nil:
		return nil, formatErr("missing TYPE")
	case h.count == nil:
		return nil, formatErr("missing COUNT")
	case h.points < 0:
		return nil, formatErr("missing POINTS")
	}
	if len(h.fields) != len(h.size) || len(h.fields) != len(typ) || len(h.fields) != len(h.count) {
		return nil, formatErr("FIELDS/SIZE/TYPE/COUNT lengths mismatch")
	}
	if len(h.fields) < 3 {
		return nil, formatErr("need at least x, y, z fields")
	}
	return h, nil
}

// colorField returns the index of the packed color field, or -1.
func (h *header) colorField() int {
	for i, f := range h.fields {
		if f == "rgb" || f == "rgba" {
			return i
		}
	}
	return -1
}

func (h *header) stride() int {
	var stride int
	for i := range h.fields {
		stride += h.size[i] * h.count[i]
	}
	return stride
}

// fieldOffset returns the cumulative byte offset of field i in a record.
func (h *header) fieldOffset(i int) int {
	var off int
	for j := 0; j < i; j++ {
		off += h.size[j] * h.count[j]
	}
	return off
}

func decodeAscii(ctx context.Context, b []byte, h *header, progress cloud.ProgressFunc) (*cloud.PointBuffer, error) {
	payload := b[h.payload:]

	// An ascii point line takes at least 5 bytes ("0 0 0"). Clamp the
	// preallocation so a bogus declared count cannot drive the allocation;
	// the payload scan below stops at whichever limit comes first.
	n := h.points
	if avail := len(payload)/5 + 1; avail < n {
		n = avail
	}

	out := cloud.New(cloud.FormatPCD, "", n)
	colorCol := h.colorField()

	var pos int
	for out.Count < h.points && pos < len(payload) {
		rest := payload[pos:]
		n := bytes.IndexByte(rest, '\n')
		var line []byte
		if n < 0 {
			line = rest
			pos = len(payload)
		} else {
			line = rest[:n]
			pos += n + 1
		}
		cols := strings.Fields(string(line))
		if len(cols) == 0 {
			continue
		}
		if len(cols) < 3 {
			return nil, formatErr("point line %d has %d columns, need at least 3", out.Count, len(cols))
		}
		var p mat.Vec3
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(cols[i], 32)
			if err != nil {
				return nil, formatErr("bad coordinate %q on point line %d", cols[i], out.Count)
			}
			p[i] = float32(v)
		}
		if colorCol >= 0 && colorCol < len(cols) {
			v, err := strconv.ParseFloat(cols[colorCol], 64)
			if err != nil {
				return nil, formatErr("bad color %q on point line %d", cols[colorCol], out.Count)
			}
			out.Append(p, cloud.UnpackColor(uint32(int64(v))))
		} else {
			out.AppendGray(p)
		}

		if out.Count%progressStep == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if progress != nil {
				progress(out.Count, h.points)
			}
		}
	}
	return out, nil
}

func decodeBinary(ctx context.Context, b []byte, h *header, progress cloud.ProgressFunc) (*cloud.PointBuffer, error) {
	stride := h.stride()
	if stride < 12 {
		return nil, formatErr("point stride %d is too small for x, y, z", stride)
	}
	payload := b[h.payload:]

	// Never read beyond the declared point count; tolerate a short payload by
	// stopping early.
	n := h.points
	if avail := len(payload) / stride; avail < n {
		n = avail
	}

	colorOff := -1
	if i := h.colorField(); i >= 0 {
		if off := h.fieldOffset(i); off+4 <= stride {
			colorOff = off
		}
	}

	out := cloud.New(cloud.FormatPCD, "", n)
	for i := 0; i < n; i++ {
		rec := payload[i*stride : (i+1)*stride]
		p := mat.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(rec[0:])),
			math.Float32frombits(binary.LittleEndian.Uint32(rec[4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(rec[8:])),
		}
		if colorOff >= 0 {
			out.Append(p, cloud.UnpackColor(binary.LittleEndian.Uint32(rec[colorOff:])))
		} else {
			out.AppendGray(p)
		}

		if out.Count%progressStep == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if progress != nil {
				progress(out.Count, n)
			}
		}
	}
	return out, nil
}
