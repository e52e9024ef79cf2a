// Package ply decodes and encodes ascii PLY point cloud files.
package ply

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/seqsense/pcgol/mat"

	"github.com/mapware/pcview/cloud"
)

const progressStep = 50000

func formatErr(format string, a ...interface{}) error {
	return &cloud.FormatError{Format: cloud.FormatPLY, Reason: fmt.Sprintf(format, a...)}
}

type property struct {
	name string
	typ  string
}

type plyHeader struct {
	vertexCount int
	// vertexProps are the properties of the vertex element in file order.
	vertexProps []property
	// leading is the number of lines of elements declared before vertex.
	leading int
	payload int
}

// Decode parses an ascii PLY buffer. Binary PLY is not supported and is
// rejected as a format error. progress may be nil.
func Decode(ctx context.Context, b []byte, progress cloud.ProgressFunc) (*cloud.PointBuffer, error) {
	h, err := parseHeader(b)
	if err != nil {
		return nil, err
	}

	ix := propIndex(h.vertexProps, "x")
	iy := propIndex(h.vertexProps, "y")
	iz := propIndex(h.vertexProps, "z")
	if ix < 0 || iy < 0 || iz < 0 {
		return nil, formatErr("vertex element has no x, y, z properties")
	}
	ir := propIndex(h.vertexProps, "red")
	ig := propIndex(h.vertexProps, "green")
	ib := propIndex(h.vertexProps, "blue")
	hasColor := ir >= 0 && ig >= 0 && ib >= 0

	payload := b[h.payload:]

	// A vertex line takes at least 5 bytes ("0 0 0"). Clamp the preallocation
	// so a bogus declared count cannot drive the allocation; the payload scan
	// below stops at whichever limit comes first.
	n := h.vertexCount
	if avail := len(payload)/5 + 1; avail < n {
		n = avail
	}

	out := cloud.New(cloud.FormatPLY, "", n)
	var pos, skipped int
	for out.Count < h.vertexCount && pos < len(payload) {
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
		if skipped < h.leading {
			skipped++
			continue
		}

		var p mat.Vec3
		for i, col := range [3]int{ix, iy, iz} {
			if col >= len(cols) {
				return nil, formatErr("vertex line %d has %d columns", out.Count, len(cols))
			}
			v, err := strconv.ParseFloat(cols[col], 32)
			if err != nil {
				return nil, formatErr("bad coordinate %q on vertex line %d", cols[col], out.Count)
			}
			p[i] = float32(v)
		}
		if hasColor && ir < len(cols) && ig < len(cols) && ib < len(cols) {
			c, err := parseColor(h.vertexProps, cols, ir, ig, ib)
			if err != nil {
				return nil, formatErr("%v on vertex line %d", err, out.Count)
			}
			out.Append(p, c)
		} else {
			out.AppendGray(p)
		}

		if out.Count%progressStep == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if progress != nil {
				progress(out.Count, h.vertexCount)
			}
		}
	}
	return out, nil
}

func parseHeader(b []byte) (*plyHeader, error) {
	h := &plyHeader{vertexCount: -1}
	var pos, lineNo int
	var curElement string
	seenEnd := false

	for pos < len(b) && !seenEnd {
		rest := b[pos:]
		n := bytes.IndexByte(rest, '\n')
		var line []byte
		if n < 0 {
			line = rest
			pos = len(b)
		} else {
			line = rest[:n]
			pos += n + 1
		}
		args := strings.Fields(string(line))
		lineNo++
		if lineNo == 1 {
			if len(args) != 1 || args[0] != "ply" {
				return nil, formatErr("bad signature")
			}
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "format":
			if len(args) < 2 || args[1] != "ascii" {
				return nil, formatErr("unsupported ply format %q", strings.Join(args[1:], " "))
			}
		case "comment", "obj_info":
		case "element":
			if len(args) < 3 {
				return nil, formatErr("bad element declaration")
			}
			cnt, err := strconv.Atoi(args[2])
			if err != nil || cnt < 0 {
				return nil, formatErr("bad element count %q", args[2])
			}
			curElement = args[1]
			if curElement == "vertex" {
				h.vertexCount = cnt
			} else if h.vertexCount < 0 {
				h.leading += cnt
			}
		case "property":
			if curElement != "vertex" || len(args) < 3 {
				continue
			}
			// List properties never occur on vertex elements of point cloud
			// exports; reject rather than mis-index the columns.
			if args[1] == "list" {
				return nil, formatErr("list property on vertex element")
			}
			h.vertexProps = append(h.vertexProps, property{name: args[len(args)-1], typ: args[1]})
		case "end_header":
			seenEnd = true
			h.payload = pos
		}
	}
	if !seenEnd {
		return nil, formatErr("no end_header")
	}
	if h.vertexCount < 0 {
		return nil, formatErr("no vertex element")
	}
	return h, nil
}

func propIndex(props []property, name string) int {
	for i, p := range props {
		if p.name == name {
			return i
		}
	}
	return -1
}

func parseColor(props []property, cols []string, ir, ig, ib int) (mat.Vec3, error) {
	var c mat.Vec3
	for i, col := range [3]int{ir, ig, ib} {
		v, err := strconv.ParseFloat(cols[col], 32)
		if err != nil {
			return mat.Vec3{}, fmt.Errorf("bad color %q", cols[col])
		}
		switch props[col].typ {
		case "float", "float32", "double", "float64":
			c[i] = float32(v)
		default:
			// Integer typed channels are 0-255.
			c[i] = float32(v) / 255
		}
	}
	return c, nil
}
