package ply

import (
	"bufio"
	"fmt"
	"io"

	"github.com/mapware/pcview/cloud"
)

// MarshalASCII writes the buffer as an ascii PLY file. Coordinates are the
// source frame positions with 6 decimals, color channels are 0-255 integers
// and intensity, when present, is appended with 2 decimals.
func MarshalASCII(w io.Writer, b *cloud.PointBuffer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "ply")
	fmt.Fprintln(bw, "format ascii 1.0")
	fmt.Fprintf(bw, "element vertex %d\n", b.Count)
	fmt.Fprintln(bw, "property float x")
	fmt.Fprintln(bw, "property float y")
	fmt.Fprintln(bw, "property float z")
	fmt.Fprintln(bw, "property uchar red")
	fmt.Fprintln(bw, "property uchar green")
	fmt.Fprintln(bw, "property uchar blue")
	if b.Intensity != nil {
		fmt.Fprintln(bw, "property float intensity")
	}
	fmt.Fprintln(bw, "end_header")

	for i := 0; i < b.Count; i++ {
		p := b.OriginalVec3At(i)
		c := b.ColorAt(i)
		r := int(c[0]*255 + 0.5)
		g := int(c[1]*255 + 0.5)
		bb := int(c[2]*255 + 0.5)
		if b.Intensity != nil {
			fmt.Fprintf(bw, "%.6f %.6f %.6f %d %d %d %.2f\n", p[0], p[1], p[2], r, g, bb, b.Intensity[i])
		} else {
			fmt.Fprintf(bw, "%.6f %.6f %.6f %d %d %d\n", p[0], p[1], p[2], r, g, bb)
		}
	}
	return bw.Flush()
}
