package pcd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/seqsense/pcgol/pc"

	"github.com/mapware/pcview/cloud"
)

// MarshalASCII writes the buffer as an ascii PCD file. Coordinates are the
// source frame positions with 6 decimals, color is a single packed 24-bit
// integer and intensity, when present, is appended with 2 decimals.
func MarshalASCII(w io.Writer, b *cloud.PointBuffer) error {
	bw := bufio.NewWriter(w)

	fields := "x y z rgb"
	size := "4 4 4 4"
	typ := "F F F U"
	count := "1 1 1 1"
	if b.Intensity != nil {
		fields += " intensity"
		size += " 4"
		typ += " F"
		count += " 1"
	}
	fmt.Fprintln(bw, "# .PCD v0.7 - Point Cloud Data file format")
	fmt.Fprintln(bw, "VERSION 0.7")
	fmt.Fprintln(bw, "FIELDS "+fields)
	fmt.Fprintln(bw, "SIZE "+size)
	fmt.Fprintln(bw, "TYPE "+typ)
	fmt.Fprintln(bw, "COUNT "+count)
	fmt.Fprintf(bw, "WIDTH %d\n", b.Count)
	fmt.Fprintln(bw, "HEIGHT 1")
	fmt.Fprintln(bw, "VIEWPOINT 0 0 0 1 0 0 0")
	fmt.Fprintf(bw, "POINTS %d\n", b.Count)
	fmt.Fprintln(bw, "DATA ascii")

	for i := 0; i < b.Count; i++ {
		p := b.OriginalVec3At(i)
		if b.Intensity != nil {
			fmt.Fprintf(bw, "%.6f %.6f %.6f %d %.2f\n",
				p[0], p[1], p[2], cloud.PackColor(b.ColorAt(i)), b.Intensity[i])
		} else {
			fmt.Fprintf(bw, "%.6f %.6f %.6f %d\n",
				p[0], p[1], p[2], cloud.PackColor(b.ColorAt(i)))
		}
	}
	return bw.Flush()
}

// Marshal writes the buffer as a binary PCD file through the pcgol
// marshaller.
func Marshal(w io.Writer, b *cloud.PointBuffer) error {
	pp, err := cloud.ToPointCloud(b)
	if err != nil {
		return err
	}
	return pc.Marshal(pp, w)
}
