package pcd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/seqsense/pcgol/mat"

	"github.com/mapware/pcview/cloud"
)

func samplePointBuffer() *cloud.PointBuffer {
	b := cloud.New(cloud.FormatPCD, "sample.pcd", 3)
	b.Append(mat.Vec3{1.5, -2.25, 3}, mat.Vec3{1, 0, 0})
	b.Append(mat.Vec3{-0.125, 4, 5.5}, mat.Vec3{0, 1, 0})
	b.Append(mat.Vec3{6, 7.75, -8}, mat.Vec3{0, 0, 1})
	return b
}

func TestMarshalASCIIRoundTrip(t *testing.T) {
	b := samplePointBuffer()
	var buf bytes.Buffer
	if err := MarshalASCII(&buf, b); err != nil {
		t.Fatal(err)
	}

	b2, err := Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b2.SourceName = b.SourceName
	if diff := cmp.Diff(b, b2); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalASCIIIntensity(t *testing.T) {
	b := samplePointBuffer()
	b.Intensity = []float32{0.5, 1.25, 100}
	var buf bytes.Buffer
	if err := MarshalASCII(&buf, b); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "FIELDS x y z rgb intensity") {
		t.Error("Intensity field must be declared in the header")
	}
	if !strings.Contains(out, "1.500000 -2.250000 3.000000 16711680 0.50") {
		t.Errorf("Unexpected point line formatting:\n%s", out)
	}
}

func TestMarshalBinaryRoundTrip(t *testing.T) {
	b := samplePointBuffer()
	var buf bytes.Buffer
	if err := Marshal(&buf, b); err != nil {
		t.Fatal(err)
	}

	b2, err := Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b2.SourceName = b.SourceName
	if diff := cmp.Diff(b, b2); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}
