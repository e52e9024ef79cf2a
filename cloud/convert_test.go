package cloud

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/seqsense/pcgol/mat"
)

func TestPackColor(t *testing.T) {
	testCases := map[string]struct {
		color  mat.Vec3
		packed uint32
	}{
		"Black": {color: mat.Vec3{0, 0, 0}, packed: 0x000000},
		"White": {color: mat.Vec3{1, 1, 1}, packed: 0xffffff},
		"Red":   {color: mat.Vec3{1, 0, 0}, packed: 0xff0000},
		"Mixed": {color: mat.Vec3{0x12 / 255.0, 0x34 / 255.0, 0x56 / 255.0}, packed: 0x123456},
	}

	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			if p := PackColor(tt.color); p != tt.packed {
				t.Errorf("Expected packed color: %06x, got: %06x", tt.packed, p)
			}
			c := UnpackColor(tt.packed)
			for i := range c {
				if math.Abs(float64(c[i]-tt.color[i])) > 1.0/255 {
					t.Errorf("Expected unpacked color: %v, got: %v", tt.color, c)
					break
				}
			}
		})
	}
}

func TestPointCloudRoundTrip(t *testing.T) {
	// Colors are exact n/255 values so the packed color round trip is exact.
	b := New(FormatPCD, "rt.pcd", 3)
	b.Append(mat.Vec3{1, 2, 3}, mat.Vec3{1, 0, 0})
	b.Append(mat.Vec3{-4.5, 0.25, 6}, mat.Vec3{0, 1, 0})
	b.Append(mat.Vec3{7, -8, 9.125}, mat.Vec3{179.0 / 255, 179.0 / 255, 179.0 / 255})

	pp, err := ToPointCloud(b)
	if err != nil {
		t.Fatal(err)
	}
	if pp.Points != 3 {
		t.Fatalf("Expected 3 points, got: %d", pp.Points)
	}

	b2, err := FromPointCloud(pp, b.Format, b.SourceName)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(b, b2); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}
