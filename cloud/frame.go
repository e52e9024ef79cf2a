package cloud

import (
	"github.com/seqsense/pcgol/mat"
)

// The source frame is X=forward, Y=left, Z=up. The display frame is X=right,
// Y=up, Z=toward viewer. Both maps are pure axis permutations with sign flips,
// so they are exact inverses of each other with zero floating point drift.

// SourceToDisplay converts a source frame coordinate to the display frame.
func SourceToDisplay(v mat.Vec3) mat.Vec3 {
	return mat.Vec3{-v[1], v[2], -v[0]}
}

// DisplayToSource converts a display frame coordinate back to the source
// frame. The exporter does not use this map; it keeps the decoded source
// coordinates instead. It is provided for collaborators that only have a
// display frame point, like cursor placement.
func DisplayToSource(v mat.Vec3) mat.Vec3 {
	return mat.Vec3{-v[2], -v[0], v[1]}
}
