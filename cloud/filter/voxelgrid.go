package filter

import (
	"errors"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc/filter/voxelgrid"

	"github.com/mapware/pcview/cloud"
)

// VoxelGrid reduces point density to roughly one point per cubic voxel of the
// given resolution. Unlike Stride it is geometry aware, so it thins dense
// regions harder than sparse ones. Point order is not preserved.
type VoxelGrid struct {
	Resolution float32
}

func (f VoxelGrid) Filter(b *cloud.PointBuffer) (*cloud.PointBuffer, error) {
	if f.Resolution <= 0 {
		return nil, errors.New("voxel resolution must be >0")
	}
	if b.Count == 0 {
		return b, nil
	}
	pp, err := cloud.ToPointCloud(b)
	if err != nil {
		return nil, err
	}
	vg := voxelgrid.New(mat.Vec3{f.Resolution, f.Resolution, f.Resolution})
	ppFiltered, err := vg.Filter(pp)
	if err != nil {
		return nil, err
	}
	return cloud.FromPointCloud(ppFiltered, b.Format, b.SourceName)
}
