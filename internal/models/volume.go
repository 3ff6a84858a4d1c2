package models

import "fmt"

// Volume represents a registered, spatially normalized 3D PET volume or a
// mask defined on the same grid.
type Volume struct {
	// Data is the 3D volume data as a 1D array with x varying fastest:
	// idx = z*Width*Height + y*Width + x
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the depth of the volume in voxels
	Depth int

	// VoxelSize is the physical size of each voxel in mm. It is carried
	// through from the loader and never used for resampling.
	VoxelSize struct {
		X, Y, Z float64
	}
}

// NewVolume allocates a zero-filled volume with the given dimensions.
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Len returns the number of voxels described by the volume dimensions.
func (v *Volume) Len() int {
	return v.Width * v.Height * v.Depth
}

// Index returns the flat index of voxel (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the intensity at voxel (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores an intensity at voxel (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// SameShape reports whether both volumes share (x, y, z) dimensions and
// carry the matching amount of data.
func (v *Volume) SameShape(other *Volume) bool {
	return v.Width == other.Width &&
		v.Height == other.Height &&
		v.Depth == other.Depth &&
		len(v.Data) == len(other.Data)
}

// Shape formats the dimensions as WxHxD.
func (v *Volume) Shape() string {
	return fmt.Sprintf("%dx%dx%d", v.Width, v.Height, v.Depth)
}
