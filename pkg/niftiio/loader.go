// Package niftiio loads spatially normalized PET volumes and masks from
// NIfTI-1 files and discovers subject files in cohort directories.
package niftiio

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/henghuang/nifti"

	"centiloid/internal/models"
)

// headerSize is sizeof_hdr of a NIfTI-1 header.
const headerSize = 348

var (
	// ErrBadHeader is returned for files that are not single-file NIfTI-1
	// images (wrong sizeof_hdr or magic, or an impossible vox_offset).
	ErrBadHeader = errors.New("niftiio: not a single-file NIfTI-1 image")

	// ErrBadDimensions is returned for files without three spatial dimensions.
	ErrBadDimensions = errors.New("niftiio: volume does not have 3 spatial dimensions")

	// ErrUnsupportedDatatype is returned for voxel types that cannot be read
	// as real numbers, or whose bitpix disagrees with the datatype.
	ErrUnsupportedDatatype = errors.New("niftiio: unsupported voxel datatype")

	// ErrTruncated is returned when the file holds fewer voxel bytes than its
	// header declares.
	ErrTruncated = errors.New("niftiio: voxel data shorter than header declares")
)

// voxelType describes how one NIfTI datatype is stored.
type voxelType struct {
	bitpix int16
	decode func(b []byte, order binary.ByteOrder) float64
}

// voxelTypes maps NIfTI-1 datatype codes to decoders. Complex and RGB types
// are not intensities and are left out.
var voxelTypes = map[int16]voxelType{
	2:    {8, func(b []byte, _ binary.ByteOrder) float64 { return float64(b[0]) }},
	4:    {16, func(b []byte, o binary.ByteOrder) float64 { return float64(int16(o.Uint16(b))) }},
	8:    {32, func(b []byte, o binary.ByteOrder) float64 { return float64(int32(o.Uint32(b))) }},
	16:   {32, func(b []byte, o binary.ByteOrder) float64 { return float64(math.Float32frombits(o.Uint32(b))) }},
	64:   {64, func(b []byte, o binary.ByteOrder) float64 { return math.Float64frombits(o.Uint64(b)) }},
	256:  {8, func(b []byte, _ binary.ByteOrder) float64 { return float64(int8(b[0])) }},
	512:  {16, func(b []byte, o binary.ByteOrder) float64 { return float64(o.Uint16(b)) }},
	768:  {32, func(b []byte, o binary.ByteOrder) float64 { return float64(o.Uint32(b)) }},
	1024: {64, func(b []byte, o binary.ByteOrder) float64 { return float64(int64(o.Uint64(b))) }},
	1280: {64, func(b []byte, o binary.ByteOrder) float64 { return float64(o.Uint64(b)) }},
}

// Loader reads .nii and .nii.gz files. The zero value is ready to use.
type Loader struct{}

// Load reads the first time frame of the NIfTI file at path. Either byte
// order is accepted, and scl_slope/scl_inter are applied when the slope is
// set. Geometry is carried over as voxel size only; no reorientation or
// resampling is done.
func (Loader) Load(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}
		defer gz.Close()
		r = gz
	}

	header, order, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	vt, err := checkHeader(&header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Extensions between the header and vox_offset are skipped.
	if _, err := io.CopyN(io.Discard, r, int64(header.VoxOffset)-headerSize); err != nil {
		return nil, readError(path, err, fmt.Sprintf("file ends before vox_offset %g", header.VoxOffset))
	}

	nx, ny, nz := int(header.Dim[1]), int(header.Dim[2]), int(header.Dim[3])
	size := int(vt.bitpix) / 8
	want := int64(nx) * int64(ny) * int64(nz) * int64(size)
	payload, err := io.ReadAll(io.LimitReader(r, want))
	if err != nil {
		return nil, readError(path, err, "reading voxel data")
	}
	if int64(len(payload)) < want {
		return nil, fmt.Errorf("%w: %s: %d of %d voxel bytes present", ErrTruncated, path, len(payload), want)
	}

	vol := models.NewVolume(nx, ny, nz)
	vol.VoxelSize.X = float64(header.Pixdim[1])
	vol.VoxelSize.Y = float64(header.Pixdim[2])
	vol.VoxelSize.Z = float64(header.Pixdim[3])

	slope, inter := float64(header.SclSlope), float64(header.SclInter)
	scaled := slope != 0 && !math.IsNaN(slope) && !math.IsInf(slope, 0)
	for i := range vol.Data {
		v := vt.decode(payload[i*size:(i+1)*size], order)
		if scaled {
			v = v*slope + inter
		}
		vol.Data[i] = v
	}

	return vol, nil
}

// readHeader decodes the 348-byte header, detecting the byte order from
// sizeof_hdr.
func readHeader(r io.Reader) (nifti.Nifti1Header, binary.ByteOrder, error) {
	var header nifti.Nifti1Header

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return header, nil, fmt.Errorf("%w: short header: %v", ErrBadHeader, err)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(buf) == headerSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(buf) == headerSize:
		order = binary.BigEndian
	default:
		return header, nil, fmt.Errorf("%w: sizeof_hdr is not %d", ErrBadHeader, headerSize)
	}

	if err := binary.Read(bytes.NewReader(buf), order, &header); err != nil {
		return header, nil, pfx.Err(err)
	}
	if header.Magic != [4]byte{'n', '+', '1', 0} {
		return header, nil, fmt.Errorf("%w: magic %q", ErrBadHeader, header.Magic[:3])
	}
	return header, order, nil
}

func checkHeader(h *nifti.Nifti1Header) (voxelType, error) {
	if h.Dim[0] < 3 || h.Dim[0] > 7 || h.Dim[1] < 1 || h.Dim[2] < 1 || h.Dim[3] < 1 {
		return voxelType{}, fmt.Errorf("%w: dim %v", ErrBadDimensions, h.Dim)
	}

	vt, ok := voxelTypes[h.Datatype]
	if !ok {
		return voxelType{}, fmt.Errorf("%w: datatype %d", ErrUnsupportedDatatype, h.Datatype)
	}
	if h.Bitpix != vt.bitpix {
		return voxelType{}, fmt.Errorf("%w: datatype %d with bitpix %d", ErrUnsupportedDatatype, h.Datatype, h.Bitpix)
	}

	off := float64(h.VoxOffset)
	if math.IsNaN(off) || off < headerSize || off > math.MaxInt32 {
		return voxelType{}, fmt.Errorf("%w: vox_offset %g", ErrBadHeader, h.VoxOffset)
	}
	return vt, nil
}

// readError reports a short read as ErrTruncated and anything else as an
// I/O error.
func readError(path string, err error, detail string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: %s", ErrTruncated, path, detail)
	}
	return pfx.Err(fmt.Errorf("%s: %w", path, err))
}
