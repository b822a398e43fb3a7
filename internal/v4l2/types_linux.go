//go:build linux
// +build linux

package v4l2

import (
	"unsafe"
)

// Subset of <linux/videodev2.h> needed for memory-mapped streaming capture.

const (
	bufTypeVideoCapture = 1
	memoryMmap          = 1
	fieldAny            = 0
	frmsizeTypeDiscrete = 1

	capVideoCapture = 0x00000001
	capStreaming    = 0x04000000
)

// fourcc builds a V4L2 pixel format code.
func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	pixFmtNV21  = fourcc('N', 'V', '2', '1')
	pixFmtNV12  = fourcc('N', 'V', '1', '2')
	pixFmtYUYV  = fourcc('Y', 'U', 'Y', 'V')
	pixFmtRGB24 = fourcc('R', 'G', 'B', '3')
)

type v4l2_capability struct {
	driver       [16]uint8
	card         [32]uint8
	bus_info     [32]uint8
	version      uint32
	capabilities uint32
	device_caps  uint32
	reserved     [3]uint32
}

type v4l2_pix_format struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcr_enc    uint32
	quantization uint32
	xfer_func    uint32
}

// The format union contains pointers, so it is pointer-aligned.
type v4l2_format struct {
	typ uint32
	_   [unsafe.Sizeof(uintptr(0)) - 4]byte
	fmt [200]byte
}

func (f *v4l2_format) pix() *v4l2_pix_format {
	return (*v4l2_pix_format)(unsafe.Pointer(&f.fmt[0]))
}

type v4l2_requestbuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

type v4l2_timeval struct {
	sec  int
	usec int
}

type v4l2_timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2_buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp v4l2_timeval
	timecode  v4l2_timecode
	sequence  uint32
	memory    uint32
	m         uintptr // union { offset; userptr; planes; fd }
	length    uint32
	reserved2 uint32
	request   uint32
}

// offset reads the mmap offset member of the m union.
func (b *v4l2_buffer) offset() uint32 {
	return *(*uint32)(unsafe.Pointer(&b.m))
}

type v4l2_frmsizeenum struct {
	index        uint32
	pixel_format uint32
	typ          uint32
	size         [6]uint32 // union { discrete; stepwise }
	reserved     [2]uint32
}

type v4l2_streamparm struct {
	typ  uint32
	parm [50]uint32 // union { capture; output; raw_data[200] }
}

// ioctl request encoding from <asm-generic/ioctl.h>.
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uint {
	return uint(dir<<30 | size<<16 | 'V'<<8 | nr)
}

var (
	vidiocQuerycap      = ioc(iocRead, 0, unsafe.Sizeof(v4l2_capability{}))
	vidiocSFmt          = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(v4l2_format{}))
	vidiocReqbufs       = ioc(iocRead|iocWrite, 8, unsafe.Sizeof(v4l2_requestbuffers{}))
	vidiocQuerybuf      = ioc(iocRead|iocWrite, 9, unsafe.Sizeof(v4l2_buffer{}))
	vidiocQbuf          = ioc(iocRead|iocWrite, 15, unsafe.Sizeof(v4l2_buffer{}))
	vidiocDqbuf         = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(v4l2_buffer{}))
	vidiocStreamon      = ioc(iocWrite, 18, unsafe.Sizeof(int32(0)))
	vidiocStreamoff     = ioc(iocWrite, 19, unsafe.Sizeof(int32(0)))
	vidiocSParm         = ioc(iocRead|iocWrite, 22, unsafe.Sizeof(v4l2_streamparm{}))
	vidiocEnumFramesize = ioc(iocRead|iocWrite, 74, unsafe.Sizeof(v4l2_frmsizeenum{}))
)
