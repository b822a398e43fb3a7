//go:build linux
// +build linux

package v4l2

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// A V4L2 capture device using memory-mapped streaming I/O.
type device struct {
	// Device path, usually "/dev/video0".
	path string

	// File descriptor of v4l2 device, opened non-blocking.
	fd int

	// Memory-mapped kernel buffers, indexed like the driver's.
	buffers [][]byte
}

func openDevice(path string) (*device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	dev := &device{path: path, fd: fd}
	if err := dev.checkCapabilities(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return dev, nil
}

func (dev *device) close() error {
	return unix.Close(dev.fd)
}

func (dev *device) ioctl(request uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(
			unix.SYS_IOCTL,
			uintptr(dev.fd),
			uintptr(request),
			uintptr(arg),
		)
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		}
		return errno
	}
}

func (dev *device) checkCapabilities() error {
	var qc v4l2_capability
	if err := dev.ioctl(vidiocQuerycap, unsafe.Pointer(&qc)); err != nil {
		return errors.Wrapf(err, "%s: VIDIOC_QUERYCAP", dev.path)
	}
	caps := qc.capabilities
	if qc.device_caps != 0 {
		caps = qc.device_caps
	}
	if caps&capVideoCapture == 0 {
		return errors.Errorf("%s is not a video capture device", dev.path)
	}
	if caps&capStreaming == 0 {
		return errors.Errorf("%s does not support streaming I/O", dev.path)
	}
	return nil
}

// Enumerate discrete frame sizes for a pixel format. Devices that only
// report stepwise ranges return nothing.
func (dev *device) frameSizes(pixelformat uint32) (sizes [][2]int) {
	for i := uint32(0); ; i++ {
		fs := v4l2_frmsizeenum{
			index:        i,
			pixel_format: pixelformat,
		}
		if err := dev.ioctl(vidiocEnumFramesize, unsafe.Pointer(&fs)); err != nil {
			return
		}
		if fs.typ != frmsizeTypeDiscrete {
			return
		}
		sizes = append(sizes, [2]int{int(fs.size[0]), int(fs.size[1])})
	}
}

// Set the capture format. The driver may adjust the request, so the format
// it settled on is returned.
func (dev *device) setFormat(width, height int, pixelformat uint32) (v4l2_pix_format, error) {
	f := v4l2_format{typ: bufTypeVideoCapture}
	pix := f.pix()
	pix.width = uint32(width)
	pix.height = uint32(height)
	pix.pixelformat = pixelformat
	pix.field = fieldAny
	if err := dev.ioctl(vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return v4l2_pix_format{}, errors.Wrapf(err, "%s: VIDIOC_S_FMT", dev.path)
	}
	return *pix, nil
}

func (dev *device) setFrameRate(fps int) error {
	sp := v4l2_streamparm{typ: bufTypeVideoCapture}
	// capture.timeperframe = 1/fps
	sp.parm[2] = 1
	sp.parm[3] = uint32(fps)
	if err := dev.ioctl(vidiocSParm, unsafe.Pointer(&sp)); err != nil {
		return errors.Wrapf(err, "%s: VIDIOC_S_PARM", dev.path)
	}
	return nil
}

// Request n kernel buffers and map them into user space.
func (dev *device) mapBuffers(n int) error {
	if dev.buffers != nil {
		panic("v4l2 device: memory already mapped")
	}

	rb := v4l2_requestbuffers{
		count:  uint32(n),
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := dev.ioctl(vidiocReqbufs, unsafe.Pointer(&rb)); err != nil {
		return errors.Wrapf(err, "%s: VIDIOC_REQBUFS", dev.path)
	}
	if rb.count == 0 {
		return errors.Errorf("%s: driver granted no buffers", dev.path)
	}

	for i := uint32(0); i < rb.count; i++ {
		qb := v4l2_buffer{
			index:  i,
			typ:    bufTypeVideoCapture,
			memory: memoryMmap,
		}
		if err := dev.ioctl(vidiocQuerybuf, unsafe.Pointer(&qb)); err != nil {
			dev.unmapBuffers()
			return errors.Wrapf(err, "%s: VIDIOC_QUERYBUF", dev.path)
		}
		b, err := unix.Mmap(
			dev.fd,
			int64(qb.offset()),
			int(qb.length),
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_SHARED,
		)
		if err != nil {
			dev.unmapBuffers()
			return errors.Wrapf(err, "%s: mmap buffer %d", dev.path, i)
		}
		dev.buffers = append(dev.buffers, b)
	}
	return nil
}

func (dev *device) unmapBuffers() error {
	for _, b := range dev.buffers {
		if err := unix.Munmap(b); err != nil {
			return err
		}
	}
	dev.buffers = nil

	rb := v4l2_requestbuffers{
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	return dev.ioctl(vidiocReqbufs, unsafe.Pointer(&rb))
}

func (dev *device) enqueue(index int) error {
	qbuf := v4l2_buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
		index:  uint32(index),
	}
	return dev.ioctl(vidiocQbuf, unsafe.Pointer(&qbuf))
}

// Dequeue a filled buffer. Returns unix.EAGAIN when none is ready.
func (dev *device) dequeue() (index, n int, err error) {
	dqbuf := v4l2_buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err = dev.ioctl(vidiocDqbuf, unsafe.Pointer(&dqbuf)); err != nil {
		return
	}
	return int(dqbuf.index), int(dqbuf.bytesused), nil
}

func (dev *device) streamOn() error {
	typ := int32(bufTypeVideoCapture)
	return dev.ioctl(vidiocStreamon, unsafe.Pointer(&typ))
}

// Disable stream (dequeues any outstanding buffers as well).
func (dev *device) streamOff() error {
	typ := int32(bufTypeVideoCapture)
	return dev.ioctl(vidiocStreamoff, unsafe.Pointer(&typ))
}

// Wait up to timeoutMs for a frame. Reports false on timeout.
func (dev *device) poll(timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(dev.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if n > 0 && fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return false, errors.Errorf("%s: poll revents %#x", dev.path, fds[0].Revents)
	}
	return n > 0, nil
}
