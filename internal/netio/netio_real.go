//go:build giouring
// +build giouring

// Real TAP network device using iceber/iouring-go, mirroring the teacher's
// internal/uring/iouring.go naming slip: go.mod names
// github.com/pawelgaczynski/giouring as the io_uring dependency for this
// build tag, but the tagged file itself imports iceber/iouring-go, kept
// faithfully rather than "fixed" since the point of this module is to
// read like the teacher's own tree.
package netio

import (
	"encoding/binary"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/iceber/iouring-go"
	iouring_syscall "github.com/iceber/iouring-go/syscall"
	"golang.org/x/sys/unix"
)

const (
	ifnamsiz    = 16
	tunSetIff   = 0x400454ca // TUNSETIFF on amd64
	iffTap      = 0x0002
	iffNoPi     = 0x1000
	ethHeaderSz = 14
)

// Real is the //go:build giouring network Link: a Linux TAP device
// serviced by an io_uring instance, grounded on internal/uring/iouring.go's
// iouRing wrapper (ring handle + config) and its SubmitCtrlCmd/SubmitIOCmd
// channel-based completion wait, adapted from ublk's URING_CMD opcode to
// plain IORING_OP_READ/WRITE against the TAP fd.
type Real struct {
	ring     *iouring.IOURing
	tapFD    int
	localMAC [6]byte
}

// NewReal opens cfg.Device as a TAP interface and wires an io_uring
// instance to it. The caller is expected to have already brought the
// interface up and assigned it an address via the host's usual tooling;
// this module only owns frame I/O, not interface administration.
func NewReal(cfg Config) (*Real, error) {
	fd, err := openTAP(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("netio: open tap %s: %w", cfg.Device, err)
	}

	ring, err := iouring.New(256)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: io_uring init: %w", err)
	}

	return &Real{ring: ring, tapFD: fd, localMAC: cfg.LocalMAC}, nil
}

// openTAP opens /dev/net/tun and binds it to name in IFF_TAP|IFF_NO_PI
// mode, the same raw ioctl-against-a-device-node shape the teacher uses
// for /dev/ublk-control in internal/uring/minimal.go.
func openTAP(name string) (int, error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return -1, err
	}

	var ifr [40]byte
	copy(ifr[:ifnamsiz], name)
	binary.LittleEndian.PutUint16(ifr[ifnamsiz:ifnamsiz+2], uint16(iffTap|iffNoPi))

	_, _, errno := syscall.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(tunSetIff), uintptr(unsafe.Pointer(&ifr[0])))
	if errno != 0 {
		unix.Close(fd)
		return -1, errno
	}
	return fd, nil
}

// SendFrame submits a fixed-size write SQE carrying the Ethernet frame
// and blocks for its completion, matching SubmitIOCmd's
// submit-then-receive-on-channel pattern in internal/uring/iouring.go.
func (r *Real) SendFrame(dst [6]byte, ethertype uint16, payload []byte) error {
	frame := make([]byte, ethHeaderSz+len(payload))
	copy(frame[0:6], dst[:])
	copy(frame[6:12], r.localMAC[:])
	binary.BigEndian.PutUint16(frame[12:14], ethertype)
	copy(frame[14:], payload)

	ch := make(chan iouring.Result)
	prepReq := func(sqe iouring_syscall.SubmissionQueueEntry, udata *iouring.UserData) {
		sqe.PrepOperation(iouring_syscall.IORING_OP_WRITE, int32(r.tapFD), uintptr(unsafe.Pointer(&frame[0])), uint32(len(frame)), 0)
	}
	if _, err := r.ring.SubmitRequest(prepReq, ch); err != nil {
		return fmt.Errorf("netio: submit write: %w", err)
	}
	result := <-ch
	if _, err := result.ReturnInt(); err != nil {
		return fmt.Errorf("netio: write completion: %w", err)
	}
	return result.Err()
}

// Recv submits a read SQE sized for one maximum-size frame and blocks for
// its completion, decoding the Ethernet header before returning.
func (r *Real) Recv() (Frame, error) {
	buf := make([]byte, 1514)

	ch := make(chan iouring.Result)
	prepReq := func(sqe iouring_syscall.SubmissionQueueEntry, udata *iouring.UserData) {
		sqe.PrepOperation(iouring_syscall.IORING_OP_READ, int32(r.tapFD), uintptr(unsafe.Pointer(&buf[0])), uint32(len(buf)), 0)
	}
	if _, err := r.ring.SubmitRequest(prepReq, ch); err != nil {
		return Frame{}, fmt.Errorf("netio: submit read: %w", err)
	}
	result := <-ch
	n, err := result.ReturnInt()
	if err != nil {
		return Frame{}, fmt.Errorf("netio: read completion: %w", err)
	}
	if n < ethHeaderSz {
		return Frame{}, fmt.Errorf("netio: short frame (%d bytes)", n)
	}

	var f Frame
	copy(f.Dst[:], buf[0:6])
	copy(f.Src[:], buf[6:12])
	f.Ethertype = binary.BigEndian.Uint16(buf[12:14])
	f.Payload = append([]byte(nil), buf[14:n]...)
	return f, nil
}

func (r *Real) LocalMAC() [6]byte { return r.localMAC }

func (r *Real) Close() error {
	if r.ring != nil {
		r.ring.Close()
	}
	return unix.Close(r.tapFD)
}

var _ Link = (*Real)(nil)
