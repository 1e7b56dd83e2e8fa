//go:build !giouring
// +build !giouring

// Simulated in-memory network backend, grounded on
// internal/uring/iouring_stub.go's role as the portable !giouring
// counterpart — except where the teacher's stub returns a build error
// (ublk has no meaning without a real ring), a kernel's network stack is
// exercised constantly in tests with no hardware at all, so this stub is
// a genuine Link rather than an error path.
package netio

import (
	"errors"
	"sync"
)

// ErrLinkClosed is returned by Recv/SendFrame once the link has been
// closed.
var ErrLinkClosed = errors.New("netio: link closed")

// Sim is a simulated Link backed by an in-process switch: frames sent on
// one Sim are delivered to every other Sim registered on the same Switch,
// filtered by destination MAC (or delivered to all for the broadcast
// address), the same fan-out a TAP bridge performs in the real backend.
type Sim struct {
	sw       *Switch
	localMAC [6]byte

	mu     sync.Mutex
	inbox  []Frame
	notify chan struct{}
	closed bool
}

// Switch is a trivial in-memory Ethernet segment joining any number of
// simulated Links, used by tests to exercise multi-party protocols (ARP
// requester + responder, DHCP client + server) without a real interface.
type Switch struct {
	mu    sync.Mutex
	links map[[6]byte]*Sim
}

// NewSwitch constructs an empty simulated segment.
func NewSwitch() *Switch {
	return &Switch{links: make(map[[6]byte]*Sim)}
}

// NewReal is named for parity with the giouring build's constructor so
// callers can use the same symbol name behind either build tag when a
// standalone (unswitched) link suffices; it attaches cfg's MAC to a fresh
// private switch.
func NewReal(cfg Config) (*Sim, error) {
	return NewSwitch().NewLink(cfg.LocalMAC), nil
}

// NewLink attaches a new simulated Link with the given MAC to the switch.
func (sw *Switch) NewLink(mac [6]byte) *Sim {
	s := &Sim{sw: sw, localMAC: mac, notify: make(chan struct{}, 1)}
	sw.mu.Lock()
	sw.links[mac] = s
	sw.mu.Unlock()
	return s
}

var broadcastMAC = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// SendFrame delivers payload to every link on the switch matching dst (or
// every link but the sender, for the broadcast address).
func (s *Sim) SendFrame(dst [6]byte, ethertype uint16, payload []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrLinkClosed
	}

	cp := append([]byte(nil), payload...)
	frame := Frame{Payload: cp, Ethertype: ethertype, Src: s.localMAC, Dst: dst}

	s.sw.mu.Lock()
	defer s.sw.mu.Unlock()
	for mac, peer := range s.sw.links {
		if peer == s {
			continue
		}
		if dst != broadcastMAC && dst != mac {
			continue
		}
		peer.deliver(frame)
	}
	return nil
}

func (s *Sim) deliver(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.inbox = append(s.inbox, f)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv blocks until a frame is queued for this link or it is closed.
func (s *Sim) Recv() (Frame, error) {
	for {
		s.mu.Lock()
		if len(s.inbox) > 0 {
			f := s.inbox[0]
			s.inbox = s.inbox[1:]
			s.mu.Unlock()
			return f, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Frame{}, ErrLinkClosed
		}
		s.mu.Unlock()
		<-s.notify
	}
}

func (s *Sim) LocalMAC() [6]byte { return s.localMAC }

// Close marks the link closed and wakes any blocked Recv call.
func (s *Sim) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.sw.mu.Lock()
	delete(s.sw.links, s.localMAC)
	s.sw.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

var _ Link = (*Sim)(nil)
