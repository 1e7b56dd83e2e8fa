// Package netproto implements the network protocol state machines that
// sit above internal/fsbuf and internal/codec: ARP resolution, the DHCP
// client, and a single-client TFTP server. Each is modeled as a
// Controller-shaped type — state plus a logger plus methods that
// marshal/parse one wire header at a time — grounded on the teacher's
// internal/ctrl.Controller (AddDevice/SetParams/StartDevice: one method
// per control operation, each building a command struct, submitting it,
// and logging the result).
package netproto

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"

	"github.com/ehrlich-b/rtos-core/internal/codec"
	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/logging"
	"github.com/ehrlich-b/rtos-core/internal/sleep"
)

// FrameSender transmits a fully-framed Ethernet payload; implemented by
// internal/netio.
type FrameSender interface {
	SendFrame(dst [6]byte, ethertype uint16, payload []byte) error
}

const (
	arpOperRequest = 1
	arpOperReply   = 2
	ethTypeARP     = 0x0806
)

// ARPEntry caches one resolved IPv4-to-MAC mapping.
type ARPEntry struct {
	IP       [4]byte
	MAC      [6]byte
	Expires  sleep.Tick
	Resolved bool
}

// pendingResolve is one caller blocked waiting for a specific IP to
// resolve; multiple callers resolving the same IP concurrently share a
// single in-flight request rather than each sending their own (the
// "coalescing" property).
type pendingResolve struct {
	ip      [4]byte
	waiters []chan [6]byte
	retries int
}

// ARPResolver maintains the address cache and in-flight request
// coalescing queue.
type ARPResolver struct {
	sender  FrameSender
	localIP [4]byte
	localMAC [6]byte
	log     *logging.Logger

	mu      sync.Mutex
	cache   map[[4]byte]*ARPEntry
	pending map[[4]byte]*pendingResolve
}

// NewARPResolver constructs a resolver bound to the given link identity.
func NewARPResolver(sender FrameSender, localIP [4]byte, localMAC [6]byte, logger *logging.Logger) *ARPResolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &ARPResolver{
		sender:   sender,
		localIP:  localIP,
		localMAC: localMAC,
		log:      logger,
		cache:    make(map[[4]byte]*ARPEntry),
		pending:  make(map[[4]byte]*pendingResolve),
	}
}

var ErrARPRetriesExhausted = errors.New("netproto: arp resolution retries exhausted")

// Resolve returns the cached MAC for ip if present and unexpired;
// otherwise it joins (or starts) an in-flight request and returns at once
// with a channel that receives the MAC when a reply arrives, or is closed
// with no value once RetryTimeout gives up.
func (r *ARPResolver) Resolve(ip [4]byte, now sleep.Tick) (ch <-chan [6]byte, alreadyResolved [6]byte, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, found := r.cache[ip]; found && sleep.Before(now, e.Expires) {
		return nil, e.MAC, true
	}

	p, inFlight := r.pending[ip]
	waiter := make(chan [6]byte, 1)
	if inFlight {
		p.waiters = append(p.waiters, waiter)
		return waiter, [6]byte{}, false
	}

	p = &pendingResolve{ip: ip, waiters: []chan [6]byte{waiter}}
	r.pending[ip] = p
	r.sendRequest(ip)
	return waiter, [6]byte{}, false
}

func (r *ARPResolver) sendRequest(ip [4]byte) {
	buf := make([]byte, 28)
	_ = codec.HeaderGenerate(codec.ARPHeader, buf, codec.Values{
		"htype": 1, "ptype": 0x0800, "hlen": 6, "plen": 4, "oper": arpOperRequest,
	})
	copy(buf[8:14], r.localMAC[:])
	copy(buf[14:18], r.localIP[:])
	// Target hardware address left zero for a request.
	copy(buf[24:28], ip[:])

	broadcast := [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if err := r.sender.SendFrame(broadcast, ethTypeARP, buf); err != nil {
		r.log.Warn("arp request send failed", "ip", net.IP(ip[:]).String(), "err", err)
	}
}

// RetryTimeout handles one retry deadline for ip. Every call counts one
// retry, whatever became of the previous send: the first
// ARPRetryLimit-1 calls re-send the pending request, and the call that
// brings the count to ARPRetryLimit sends nothing and fails every
// coalesced waiter by closing its channel.
func (r *ARPResolver) RetryTimeout(ip [4]byte) {
	r.mu.Lock()
	p, ok := r.pending[ip]
	if !ok {
		r.mu.Unlock()
		return
	}
	p.retries++
	if p.retries >= constants.ARPRetryLimit {
		delete(r.pending, ip)
		waiters := p.waiters
		r.mu.Unlock()
		for _, w := range waiters {
			close(w)
		}
		return
	}
	r.mu.Unlock()
	r.sendRequest(ip)
}

// HandleFrame processes a received ARP frame: a request for our own IP
// gets a reply; a reply resolving a pending IP populates the cache and
// wakes every coalesced waiter.
func (r *ARPResolver) HandleFrame(payload []byte, now sleep.Tick) error {
	vals, err := codec.HeaderParse(codec.ARPHeader, payload)
	if err != nil {
		return err
	}
	if len(payload) < 28 {
		return codec.ErrShortBuffer
	}

	var sha [6]byte
	var spa, tpa [4]byte
	copy(sha[:], payload[8:14])
	copy(spa[:], payload[14:18])
	copy(tpa[:], payload[24:28])

	switch vals["oper"] {
	case arpOperRequest:
		if tpa == r.localIP {
			r.sendReply(sha, spa)
		}
	case arpOperReply:
		r.mu.Lock()
		r.cache[spa] = &ARPEntry{IP: spa, MAC: sha, Expires: now + constants.ARPEntryLifetimeTicks, Resolved: true}
		p, ok := r.pending[spa]
		if ok {
			delete(r.pending, spa)
		}
		r.mu.Unlock()
		if ok {
			for _, w := range p.waiters {
				w <- sha
				close(w)
			}
		}
	}
	return nil
}

func (r *ARPResolver) sendReply(dstMAC [6]byte, dstIP [4]byte) {
	buf := make([]byte, 28)
	_ = codec.HeaderGenerate(codec.ARPHeader, buf, codec.Values{
		"htype": 1, "ptype": 0x0800, "hlen": 6, "plen": 4, "oper": arpOperReply,
	})
	copy(buf[8:14], r.localMAC[:])
	copy(buf[14:18], r.localIP[:])
	copy(buf[18:24], dstMAC[:])
	copy(buf[24:28], dstIP[:])

	if err := r.sender.SendFrame(dstMAC, ethTypeARP, buf); err != nil {
		r.log.Warn("arp reply send failed", "err", err)
	}
}

func ipToUint32(ip [4]byte) uint32 { return binary.BigEndian.Uint32(ip[:]) }
