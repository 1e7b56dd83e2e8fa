package netproto

import (
	"encoding/binary"
	"math/rand"
	"sync"

	"github.com/ehrlich-b/rtos-core/internal/codec"
	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/logging"
	"github.com/ehrlich-b/rtos-core/internal/sleep"
)

// DHCPState is the client's position in the lease lifecycle.
type DHCPState int

const (
	DHCPStopped DHCPState = iota
	DHCPDiscover
	DHCPRequest
	DHCPBound
	DHCPRenew
	DHCPRebind
)

func (s DHCPState) String() string {
	switch s {
	case DHCPStopped:
		return "STOPPED"
	case DHCPDiscover:
		return "DISCOVER"
	case DHCPRequest:
		return "REQUEST"
	case DHCPBound:
		return "BOUND"
	case DHCPRenew:
		return "RENEW"
	case DHCPRebind:
		return "REBIND"
	default:
		return "UNKNOWN"
	}
}

const (
	dhcpMagicCookie = 0x63825363

	dhcpOptMessageType  = 53
	dhcpOptServerID     = 54
	dhcpOptRequestedIP  = 50
	dhcpOptLeaseTime    = 51
	dhcpOptSubnetMask   = 1
	dhcpOptRouter       = 3
	dhcpOptEnd          = 255

	dhcpMsgDiscover = 1
	dhcpMsgOffer    = 2
	dhcpMsgRequest  = 3
	dhcpMsgAck      = 5
	dhcpMsgNak      = 6
)

// DHCPLease holds the negotiated lease parameters once bound.
type DHCPLease struct {
	IP         [4]byte
	ServerID   [4]byte
	SubnetMask [4]byte
	Router     [4]byte
	LeaseTicks sleep.Tick
}

// DHCPClient implements the DISCOVER/OFFER/REQUEST/ACK exchange plus
// RENEW/REBIND timer-driven refresh, grounded on
// _examples/original_source/rtos/net/net_dhcp_client.c's explicit state
// field and timeout-doubling backoff.
type DHCPClient struct {
	sender   FrameSender
	localMAC [6]byte
	log      *logging.Logger

	mu      sync.Mutex
	state   DHCPState
	xid     uint32
	timeout sleep.Tick // current backoff, ticks
	lease   DHCPLease
}

// NewDHCPClient constructs a stopped client; call Start to begin
// DISCOVER.
func NewDHCPClient(sender FrameSender, localMAC [6]byte, logger *logging.Logger) *DHCPClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &DHCPClient{sender: sender, localMAC: localMAC, log: logger, state: DHCPStopped}
}

func (c *DHCPClient) State() DHCPState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *DHCPClient) Lease() DHCPLease {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lease
}

// Start transitions STOPPED -> DISCOVER and sends the first DISCOVER.
func (c *DHCPClient) Start(xid uint32) {
	c.mu.Lock()
	c.state = DHCPDiscover
	c.xid = xid
	c.timeout = constants.DHCPInitialTimeoutTicks
	c.mu.Unlock()

	c.sendDiscover()
}

// Timeout handles one expiry of the current backoff with no response and
// returns the new backoff. Per the redesign
// resolution in DESIGN.md, the timeout doubles each retry up to
// DHCPMaxTimeoutTicks, then holds there (never resets to the initial
// value) until a response arrives, a state transition resets it, or
// Start is called again.
//
// State transitions on timeout follow dhcp_change_state's RENEW ->
// REBIND -> DISCOVER fallback chain: a BOUND lease whose renewal timer
// fires moves to RENEW; an unanswered RENEW moves to REBIND; an
// unanswered REBIND gives up on the lease entirely and starts over at
// DISCOVER. Each of these is a transition into DISCOVER/RENEW/REBIND, so
// each refreshes the transaction ID per SPEC_FULL.md §6. A DISCOVER or
// REQUEST retry within the same state keeps the current transaction ID.
func (c *DHCPClient) Timeout() sleep.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.timeout * 2
	if next > constants.DHCPMaxTimeoutTicks {
		next = constants.DHCPMaxTimeoutTicks
	}
	c.timeout = next

	switch c.state {
	case DHCPDiscover:
		c.mu.Unlock()
		c.sendDiscover()
		c.mu.Lock()
	case DHCPRequest:
		c.mu.Unlock()
		c.sendRequest(c.lease.ServerID, c.lease.IP)
		c.mu.Lock()
	case DHCPBound:
		// T1 (renewal timer) expired: try to renew directly with the
		// leasing server.
		c.state = DHCPRenew
		c.timeout = constants.DHCPInitialTimeoutTicks
		c.refreshXID()
		c.mu.Unlock()
		c.sendRequest(c.lease.ServerID, c.lease.IP)
		c.mu.Lock()
	case DHCPRenew:
		// T2 (rebind timer) expired with no renewal ACK: broaden to a
		// broadcast REBIND.
		c.state = DHCPRebind
		c.timeout = constants.DHCPInitialTimeoutTicks
		c.refreshXID()
		c.mu.Unlock()
		c.sendRequest(c.lease.ServerID, c.lease.IP)
		c.mu.Lock()
	case DHCPRebind:
		// Lease fully expired with no response: start over.
		c.state = DHCPDiscover
		c.timeout = constants.DHCPInitialTimeoutTicks
		c.refreshXID()
		c.mu.Unlock()
		c.sendDiscover()
		c.mu.Lock()
	}
	return c.timeout
}

// refreshXID generates a new transaction ID, called on every entry to
// DISCOVER, RENEW, or REBIND per dhcp_change_state's "if we need to
// start a new transaction in next state" guard. Must be called with
// c.mu held.
func (c *DHCPClient) refreshXID() {
	c.xid = rand.Uint32()
}

func (c *DHCPClient) sendDiscover() {
	buf := make([]byte, 300)
	c.fillHeader(buf)
	n := 236 + 4
	binary.BigEndian.PutUint32(buf[236:240], dhcpMagicCookie)
	n += writeOpt(buf[n:], dhcpOptMessageType, []byte{dhcpMsgDiscover})
	n += writeOpt(buf[n:], dhcpOptEnd, nil)
	c.broadcast(buf[:n])
}

func (c *DHCPClient) sendRequest(serverID, reqIP [4]byte) {
	buf := make([]byte, 300)
	c.fillHeader(buf)
	n := 236 + 4
	binary.BigEndian.PutUint32(buf[236:240], dhcpMagicCookie)
	n += writeOpt(buf[n:], dhcpOptMessageType, []byte{dhcpMsgRequest})
	n += writeOpt(buf[n:], dhcpOptRequestedIP, reqIP[:])
	n += writeOpt(buf[n:], dhcpOptServerID, serverID[:])
	n += writeOpt(buf[n:], dhcpOptEnd, nil)
	c.broadcast(buf[:n])
}

func (c *DHCPClient) fillHeader(buf []byte) {
	_ = codec.HeaderGenerate(codec.DHCPHeader, buf, codec.Values{
		"op": 1, "htype": 1, "hlen": 6, "hops": 0, "xid": c.xid,
	})
	copy(buf[28:34], c.localMAC[:])
}

func (c *DHCPClient) broadcast(payload []byte) {
	broadcast := [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if err := c.sender.SendFrame(broadcast, 0x0800, payload); err != nil {
		c.log.Warn("dhcp send failed", "err", err)
	}
}

func writeOpt(buf []byte, code byte, val []byte) int {
	if code == dhcpOptEnd {
		buf[0] = dhcpOptEnd
		return 1
	}
	buf[0] = code
	buf[1] = byte(len(val))
	copy(buf[2:], val)
	return 2 + len(val)
}

// HandleMessage parses a received DHCP message and advances the state
// machine: an OFFER during DISCOVER triggers REQUEST; an ACK during
// REQUEST/RENEW/REBIND completes the lease and returns to BOUND.
func (c *DHCPClient) HandleMessage(payload []byte, now sleep.Tick) error {
	vals, err := codec.HeaderParse(codec.DHCPHeader, payload)
	if err != nil {
		return err
	}
	if vals["xid"] != c.xid || len(payload) < 240 {
		return nil
	}

	opts := parseOptions(payload[240:])
	msgType, ok := opts[dhcpOptMessageType]
	if !ok || len(msgType) == 0 {
		return nil
	}

	var yiaddr [4]byte
	binary.BigEndian.PutUint32(yiaddr[:], vals["yiaddr"])

	c.mu.Lock()
	defer c.mu.Unlock()

	switch msgType[0] {
	case dhcpMsgOffer:
		if c.state != DHCPDiscover {
			return nil
		}
		var serverID [4]byte
		if sid, ok := opts[dhcpOptServerID]; ok && len(sid) == 4 {
			copy(serverID[:], sid)
		}
		c.lease.IP = yiaddr
		c.lease.ServerID = serverID
		c.state = DHCPRequest
		c.timeout = constants.DHCPInitialTimeoutTicks
		c.mu.Unlock()
		c.sendRequest(serverID, yiaddr)
		c.mu.Lock()

	case dhcpMsgAck:
		if c.state != DHCPRequest && c.state != DHCPRenew && c.state != DHCPRebind {
			return nil
		}
		if mask, ok := opts[dhcpOptSubnetMask]; ok && len(mask) == 4 {
			copy(c.lease.SubnetMask[:], mask)
		}
		if router, ok := opts[dhcpOptRouter]; ok && len(router) >= 4 {
			copy(c.lease.Router[:], router[:4])
		}
		if lease, ok := opts[dhcpOptLeaseTime]; ok && len(lease) == 4 {
			c.lease.LeaseTicks = sleep.Tick(binary.BigEndian.Uint32(lease))
		}
		c.state = DHCPBound

	case dhcpMsgNak:
		// Move back to DISCOVER rather than stopping outright, matching
		// dhcp_change_state(client_data, DHCP_CLI_DISCOVER) on NACK.
		c.state = DHCPDiscover
		c.timeout = constants.DHCPInitialTimeoutTicks
		c.refreshXID()
		c.mu.Unlock()
		c.sendDiscover()
		c.mu.Lock()
	}
	return nil
}

func parseOptions(data []byte) map[byte][]byte {
	opts := make(map[byte][]byte)
	for i := 0; i < len(data); {
		code := data[i]
		if code == dhcpOptEnd || code == 0 {
			i++
			continue
		}
		if i+1 >= len(data) {
			break
		}
		length := int(data[i+1])
		if i+2+length > len(data) {
			break
		}
		opts[code] = data[i+2 : i+2+length]
		i += 2 + length
	}
	return opts
}
