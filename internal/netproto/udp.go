package netproto

import (
	"errors"

	"github.com/ehrlich-b/rtos-core/internal/codec"
)

const (
	ethertypeIPv4 = 0x0800
	protoUDP      = 17
)

// udpHandler receives one demultiplexed UDP payload.
type udpHandler func(srcIP [4]byte, srcPort, dstPort uint16, payload []byte)

// UDPStack is the minimal IPv4/UDP encapsulation layer sitting between a
// FrameSender (an Ethernet link, typically internal/netio's RXQueue-backed
// Link) and port-oriented consumers like TFTPServer's DatagramSender. ARP
// and DHCP in this package talk to FrameSender directly with unencapsulated
// payloads, mirroring the original firmware's practice of special-casing
// bootstrap traffic; everything else — in particular TFTP, which runs
// after a DHCP lease is held — goes through here, the same way
// _examples/original_source/rtos's network stack layers a generic IP/UDP
// path under protocol-specific handlers.
//
// Only the IPv4 header checksum is computed on send; the UDP checksum is
// left zero, which per RFC 768 means "unchecked". No checksum is verified
// on receive.
type UDPStack struct {
	sender   FrameSender
	localIP  [4]byte
	localMAC [6]byte

	handlers map[uint16]udpHandler
}

// NewUDPStack constructs a stack bound to sender, with the given local
// IPv4 address (as assigned by DHCP) and link-layer address.
func NewUDPStack(sender FrameSender, localIP [4]byte, localMAC [6]byte) *UDPStack {
	return &UDPStack{
		sender:   sender,
		localIP:  localIP,
		localMAC: localMAC,
		handlers: make(map[uint16]udpHandler),
	}
}

// SetLocalIP updates the address used as the IPv4 source on outgoing
// datagrams, called once DHCP transitions to Bound.
func (s *UDPStack) SetLocalIP(ip [4]byte) { s.localIP = ip }

// Handle registers fn to receive datagrams addressed to dstPort.
// TFTPServer.HandleDatagram is a typical fn, wrapped to adapt its two
// extra arguments.
func (s *UDPStack) Handle(dstPort uint16, fn udpHandler) {
	s.handlers[dstPort] = fn
}

// SendUDP implements netproto.DatagramSender by wrapping payload in a UDP
// header then an IPv4 header and transmitting it as one Ethernet frame.
// The frame goes to the Ethernet broadcast address with UDP source port
// 0; UDPStack itself has no ARP dependency. Callers that need a specific
// destination MAC or source port use SendUDPTo.
func (s *UDPStack) SendUDP(dstIP [4]byte, dstPort uint16, payload []byte) error {
	return s.SendUDPTo(broadcastMAC, dstIP, 0, dstPort, payload)
}

// SendUDPTo is SendUDP with an explicit destination MAC and source port,
// for callers (like a TFTP transfer reusing its ephemeral TID) that need
// more control than the well-known-port default SendUDP provides.
func (s *UDPStack) SendUDPTo(dstMAC [6]byte, dstIP [4]byte, srcPort, dstPort uint16, payload []byte) error {
	udpLen := codec.UDPHeader.Size + len(payload)
	totalLen := codec.IPv4Header.Size + udpLen

	buf := make([]byte, totalLen)

	udpBuf := buf[codec.IPv4Header.Size:]
	if err := codec.HeaderGenerate(codec.UDPHeader, udpBuf, codec.Values{
		"src_port": uint32(srcPort),
		"dst_port": uint32(dstPort),
		"length":   uint32(udpLen),
	}); err != nil {
		return err
	}
	copy(udpBuf[codec.UDPHeader.Size:], payload)

	if err := codec.HeaderGenerate(codec.IPv4Header, buf, codec.Values{
		"ver_ihl":   0x45,
		"total_len": uint32(totalLen),
		"ttl":       64,
		"proto":     protoUDP,
		"src":       ipToUint32(s.localIP),
		"dst":       ipToUint32(dstIP),
	}); err != nil {
		return err
	}
	checksum := codec.InternetChecksum(buf[:codec.IPv4Header.Size])
	if err := codec.SetField(codec.IPv4Header, buf, "checksum", uint32(checksum)); err != nil {
		return err
	}

	return s.sender.SendFrame(dstMAC, ethertypeIPv4, buf)
}

// HandleFrame decodes an Ethernet payload carrying an IPv4/UDP datagram
// and dispatches it to the handler registered for its destination port,
// if any. Non-UDP IPv4 payloads and datagrams with no registered handler
// are silently dropped, matching a real stack's behavior for an unopened
// port.
func (s *UDPStack) HandleFrame(payload []byte) error {
	if len(payload) < codec.IPv4Header.Size {
		return errors.New("netproto: ipv4 packet too short")
	}
	ipVals, err := codec.HeaderParse(codec.IPv4Header, payload)
	if err != nil {
		return err
	}
	if ipVals["proto"] != protoUDP {
		return nil
	}
	ihl := int(ipVals["ver_ihl"]&0x0F) * 4
	if ihl < codec.IPv4Header.Size {
		ihl = codec.IPv4Header.Size
	}
	if len(payload) < ihl+codec.UDPHeader.Size {
		return errors.New("netproto: udp packet too short")
	}
	udpBuf := payload[ihl:]
	udpVals, err := codec.HeaderParse(codec.UDPHeader, udpBuf)
	if err != nil {
		return err
	}
	dstPort := uint16(udpVals["dst_port"])
	handler, ok := s.handlers[dstPort]
	if !ok {
		return nil
	}
	var srcIP [4]byte
	uint32ToIP(ipVals["src"], &srcIP)
	handler(srcIP, uint16(udpVals["src_port"]), dstPort, udpBuf[codec.UDPHeader.Size:])
	return nil
}

var broadcastMAC = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func uint32ToIP(v uint32, out *[4]byte) {
	out[0] = byte(v >> 24)
	out[1] = byte(v >> 16)
	out[2] = byte(v >> 8)
	out[3] = byte(v)
}

var _ DatagramSender = (*UDPStack)(nil)
