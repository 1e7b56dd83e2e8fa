// Package codec implements the declarative wire-header machine every
// network protocol in internal/netproto is built from: a Header is a
// table of named Fields, each a byte offset/width pair, and
// HeaderGenerate/HeaderParse walk the table to marshal/unmarshal a Go
// struct's fields against a flat byte buffer in network byte order.
//
// Grounded on the teacher's internal/uapi/marshal.go field-by-field
// binary.LittleEndian encode/decode idiom, adapted to network byte
// order (binary.BigEndian) since every protocol this codes for — ARP,
// IPv4, UDP, DHCP — is wire format, not a host-native C struct layout.
package codec

import (
	"encoding/binary"
	"errors"
)

// Field describes one fixed-width, fixed-offset value within a Header.
type Field struct {
	Name   string
	Offset int
	Width  int // 1, 2, or 4 bytes
}

// Header is an ordered table of Fields plus the total encoded length.
type Header struct {
	Fields []Field
	Size   int
}

// ErrShortBuffer is returned when a buffer is too small to hold a
// header's declared Size.
var ErrShortBuffer = errors.New("codec: buffer shorter than header size")

// ErrUnknownField is returned by SetField/GetField when the named field is
// not declared by the Header, and by every encode/decode function when a
// declared field has a width other than 1, 2, or 4. HeaderGenerate ignores
// names in Values that the Header does not declare.
var ErrUnknownField = errors.New("codec: unknown field name")

// Values is a named-field view into a decoded or to-be-encoded header.
type Values map[string]uint32

func (h *Header) fieldByName(name string) (Field, bool) {
	for _, f := range h.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HeaderGenerate encodes vals into buf per h's field table, in network
// byte order. buf must be at least h.Size bytes; bytes beyond the
// declared fields (e.g. a variable-length payload tail) are left
// untouched.
func HeaderGenerate(h *Header, buf []byte, vals Values) error {
	if len(buf) < h.Size {
		return ErrShortBuffer
	}
	for _, f := range h.Fields {
		v, ok := vals[f.Name]
		if !ok {
			continue
		}
		switch f.Width {
		case 1:
			buf[f.Offset] = byte(v)
		case 2:
			binary.BigEndian.PutUint16(buf[f.Offset:f.Offset+2], uint16(v))
		case 4:
			binary.BigEndian.PutUint32(buf[f.Offset:f.Offset+4], v)
		default:
			return ErrUnknownField
		}
	}
	return nil
}

// HeaderParse decodes buf per h's field table into a fresh Values map.
func HeaderParse(h *Header, buf []byte) (Values, error) {
	if len(buf) < h.Size {
		return nil, ErrShortBuffer
	}
	vals := make(Values, len(h.Fields))
	for _, f := range h.Fields {
		switch f.Width {
		case 1:
			vals[f.Name] = uint32(buf[f.Offset])
		case 2:
			vals[f.Name] = uint32(binary.BigEndian.Uint16(buf[f.Offset : f.Offset+2]))
		case 4:
			vals[f.Name] = binary.BigEndian.Uint32(buf[f.Offset : f.Offset+4])
		default:
			return nil, ErrUnknownField
		}
	}
	return vals, nil
}

// SetField writes a single named field into buf, for headers whose
// fields are filled in incrementally (e.g. a checksum computed after
// the rest of the header is generated).
func SetField(h *Header, buf []byte, name string, v uint32) error {
	f, ok := h.fieldByName(name)
	if !ok {
		return ErrUnknownField
	}
	if len(buf) < h.Size {
		return ErrShortBuffer
	}
	switch f.Width {
	case 1:
		buf[f.Offset] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(buf[f.Offset:f.Offset+2], uint16(v))
	case 4:
		binary.BigEndian.PutUint32(buf[f.Offset:f.Offset+4], v)
	default:
		return ErrUnknownField
	}
	return nil
}

// GetField reads a single named field from buf.
func GetField(h *Header, buf []byte, name string) (uint32, error) {
	f, ok := h.fieldByName(name)
	if !ok {
		return 0, ErrUnknownField
	}
	if len(buf) < h.Size {
		return 0, ErrShortBuffer
	}
	switch f.Width {
	case 1:
		return uint32(buf[f.Offset]), nil
	case 2:
		return uint32(binary.BigEndian.Uint16(buf[f.Offset : f.Offset+2])), nil
	case 4:
		return binary.BigEndian.Uint32(buf[f.Offset : f.Offset+4]), nil
	default:
		return 0, ErrUnknownField
	}
}

// InternetChecksum computes the one's-complement-of-one's-complement-sum
// checksum used by IPv4, UDP, and ARP-adjacent protocols.
func InternetChecksum(data []byte) uint16 {
	var sum uint32
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// ARPHeader is the fixed 28-byte Ethernet/IPv4 ARP packet layout.
var ARPHeader = &Header{
	Size: 28,
	Fields: []Field{
		{Name: "htype", Offset: 0, Width: 2},
		{Name: "ptype", Offset: 2, Width: 2},
		{Name: "hlen", Offset: 4, Width: 1},
		{Name: "plen", Offset: 5, Width: 1},
		{Name: "oper", Offset: 6, Width: 2},
		// sha (6 bytes), spa (4), tha (6), tpa (4) are fixed-width byte
		// arrays, not integers, and are copied directly by callers
		// rather than through HeaderGenerate/HeaderParse's uint32 path.
	},
}

// IPv4Header is the fixed 20-byte IPv4 header (no options).
var IPv4Header = &Header{
	Size: 20,
	Fields: []Field{
		{Name: "ver_ihl", Offset: 0, Width: 1},
		{Name: "tos", Offset: 1, Width: 1},
		{Name: "total_len", Offset: 2, Width: 2},
		{Name: "id", Offset: 4, Width: 2},
		{Name: "flags_frag", Offset: 6, Width: 2},
		{Name: "ttl", Offset: 8, Width: 1},
		{Name: "proto", Offset: 9, Width: 1},
		{Name: "checksum", Offset: 10, Width: 2},
		{Name: "src", Offset: 12, Width: 4},
		{Name: "dst", Offset: 16, Width: 4},
	},
}

// UDPHeader is the fixed 8-byte UDP header.
var UDPHeader = &Header{
	Size: 8,
	Fields: []Field{
		{Name: "src_port", Offset: 0, Width: 2},
		{Name: "dst_port", Offset: 2, Width: 2},
		{Name: "length", Offset: 4, Width: 2},
		{Name: "checksum", Offset: 6, Width: 2},
	},
}

// TFTPHeader is the 4-byte opcode+block-number prefix shared by TFTP
// DATA and ACK packets; an ERROR packet reuses the same two leading
// fields (block reinterpreted as an error code) per RFC 1350 §5.
var TFTPHeader = &Header{
	Size: 4,
	Fields: []Field{
		{Name: "opcode", Offset: 0, Width: 2},
		{Name: "block", Offset: 2, Width: 2},
	},
}

// DHCPHeader is the fixed portion of a DHCP/BOOTP message, preceding its
// variable-length options list.
var DHCPHeader = &Header{
	Size: 236,
	Fields: []Field{
		{Name: "op", Offset: 0, Width: 1},
		{Name: "htype", Offset: 1, Width: 1},
		{Name: "hlen", Offset: 2, Width: 1},
		{Name: "hops", Offset: 3, Width: 1},
		{Name: "xid", Offset: 4, Width: 4},
		{Name: "secs", Offset: 8, Width: 2},
		{Name: "flags", Offset: 10, Width: 2},
		{Name: "ciaddr", Offset: 12, Width: 4},
		{Name: "yiaddr", Offset: 16, Width: 4},
		{Name: "siaddr", Offset: 20, Width: 4},
		{Name: "giaddr", Offset: 24, Width: 4},
		// chaddr[16], sname[64], file[128] are byte arrays, copied
		// directly by callers; options begin at offset 236+4 (magic
		// cookie) and are parsed by internal/netproto's DHCP option walk.
	},
}
