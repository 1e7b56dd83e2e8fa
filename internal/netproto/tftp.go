package netproto

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ehrlich-b/rtos-core/internal/codec"
	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/fsbuf"
	"github.com/ehrlich-b/rtos-core/internal/logging"
)

// TFTP opcodes, per RFC 1350.
const (
	tftpOpRRQ   = 1
	tftpOpWRQ   = 2
	tftpOpData  = 3
	tftpOpAck   = 4
	tftpOpError = 5
)

// FS is the minimal filesystem surface the TFTP server needs: enough to
// serve a read request and accept a write request one fixed-size block
// at a time. A real target backs this with its flash/SD filesystem; the
// simulated kernel backs it with an in-memory map.
type FS interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, offset int, data []byte) error
}

// Datagram is one inbound TFTP packet plus the source the server must
// reply to.
type Datagram struct {
	SrcIP   [4]byte
	SrcPort uint16
	Data    []byte
}

// DatagramSender sends a UDP datagram to a specific destination, used
// both for the well-known port 69 and for the per-transfer ephemeral
// TID the original protocol's "new socket per transfer" design requires.
type DatagramSender interface {
	SendUDP(dstIP [4]byte, dstPort uint16, payload []byte) error
}

var (
	ErrTFTPUnknownTID = errors.New("netproto: tftp packet from unrecognized transfer")
	ErrTFTPNoSuchFile  = errors.New("netproto: tftp file not found")
)

// transfer is one single-client RRQ or WRQ in progress. The server
// supports exactly one concurrent transfer (single-client), matching
// the original's fixed-size static transfer-state struct.
type transfer struct {
	srcIP   [4]byte
	srcPort uint16
	write   bool
	name    string
	data    []byte // full file contents for RRQ, accumulated so far for WRQ
	block   uint16
	done    bool
}

// TFTPServer implements the single-client RRQ/WRQ/DATA/ACK/ERROR
// exchange in 512-byte blocks, grounded on
// _examples/original_source/rtos/api/tftp/tftps.c's one-active-transfer
// design.
type TFTPServer struct {
	fs     FS
	sender DatagramSender
	log    *logging.Logger

	mu sync.Mutex
	tx *transfer
}

// NewTFTPServer constructs a server with no active transfer.
func NewTFTPServer(fs FS, sender DatagramSender, logger *logging.Logger) *TFTPServer {
	if logger == nil {
		logger = logging.Default()
	}
	return &TFTPServer{fs: fs, sender: sender, log: logger}
}

// HandleDatagram dispatches one inbound packet. Packets addressed to the
// well-known port 69 are always RRQ/WRQ; anything else must match the
// in-flight transfer's source TID or is rejected with
// ErrTFTPUnknownTID.
func (s *TFTPServer) HandleDatagram(d Datagram, wellKnownPort bool) error {
	if len(d.Data) < 2 {
		return errors.New("netproto: tftp packet too short")
	}
	opcode := binary.BigEndian.Uint16(d.Data[0:2])

	s.mu.Lock()
	defer s.mu.Unlock()

	if wellKnownPort {
		switch opcode {
		case tftpOpRRQ:
			return s.startRRQ(d)
		case tftpOpWRQ:
			return s.startWRQ(d)
		default:
			return nil
		}
	}

	if s.tx == nil || d.SrcIP != s.tx.srcIP || d.SrcPort != s.tx.srcPort {
		s.sendError(d.SrcIP, d.SrcPort, constants.StatusTFTPUnknownTID, "unknown transfer ID")
		return ErrTFTPUnknownTID
	}

	switch opcode {
	case tftpOpAck:
		return s.handleAck(d.Data)
	case tftpOpData:
		return s.handleData(d.Data)
	case tftpOpError:
		s.tx = nil
		return nil
	default:
		return nil
	}
}

func parseFilename(data []byte) (string, bool) {
	if len(data) < 3 {
		return "", false
	}
	end := 2
	for end < len(data) && data[end] != 0 {
		end++
	}
	if end >= len(data) {
		return "", false
	}
	return string(data[2:end]), true
}

func (s *TFTPServer) startRRQ(d Datagram) error {
	name, ok := parseFilename(d.Data)
	if !ok {
		return errors.New("netproto: malformed RRQ")
	}
	content, err := s.fs.ReadFile(name)
	if err != nil {
		s.sendError(d.SrcIP, d.SrcPort, constants.StatusTFTPErrorFS, "file not found")
		return ErrTFTPNoSuchFile
	}
	s.tx = &transfer{srcIP: d.SrcIP, srcPort: d.SrcPort, name: name, data: content, block: 1}
	return s.sendNextDataBlock()
}

func (s *TFTPServer) startWRQ(d Datagram) error {
	name, ok := parseFilename(d.Data)
	if !ok {
		return errors.New("netproto: malformed WRQ")
	}
	s.tx = &transfer{srcIP: d.SrcIP, srcPort: d.SrcPort, write: true, name: name, block: 0}
	return s.sendAck(0)
}

// sendNextDataBlock assembles a DATA packet through an fsbuf.List: the
// 4-byte header and up to TFTPBlockSize of payload are pushed through
// the same chunked, pool-backed chunk chain every other FS buffer user
// draws from, then flattened once for the one UDP write a DatagramSender
// can take. A 512-byte TFTP block spans several FSBufferChunkSize
// chunks, so this is the one place in the tree that actually exercises
// fsbuf's multi-chunk assembly end to end.
func (s *TFTPServer) sendNextDataBlock() error {
	tx := s.tx
	start := int(tx.block-1) * constants.TFTPBlockSize
	if start > len(tx.data) {
		start = len(tx.data)
	}
	end := start + constants.TFTPBlockSize
	if end > len(tx.data) {
		end = len(tx.data)
	}
	chunk := tx.data[start:end]

	list := fsbuf.NewList(0, 0)
	if err := list.PushHeader(codec.TFTPHeader, codec.Values{"opcode": tftpOpData, "block": uint32(tx.block)}); err != nil {
		return err
	}
	for written := 0; written < len(chunk); {
		n := list.PushOffset(chunk[written:], 0)
		if n == 0 {
			break
		}
		written += n
	}
	buf := list.Bytes()
	list.Consume(len(buf))

	if len(chunk) < constants.TFTPBlockSize {
		tx.done = true
	}
	return s.sender.SendUDP(tx.srcIP, tx.srcPort, buf)
}

func (s *TFTPServer) sendAck(block uint16) error {
	list := fsbuf.NewList(0, 0)
	if err := list.PushHeader(codec.TFTPHeader, codec.Values{"opcode": tftpOpAck, "block": uint32(block)}); err != nil {
		return err
	}
	buf := list.Bytes()
	list.Consume(len(buf))
	return s.sender.SendUDP(s.tx.srcIP, s.tx.srcPort, buf)
}

func (s *TFTPServer) sendError(ip [4]byte, port uint16, code constants.Status, msg string) {
	buf := make([]byte, 4+len(msg)+1)
	binary.BigEndian.PutUint16(buf[0:2], tftpOpError)
	binary.BigEndian.PutUint16(buf[2:4], uint16(-int32(code)))
	copy(buf[4:], msg)
	_ = s.sender.SendUDP(ip, port, buf)
}

func (s *TFTPServer) handleAck(data []byte) error {
	if len(data) < 4 || s.tx == nil || s.tx.write {
		return nil
	}
	ackedBlock := binary.BigEndian.Uint16(data[2:4])
	if ackedBlock != s.tx.block {
		return nil
	}
	if s.tx.done {
		s.tx = nil
		return nil
	}
	s.tx.block++
	return s.sendNextDataBlock()
}

func (s *TFTPServer) handleData(data []byte) error {
	if len(data) < 4 || s.tx == nil || !s.tx.write {
		return nil
	}
	block := binary.BigEndian.Uint16(data[2:4])
	if block != s.tx.block+1 {
		return nil
	}
	payload := data[4:]
	if err := s.fs.WriteFile(s.tx.name, int(s.tx.block)*constants.TFTPBlockSize, payload); err != nil {
		s.sendError(s.tx.srcIP, s.tx.srcPort, constants.StatusTFTPErrorFS, "write failed")
		s.tx = nil
		return err
	}
	s.tx.block = block
	if err := s.sendAck(block); err != nil {
		return err
	}
	if len(payload) < constants.TFTPBlockSize {
		s.tx = nil
	}
	return nil
}
