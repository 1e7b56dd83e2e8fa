package netproto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/rtos-core/internal/codec"
)

// TestUDPStackRoundTrip exercises SendUDPTo's IPv4/UDP encapsulation
// against HandleFrame's decapsulation, confirming the port-keyed dispatch
// table delivers the original payload with the right source address.
func TestUDPStackRoundTrip(t *testing.T) {
	sender := &fakeSender{}
	localIP := [4]byte{10, 0, 0, 2}
	s := NewUDPStack(sender, localIP, [6]byte{1, 2, 3, 4, 5, 6})

	var gotIP [4]byte
	var gotSrcPort, gotDstPort uint16
	var gotPayload []byte
	s.Handle(69, func(srcIP [4]byte, srcPort, dstPort uint16, payload []byte) {
		gotIP = srcIP
		gotSrcPort = srcPort
		gotDstPort = dstPort
		gotPayload = append([]byte(nil), payload...)
	})

	require.NoError(t, s.SendUDPTo([6]byte{9, 9, 9, 9, 9, 9}, [4]byte{10, 0, 0, 5}, 5000, 69, []byte("hello")))
	require.Equal(t, 1, len(sender.sent))

	// Re-inject the encapsulated frame as if received from the peer, with
	// src/dst swapped the way an actual reply datagram would be.
	frame := sender.sent[0]
	frame = swapIPv4Addrs(t, frame)

	require.NoError(t, s.HandleFrame(frame))
	require.Equal(t, [4]byte{10, 0, 0, 5}, gotIP)
	require.Equal(t, uint16(5000), gotSrcPort)
	require.Equal(t, uint16(69), gotDstPort)
	require.Equal(t, []byte("hello"), gotPayload)
}

func TestUDPStackUnregisteredPortDropped(t *testing.T) {
	sender := &fakeSender{}
	s := NewUDPStack(sender, [4]byte{10, 0, 0, 2}, [6]byte{})

	require.NoError(t, s.SendUDPTo([6]byte{}, [4]byte{10, 0, 0, 5}, 5000, 69, []byte("x")))
	require.NoError(t, s.HandleFrame(sender.sent[0]))
}

func swapIPv4Addrs(t *testing.T, frame []byte) []byte {
	t.Helper()
	out := append([]byte(nil), frame...)
	src, err := codec.GetField(codec.IPv4Header, out, "src")
	require.NoError(t, err)
	dst, err := codec.GetField(codec.IPv4Header, out, "dst")
	require.NoError(t, err)
	require.NoError(t, codec.SetField(codec.IPv4Header, out, "src", dst))
	require.NoError(t, codec.SetField(codec.IPv4Header, out, "dst", src))
	return out
}
