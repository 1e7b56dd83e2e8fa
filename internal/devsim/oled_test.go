package devsim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/rtos-core/internal/constants"
	"github.com/ehrlich-b/rtos-core/internal/fd"
)

func TestOLEDInitRunsCommandSequence(t *testing.T) {
	o := NewOLED(128, 32)
	require.NoError(t, o.Init(fd.Flags{}))
	require.NotEmpty(t, o.Messages())
}

func TestOLEDWriteBeforeInitFails(t *testing.T) {
	o := NewOLED(128, 32)
	_, err := o.Write(make([]byte, 128*32/8))
	require.ErrorIs(t, err, ErrOLEDNotInitialized)
}

func TestOLEDWriteWrongSizeFails(t *testing.T) {
	o := NewOLED(128, 32)
	require.NoError(t, o.Init(fd.Flags{}))
	_, err := o.Write(make([]byte, 4))
	require.ErrorIs(t, err, ErrOLEDBufferSize)
}

func TestOLEDWriteChunksWithDataMarker(t *testing.T) {
	o := NewOLED(128, 32)
	require.NoError(t, o.Init(fd.Flags{}))

	frameSize := 128 * 32 / 8
	frame := make([]byte, frameSize)
	for i := range frame {
		frame[i] = byte(i)
	}
	n, err := o.Write(frame)
	require.NoError(t, err)
	require.Equal(t, frameSize, n)

	msgs := o.Messages()
	// Init logs 25 single-byte commands as {0x00, cmd} pairs, plus this
	// write's 6 addressing commands, plus the chunked data messages.
	dataMsgs := 0
	for _, m := range msgs {
		if len(m) > 0 && m[0] == oledDataMarker {
			dataMsgs++
			require.LessOrEqual(t, len(m)-1, constants.OLEDI2CChunkSize)
		}
	}
	expectedChunks := (frameSize + constants.OLEDI2CChunkSize - 1) / constants.OLEDI2CChunkSize
	require.Equal(t, expectedChunks, dataMsgs)
}

func TestOLEDPowerAndInvertIoctl(t *testing.T) {
	o := NewOLED(128, 32)
	require.NoError(t, o.Init(fd.Flags{}))

	_, err := o.Ioctl(OLEDIoctlPower, true)
	require.NoError(t, err)
	require.True(t, o.PoweredOn())

	_, err = o.Ioctl(OLEDIoctlInvert, true)
	require.NoError(t, err)
	require.True(t, o.Inverted())

	_, err = o.Ioctl(OLEDIoctlPower, false)
	require.NoError(t, err)
	require.False(t, o.PoweredOn())
}

func TestOLEDIoctlUnknownCommand(t *testing.T) {
	o := NewOLED(128, 32)
	_, err := o.Ioctl(999, nil)
	require.ErrorIs(t, err, ErrInvalidCommand)
}
