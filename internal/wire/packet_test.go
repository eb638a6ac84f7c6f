package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := Packet{
		Command:  CmdInput,
		Flags:    0,
		Sequence: 7,
		Payload:  []byte{1, 2, 3, 4},
	}
	decoded, err := Decode(p.Encode())
	require.NoError(t, err)
	assert.Equal(t, p.Command, decoded.Command)
	assert.Equal(t, p.Sequence, decoded.Sequence)
	assert.Equal(t, uint32(len(p.Payload)), decoded.DataLength)
	assert.Equal(t, p.Payload, decoded.Payload)
}

func TestAckEchoesSequenceAndZerosLength(t *testing.T) {
	data := Packet{Command: CmdReqConnect, Sequence: 12, Payload: []byte{9}}
	ack := Ack(data)
	assert.True(t, ack.IsACK())
	assert.Equal(t, uint32(12), ack.Sequence)
	assert.Equal(t, 0, len(ack.Payload))
	assert.Equal(t, data.Command, ack.Command)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsUnknownCommand(t *testing.T) {
	pkt := Packet{Command: CmdInput, Sequence: 1}
	raw := pkt.Encode()
	raw[0] = 0xFF
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsInconsistentLength(t *testing.T) {
	raw := Packet{Command: CmdInput}.Encode()
	// Claim more data than actually present.
	raw[6], raw[7], raw[8], raw[9] = 0, 0, 0, 200
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	raw := Packet{Command: CmdSnapshot}.Encode()
	raw[6], raw[7], raw[8], raw[9] = 0, 0, 0x05, 0xA0 // > MaxPayload
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}
