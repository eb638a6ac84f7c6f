// Package wire implements the SRT packet header: the fixed-prefix PDU
// shared by the game transport and the file-transfer data plane.
package wire

import (
	"encoding/binary"
	"errors"
)

// Command is the 1-byte PDU tag. The set is closed; any other value is
// rejected by Decode.
type Command byte

const (
	CmdReqQuit Command = iota + 1
	CmdReqConnect
	CmdReqGameStart
	CmdRspGameStart
	CmdInput
	CmdSnapshot
	CmdLeaderboard
	CmdDownloadReq
	CmdDownloadRsp
	CmdDownloadData
	CmdDownloadErr
)

func (c Command) Valid() bool {
	return c >= CmdReqQuit && c <= CmdDownloadErr
}

func (c Command) String() string {
	switch c {
	case CmdReqQuit:
		return "REQ_QUIT"
	case CmdReqConnect:
		return "REQ_CONNECT"
	case CmdReqGameStart:
		return "REQ_GAME_START"
	case CmdRspGameStart:
		return "RSP_GAME_START"
	case CmdInput:
		return "INPUT"
	case CmdSnapshot:
		return "SNAPSHOT"
	case CmdLeaderboard:
		return "LEADERBOARD"
	case CmdDownloadReq:
		return "DOWNLOAD_REQ"
	case CmdDownloadRsp:
		return "DOWNLOAD_RSP"
	case CmdDownloadData:
		return "DOWNLOAD_DATA"
	case CmdDownloadErr:
		return "DOWNLOAD_ERR"
	default:
		return "UNKNOWN"
	}
}

// Flags bits.
const (
	FlagACK byte = 1 << 0
)

// Wire layout constants (§3, §6).
const (
	HeaderSize = 1 + 1 + 4 + 4 // command + flags + sequence + data_length
	MaxPayload = 1400
)

// ErrMalformed is returned by Decode for anything shorter than the header,
// carrying an unknown command, or claiming a data_length that doesn't fit
// the payload actually present.
var ErrMalformed = errors.New("wire: malformed packet")

// Packet is the in-memory representation of an SRT PDU.
type Packet struct {
	Command    Command
	Flags      byte
	Sequence   uint32
	DataLength uint32
	Payload    []byte
}

// IsACK reports whether bit 0 of Flags is set.
func (p Packet) IsACK() bool {
	return p.Flags&FlagACK != 0
}

// Ack builds the ACK echo for a received data packet: same command and
// sequence, DATA length zeroed, no payload.
func Ack(p Packet) Packet {
	return Packet{
		Command:  p.Command,
		Flags:    FlagACK,
		Sequence: p.Sequence,
	}
}

// Encode serializes the packet to wire bytes. DataLength is derived from
// len(Payload) so callers never have to keep the two in sync by hand.
func (p Packet) Encode() []byte {
	p.DataLength = uint32(len(p.Payload))
	buf := make([]byte, HeaderSize+len(p.Payload))
	buf[0] = byte(p.Command)
	buf[1] = p.Flags
	binary.BigEndian.PutUint32(buf[2:6], p.Sequence)
	binary.BigEndian.PutUint32(buf[6:10], p.DataLength)
	copy(buf[HeaderSize:], p.Payload)
	return buf
}

// Decode parses wire bytes into a Packet, validating the header-size,
// command, and payload-length invariants from §3.
func Decode(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrMalformed
	}
	cmd := Command(b[0])
	if !cmd.Valid() {
		return Packet{}, ErrMalformed
	}
	p := Packet{
		Command:    cmd,
		Flags:      b[1],
		Sequence:   binary.BigEndian.Uint32(b[2:6]),
		DataLength: binary.BigEndian.Uint32(b[6:10]),
	}
	rest := b[HeaderSize:]
	if p.DataLength > uint32(len(rest)) || p.DataLength > MaxPayload {
		return Packet{}, ErrMalformed
	}
	p.Payload = make([]byte, p.DataLength)
	copy(p.Payload, rest[:p.DataLength])
	return p, nil
}
