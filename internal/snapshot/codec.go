// Package snapshot implements the fixed-layout binary world-state codec
// (§4.6), packed little-endian with no padding, mirroring the teacher's
// approach to its RakNet wire structs in source/protocol/raknet.go (fixed
// field order, manual byte-slice construction) but sized to the spec's
// bounded object tables instead of RakNet's variable-length bitstream.
package snapshot

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Bounds from §3's World state definition.
const (
	MaxPlayers = 4
	MaxObjects = 40
)

// ObjectKind tags a world object slot.
type ObjectKind uint16

const (
	KindNone ObjectKind = iota
	KindShip
	KindBullet
	KindAsteroid
	KindWall
)

// PlayerData is one player's replicated record.
type PlayerData struct {
	ID    uint16
	Score int32
	Lives int32
	Name  [8]byte
}

// ObjectData is one world object's replicated record.
type ObjectData struct {
	Kind    ObjectKind
	OwnerID uint16
	PosX, PosY float32
	VelX, VelY float32
	Rot        float32
	ScaleX, ScaleY float32
}

// Snapshot is the full SNAPSHOT payload (§4.6): a fixed-size record
// regardless of how many players/objects are actually live — unused slots
// are zeroed so the encoded length never varies.
type Snapshot struct {
	WorldSeq    uint32
	PlayerCount uint32
	Players     [MaxPlayers]PlayerData
	ObjectCount uint32
	Objects     [MaxObjects]ObjectData
}

// playerSize: id(2) + score(4) + lives(4) + name(8), no padding.
const playerSize = 2 + 4 + 4 + 8

// objectSize: kind(2) + owner(2) + pos(8) + vel(8) + rot(4) + scale(8).
const objectSize = 2 + 2 + 8 + 8 + 4 + 8

// EncodedSize is the constant length of every encoded Snapshot.
const EncodedSize = 4 + 4 + MaxPlayers*playerSize + 4 + MaxObjects*objectSize

// ErrBadLength is returned by Decode when the input isn't exactly
// EncodedSize bytes (§4.6: "Decoders must reject payloads whose length
// differs from the expected constant").
var ErrBadLength = errors.New("snapshot: payload length mismatch")

// Encode packs s into a new EncodedSize-length buffer.
func (s *Snapshot) Encode() []byte {
	buf := make([]byte, EncodedSize)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], s.WorldSeq)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], s.PlayerCount)
	off += 4

	for i := 0; i < MaxPlayers; i++ {
		p := s.Players[i]
		binary.LittleEndian.PutUint16(buf[off:], p.ID)
		off += 2
		binary.LittleEndian.PutUint32(buf[off:], uint32(p.Score))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(p.Lives))
		off += 4
		copy(buf[off:off+8], p.Name[:])
		off += 8
	}

	binary.LittleEndian.PutUint32(buf[off:], s.ObjectCount)
	off += 4

	for i := 0; i < MaxObjects; i++ {
		o := s.Objects[i]
		binary.LittleEndian.PutUint16(buf[off:], uint16(o.Kind))
		off += 2
		binary.LittleEndian.PutUint16(buf[off:], o.OwnerID)
		off += 2
		putFloat32(buf[off:], o.PosX)
		off += 4
		putFloat32(buf[off:], o.PosY)
		off += 4
		putFloat32(buf[off:], o.VelX)
		off += 4
		putFloat32(buf[off:], o.VelY)
		off += 4
		putFloat32(buf[off:], o.Rot)
		off += 4
		putFloat32(buf[off:], o.ScaleX)
		off += 4
		putFloat32(buf[off:], o.ScaleY)
		off += 4
	}

	return buf
}

// Decode unpacks a Snapshot from exactly EncodedSize bytes.
func Decode(b []byte) (Snapshot, error) {
	if len(b) != EncodedSize {
		return Snapshot{}, errors.Wrapf(ErrBadLength, "got %d want %d", len(b), EncodedSize)
	}
	var s Snapshot
	off := 0

	s.WorldSeq = binary.LittleEndian.Uint32(b[off:])
	off += 4
	s.PlayerCount = binary.LittleEndian.Uint32(b[off:])
	off += 4

	for i := 0; i < MaxPlayers; i++ {
		var p PlayerData
		p.ID = binary.LittleEndian.Uint16(b[off:])
		off += 2
		p.Score = int32(binary.LittleEndian.Uint32(b[off:]))
		off += 4
		p.Lives = int32(binary.LittleEndian.Uint32(b[off:]))
		off += 4
		copy(p.Name[:], b[off:off+8])
		off += 8
		s.Players[i] = p
	}

	s.ObjectCount = binary.LittleEndian.Uint32(b[off:])
	off += 4

	for i := 0; i < MaxObjects; i++ {
		var o ObjectData
		o.Kind = ObjectKind(binary.LittleEndian.Uint16(b[off:]))
		off += 2
		o.OwnerID = binary.LittleEndian.Uint16(b[off:])
		off += 2
		o.PosX = getFloat32(b[off:])
		off += 4
		o.PosY = getFloat32(b[off:])
		off += 4
		o.VelX = getFloat32(b[off:])
		off += 4
		o.VelY = getFloat32(b[off:])
		off += 4
		o.Rot = getFloat32(b[off:])
		off += 4
		o.ScaleX = getFloat32(b[off:])
		off += 4
		o.ScaleY = getFloat32(b[off:])
		off += 4
		s.Objects[i] = o
	}

	return s, nil
}
