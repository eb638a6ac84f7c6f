package filetransfer

import (
	"net"
	"os"
	"time"

	"github.com/dpasteros/asteroids-net/internal/transport"
	"github.com/dpasteros/asteroids-net/internal/wire"
)

// SendWindow bounds how many unacked chunks a ChunkSender keeps in flight
// at once, reusing the game transport's own Window size (§4.2) for the
// flow-control knob even though the sequence space itself is unbounded
// here: §4.10 requires "sequence = chunk_index" across the whole file, and
// the game engine's transport.Engine/flow wraps sequence numbers modulo
// transport.SeqSpace (64). A transfer past 64 chunks — the spec's own S6
// scenario, at 100 — would have every chunk past #63 silently reassigned
// sequence 0, 1, 2... by that wraparound, corrupting the destination file
// and leaving the receiver waiting on chunks that will never arrive as
// themselves. ChunkSender/ChunkReceiver below talk to transport.Endpoint
// directly instead, keeping the true chunk index as wire.Packet.Sequence
// and sizing their own window/timeout state to total_packets.
const SendWindow = transport.Window

// ChunkSender drives the server side of the data plane (§4.10): it fills
// the window with DOWNLOAD_DATA packets keyed by true chunk index,
// retransmits on the same Timeout/TimeoutMax budget as the game
// transport, and slides send_base as ACKs arrive.
type ChunkSender struct {
	ep   *transport.Endpoint
	dest *net.UDPAddr
	path string
	sess *Session

	sendBase uint32
	nextSeq  uint32
	sentAt   map[uint32]time.Time
	age      map[uint32]time.Duration
}

// NewChunkSender builds a sender for sess's file, to be driven by
// repeated Tick calls on the owning goroutine's own ticker.
func NewChunkSender(ep *transport.Endpoint, dest *net.UDPAddr, path string, sess *Session) *ChunkSender {
	return &ChunkSender{
		ep:     ep,
		dest:   dest,
		path:   path,
		sess:   sess,
		sentAt: make(map[uint32]time.Time),
		age:    make(map[uint32]time.Duration),
	}
}

// Tick fills the window with unsent chunks, retransmits anything overdue,
// and returns ErrTransferFailed once a chunk's accumulated retransmit age
// exceeds TimeoutMax or its retry count exceeds MaxRetries.
func (s *ChunkSender) Tick(now time.Time) error {
	for s.nextSeq < s.sess.TotalPackets && int(s.nextSeq-s.sendBase) < SendWindow {
		if err := s.transmit(s.nextSeq, now, 0); err != nil {
			return err
		}
		s.nextSeq++
	}

	for seq, last := range s.sentAt {
		elapsed := now.Sub(last)
		if elapsed < transport.Timeout {
			continue
		}
		totalAge := s.age[seq] + elapsed
		if totalAge >= transport.TimeoutMax {
			return ErrTransferFailed
		}
		if s.sess.RecordRetry(seq) {
			return ErrTransferFailed
		}
		if err := s.transmit(seq, now, totalAge); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChunkSender) transmit(seq uint32, now time.Time, age time.Duration) error {
	data, err := ReadChunk(s.path, seq)
	if err != nil {
		return err
	}
	pkt := wire.Packet{Command: wire.CmdDownloadData, Sequence: seq, Payload: data}
	if err := s.ep.Send(s.dest, pkt.Encode()); err != nil {
		return err
	}
	s.sentAt[seq] = now
	s.age[seq] = age
	return nil
}

// HandleAck records seq as delivered on the underlying session and slides
// send_base across any now-contiguous acked run, mirroring
// transport's flow.receiveAck but over the file's true chunk-index space
// instead of SeqSpace.
func (s *ChunkSender) HandleAck(seq uint32) {
	if _, outstanding := s.sentAt[seq]; !outstanding {
		return
	}
	s.sess.MarkAcked(seq)
	delete(s.sentAt, seq)
	delete(s.age, seq)
	for s.sendBase < s.sess.TotalPackets && s.sess.isAcked(s.sendBase) {
		s.sendBase++
	}
}

// Done reports whether send_base has reached total_packets (§4.10:
// "session succeeds when send_base == total_packets").
func (s *ChunkSender) Done() bool {
	return s.sendBase >= s.sess.TotalPackets
}

// ChunkReceiver drives the client side of the data plane: it writes each
// DOWNLOAD_DATA payload at its chunk-indexed offset exactly once, ACKs it,
// and tracks completion with a bitset sized to total_packets.
type ChunkReceiver struct {
	ep    *transport.Endpoint
	src   *net.UDPAddr
	f     *os.File
	total uint32

	received []bool
	count    uint32
}

// NewChunkReceiver builds a receiver writing into f, ACKing back to src
// over ep, for a transfer of total chunks.
func NewChunkReceiver(ep *transport.Endpoint, src *net.UDPAddr, f *os.File, total uint32) *ChunkReceiver {
	return &ChunkReceiver{ep: ep, src: src, f: f, total: total, received: make([]bool, total)}
}

// HandleData writes p's payload if it hasn't already been written, then
// ACKs it regardless: a duplicate arriving after the sender already moved
// on still needs its ACK, since that's the only signal the sender has
// that send_base can advance.
func (r *ChunkReceiver) HandleData(p wire.Packet) error {
	if p.Sequence >= r.total {
		return nil
	}
	if !r.received[p.Sequence] {
		if err := WriteChunk(r.f, p.Sequence, p.Payload); err != nil {
			return err
		}
		r.received[p.Sequence] = true
		r.count++
	}
	ack := wire.Ack(p)
	return r.ep.Send(r.src, ack.Encode())
}

// Done reports whether every chunk has been received at least once.
func (r *ChunkReceiver) Done() bool {
	return r.count >= r.total
}
