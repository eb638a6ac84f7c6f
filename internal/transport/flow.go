package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/dpasteros/asteroids-net/internal/wire"
)

// Selective-Repeat parameters (§3). SeqSpace must be at least 2*Window to
// keep the sender and receiver windows from overlapping after wraparound.
const (
	SeqSpace   = 64
	Window     = 32
	Timeout    = 1000 * time.Millisecond
	TimeoutMax = 10000 * time.Millisecond
)

func init() {
	if SeqSpace < 2*Window {
		panic("transport: SeqSpace must be >= 2*Window")
	}
}

// ErrWouldBlock is returned by flow.send (and so by Engine.Send) when the
// send window is saturated.
var ErrWouldBlock = errors.New("transport: window full")

// ErrPeerLost names the condition of a flow's accumulated retransmit age
// exceeding TimeoutMax (§4.2 "Timers"). Engine reports that condition
// through its OnPeerLost callback and does not return this value.
var ErrPeerLost = errors.New("transport: peer lost")

// flow holds one peer's bidirectional SR state: the send window (with
// retransmit bookkeeping) and the receive window (with out-of-order holds).
// Mirrors the teacher's Session struct, which bundles send and receive
// state behind one mutex per peer.
type flow struct {
	addr *net.UDPAddr

	mu         sync.Mutex
	sendBase   uint32
	nextSeq    uint32
	sendBuffer map[uint32]wire.Packet
	sendTimer  map[uint32]time.Time
	sendAge    map[uint32]time.Duration
	acked      map[uint32]bool

	recvBase   uint32
	recvBuffer map[uint32]wire.Packet

	retransmits atomic.Uint32
}

func newFlow(addr *net.UDPAddr) *flow {
	return &flow{
		addr:       addr,
		sendBuffer: make(map[uint32]wire.Packet),
		sendTimer:  make(map[uint32]time.Time),
		sendAge:    make(map[uint32]time.Duration),
		acked:      make(map[uint32]bool),
		recvBuffer: make(map[uint32]wire.Packet),
	}
}

func seqDelta(a, b uint32) uint32 {
	return (a - b + SeqSpace) % SeqSpace
}

// send stamps and buffers a DATA packet for transmission. ACK packets never
// pass through here (§4.2: "ACK-flagged packets are never buffered and
// never retransmitted").
func (f *flow) send(p *wire.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if seqDelta(f.nextSeq, f.sendBase) == Window {
		return ErrWouldBlock
	}
	p.Sequence = f.nextSeq
	f.sendBuffer[f.nextSeq] = *p
	f.sendTimer[f.nextSeq] = time.Now()
	f.sendAge[f.nextSeq] = 0
	delete(f.acked, f.nextSeq)
	f.nextSeq = (f.nextSeq + 1) % SeqSpace
	return nil
}

// dueRetransmits scans the send buffer for entries whose timer has expired,
// refreshes their timers/ages, and reports any that have exceeded
// TimeoutMax (peer-lost). Mirrors §4.2 "Timers" exactly.
func (f *flow) dueRetransmits(now time.Time) (due []wire.Packet, lost bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for seq, lastSent := range f.sendTimer {
		elapsed := now.Sub(lastSent)
		if elapsed < Timeout {
			continue
		}
		age := f.sendAge[seq] + elapsed
		if age >= TimeoutMax {
			lost = true
			continue
		}
		f.sendAge[seq] = age
		f.sendTimer[seq] = now
		due = append(due, f.sendBuffer[seq])
		f.retransmits.Inc()
	}
	if lost {
		f.resetLocked()
	}
	return due, lost
}

// resetLocked implements "declare the peer unresponsive — clear
// send_buffer, reset next_seq := send_base" from §4.2. Caller holds f.mu.
func (f *flow) resetLocked() {
	f.sendBuffer = make(map[uint32]wire.Packet)
	f.sendTimer = make(map[uint32]time.Time)
	f.sendAge = make(map[uint32]time.Duration)
	f.acked = make(map[uint32]bool)
	f.nextSeq = f.sendBase
}

// receiveAck marks a sequence ACKed and slides sendBase across any
// now-contiguous acked run. It reports the elapsed time since seq was last
// sent (its first send or most recent retransmit), for the caller to feed
// into an ACK-latency histogram.
func (f *flow) receiveAck(seq uint32, now time.Time) (latency time.Duration, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, present := f.sendBuffer[seq]; !present {
		return 0, false
	}
	latency = now.Sub(f.sendTimer[seq])
	f.acked[seq] = true
	for f.acked[f.sendBase] {
		delete(f.sendBuffer, f.sendBase)
		delete(f.sendTimer, f.sendBase)
		delete(f.sendAge, f.sendBase)
		delete(f.acked, f.sendBase)
		f.sendBase = (f.sendBase + 1) % SeqSpace
	}
	return latency, true
}

func (f *flow) inRecvWindow(seq uint32) bool {
	return seqDelta(seq, f.recvBase) < Window
}

// receiveData stores an in-window DATA packet and returns the run of
// packets now deliverable in order, plus the ACK to send back. A
// out-of-window packet is dropped silently (both return values empty).
func (f *flow) receiveData(p wire.Packet) (ack wire.Packet, delivered []wire.Packet, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.inRecvWindow(p.Sequence) {
		return wire.Packet{}, nil, false
	}
	f.recvBuffer[p.Sequence] = p
	for {
		next, present := f.recvBuffer[f.recvBase]
		if !present {
			break
		}
		delivered = append(delivered, next)
		delete(f.recvBuffer, f.recvBase)
		f.recvBase = (f.recvBase + 1) % SeqSpace
	}
	return wire.Ack(p), delivered, true
}

// Retransmits returns the lifetime retransmit counter, read lock-free so
// the metrics collector never contends with the tick goroutine.
func (f *flow) Retransmits() uint32 {
	return f.retransmits.Load()
}

// Outstanding reports how many sequence numbers are currently unacked.
func (f *flow) Outstanding() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return seqDelta(f.nextSeq, f.sendBase)
}
