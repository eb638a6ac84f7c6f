// Package transport implements the Selective-Repeat reliable datagram
// protocol (§4.2) layered on a non-blocking UDP endpoint (§4.1).
package transport

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/dpasteros/asteroids-net/internal/metrics"
	"github.com/dpasteros/asteroids-net/internal/wire"
)

// Delivery is one application-level PDU handed up from the transport, in
// strictly increasing sequence order per peer.
type Delivery struct {
	Addr   *net.UDPAddr
	Packet wire.Packet
}

// Engine multiplexes one UDP endpoint across many peer flows. It is the Go
// analog of the teacher's RakNetHandler: one socket, many per-peer Session
// records, a receive loop, and a periodic tick for retransmission.
type Engine struct {
	endpoint *Endpoint

	mu    sync.RWMutex
	flows map[string]*flow

	// OnPeerLost is invoked (outside any internal lock) when a flow's
	// accumulated retransmit age exceeds TimeoutMax. The session registry
	// wires this to its own peer-purge logic.
	OnPeerLost func(addr *net.UDPAddr)

	// Metrics, when set, receives retransmit counts and ACK latency
	// observations as they happen. Nil is valid: Engine works unmetered.
	Metrics *metrics.Set
}

// NewEngine wraps an already-bound endpoint.
func NewEngine(ep *Endpoint) *Engine {
	return &Engine{
		endpoint: ep,
		flows:    make(map[string]*flow),
	}
}

func (e *Engine) getOrCreate(addr *net.UDPAddr) *flow {
	key := addr.String()
	e.mu.RLock()
	f, ok := e.flows[key]
	e.mu.RUnlock()
	if ok {
		return f
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, ok = e.flows[key]; ok {
		return f
	}
	f = newFlow(addr)
	e.flows[key] = f
	return f
}

// Send submits pkt to addr's flow. ACK packets bypass the window entirely
// (§4.2); DATA packets are refused with ErrWouldBlock when the window is
// saturated, and refusal never touches the wire.
func (e *Engine) Send(addr *net.UDPAddr, pkt wire.Packet) error {
	f := e.getOrCreate(addr)
	if pkt.IsACK() {
		return e.endpoint.Send(addr, pkt.Encode())
	}
	if err := f.send(&pkt); err != nil {
		return err
	}
	return e.endpoint.Send(addr, pkt.Encode())
}

// Poll drains every datagram currently queued on the endpoint, delivering
// in-order application PDUs and sending ACKs as needed. It never blocks
// longer than a handful of short, bounded reads.
func (e *Engine) Poll() []Delivery {
	var out []Delivery
	buf := make([]byte, wire.HeaderSize+wire.MaxPayload)
	for {
		addr, raw, err := e.endpoint.TryRecv(buf)
		if err != nil {
			if err == ErrNoData {
				return out
			}
			log.Printf("transport: recv error: %v", err)
			return out
		}
		pkt, decodeErr := wire.Decode(raw)
		if decodeErr != nil {
			log.Printf("transport: dropping malformed packet from %s: %v", addr, decodeErr)
			continue
		}
		f := e.getOrCreate(addr)
		if pkt.IsACK() {
			if latency, ok := f.receiveAck(pkt.Sequence, time.Now()); ok && e.Metrics != nil {
				e.Metrics.AckLatency.Observe(latency.Seconds())
			}
			continue
		}
		ack, delivered, ok := f.receiveData(pkt)
		if !ok {
			continue // outside receive window, dropped silently
		}
		if sendErr := e.endpoint.Send(addr, ack.Encode()); sendErr != nil {
			log.Printf("transport: failed to ack %s seq=%d: %v", addr, pkt.Sequence, sendErr)
		}
		for _, d := range delivered {
			out = append(out, Delivery{Addr: addr, Packet: d})
		}
	}
}

// Tick scans every flow for due retransmissions, resends them, and purges
// any flow that has exceeded TimeoutMax, invoking OnPeerLost for each.
func (e *Engine) Tick(now time.Time) {
	e.mu.RLock()
	snapshot := make(map[string]*flow, len(e.flows))
	for k, v := range e.flows {
		snapshot[k] = v
	}
	e.mu.RUnlock()

	for key, f := range snapshot {
		due, lost := f.dueRetransmits(now)
		for _, pkt := range due {
			if err := e.endpoint.Send(f.addr, pkt.Encode()); err != nil {
				log.Printf("transport: retransmit to %s seq=%d failed: %v", f.addr, pkt.Sequence, err)
			}
			if e.Metrics != nil {
				e.Metrics.Retransmits.Inc()
			}
		}
		if lost {
			e.mu.Lock()
			delete(e.flows, key)
			e.mu.Unlock()
			if e.OnPeerLost != nil {
				e.OnPeerLost(f.addr)
			}
		}
	}
}

// Drop removes a flow immediately, used when the session layer processes a
// REQ_QUIT and wants the transport state gone without waiting on a timeout.
func (e *Engine) Drop(addr *net.UDPAddr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.flows, addr.String())
}

// Outstanding reports the current send-window occupancy for addr, or 0 if
// no flow exists yet.
func (e *Engine) Outstanding(addr *net.UDPAddr) uint32 {
	e.mu.RLock()
	f, ok := e.flows[addr.String()]
	e.mu.RUnlock()
	if !ok {
		return 0
	}
	return f.Outstanding()
}

// Retransmits reports the lifetime retransmit count for addr's flow.
func (e *Engine) Retransmits(addr *net.UDPAddr) uint32 {
	e.mu.RLock()
	f, ok := e.flows[addr.String()]
	e.mu.RUnlock()
	if !ok {
		return 0
	}
	return f.Retransmits()
}

// FlowCount reports the number of live flows, used by metrics.
func (e *Engine) FlowCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.flows)
}

// Close releases the underlying endpoint.
func (e *Engine) Close() error {
	return e.endpoint.Close()
}

// LocalAddr reports the underlying endpoint's bound address.
func (e *Engine) LocalAddr() *net.UDPAddr {
	return e.endpoint.LocalAddr()
}
