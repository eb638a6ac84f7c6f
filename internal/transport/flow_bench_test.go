package transport

import (
	"testing"
	"time"

	"github.com/dpasteros/asteroids-net/internal/wire"
)

func BenchmarkFlowSend(b *testing.B) {
	f := newFlow(testAddr())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var p wire.Packet
		if f.send(&p) == ErrWouldBlock {
			f.receiveAck(f.sendBase, time.Now())
		}
	}
}

func BenchmarkFlowReceiveDataInOrder(b *testing.B) {
	f := newFlow(testAddr())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seq := uint32(i) % SeqSpace
		f.recvBase = seq
		f.receiveData(wire.Packet{Command: wire.CmdInput, Sequence: seq})
	}
}

func BenchmarkPacketEncodeDecode(b *testing.B) {
	p := wire.Packet{Command: wire.CmdSnapshot, Sequence: 42, Payload: make([]byte, 512)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		raw := p.Encode()
		_, _ = wire.Decode(raw)
	}
}

func BenchmarkDueRetransmits(b *testing.B) {
	f := newFlow(testAddr())
	for i := 0; i < Window; i++ {
		var p wire.Packet
		f.send(&p)
	}
	now := time.Now().Add(Timeout)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.dueRetransmits(now)
	}
}
