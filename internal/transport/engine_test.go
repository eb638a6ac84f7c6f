package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpasteros/asteroids-net/internal/metrics"
	"github.com/dpasteros/asteroids-net/internal/wire"
)

func newLoopbackPair(t *testing.T) (*Engine, *Engine) {
	t.Helper()
	epA, err := Bind(0)
	require.NoError(t, err)
	epB, err := Bind(0)
	require.NoError(t, err)
	t.Cleanup(func() {
		epA.Close()
		epB.Close()
	})
	return NewEngine(epA), NewEngine(epB)
}

func waitDeliveries(t *testing.T, e *Engine, n int) []Delivery {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var out []Delivery
	for time.Now().Before(deadline) {
		out = append(out, e.Poll()...)
		if len(out) >= n {
			return out
		}
	}
	t.Fatalf("timed out waiting for %d deliveries, got %d", n, len(out))
	return nil
}

// S1: loss-free handshake delivers REQ_CONNECT then REQ_GAME_START in order,
// each generating exactly one ACK back to the sender.
func TestHandshakeRoundTrip(t *testing.T) {
	server, client := newLoopbackPair(t)
	serverAddr := server.endpoint.LocalAddr()

	require.NoError(t, client.Send(serverAddr, wire.Packet{Command: wire.CmdReqConnect}))
	delivered := waitDeliveries(t, server, 1)
	require.Len(t, delivered, 1)
	assert.Equal(t, wire.CmdReqConnect, delivered[0].Packet.Command)
	assert.Equal(t, uint32(0), delivered[0].Packet.Sequence)

	require.NoError(t, client.Send(serverAddr, wire.Packet{Command: wire.CmdReqGameStart}))
	delivered = waitDeliveries(t, server, 1)
	assert.Equal(t, wire.CmdReqGameStart, delivered[0].Packet.Command)
	assert.Equal(t, uint32(1), delivered[0].Packet.Sequence)
}

// S3: with W=32, the 33rd back-to-back send is refused; once the first ACK
// lands, a subsequent send succeeds.
func TestWindowSaturation(t *testing.T) {
	server, client := newLoopbackPair(t)
	serverAddr := server.endpoint.LocalAddr()

	for i := 0; i < Window; i++ {
		require.NoError(t, client.Send(serverAddr, wire.Packet{Command: wire.CmdInput}))
	}
	err := client.Send(serverAddr, wire.Packet{Command: wire.CmdInput})
	assert.ErrorIs(t, err, ErrWouldBlock)

	waitDeliveries(t, server, Window)
	// Server's Poll() sent ACKs back to client; drain them.
	deadline := time.Now().Add(2 * time.Second)
	for client.Outstanding(serverAddr) == Window && time.Now().Before(deadline) {
		client.Poll()
	}
	require.Less(t, client.Outstanding(serverAddr), uint32(Window))

	err = client.Send(serverAddr, wire.Packet{Command: wire.CmdInput})
	assert.NoError(t, err)
}

func TestMalformedPacketIsDroppedNotFatal(t *testing.T) {
	server, client := newLoopbackPair(t)
	serverAddr := server.endpoint.LocalAddr()

	require.NoError(t, client.endpoint.Send(serverAddr, []byte{0xFF, 0xFF}))
	require.NoError(t, client.Send(serverAddr, wire.Packet{Command: wire.CmdReqConnect}))

	delivered := waitDeliveries(t, server, 1)
	require.Len(t, delivered, 1)
	assert.Equal(t, wire.CmdReqConnect, delivered[0].Packet.Command)
}

// counterValue and histogramCount pull a single sample out of a gathered
// registry, returning 0 if the family has no samples yet.
func counterValue(t *testing.T, m *metrics.Set, name string) float64 {
	t.Helper()
	mfs, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func histogramCount(t *testing.T, m *metrics.Set, name string) uint64 {
	t.Helper()
	mfs, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}

// An ACK observed through Poll records an AckLatency sample, and a
// retransmit observed through Tick increments the Retransmits counter.
func TestEngineObservesAckLatencyAndRetransmits(t *testing.T) {
	server, client := newLoopbackPair(t)
	serverAddr := server.endpoint.LocalAddr()

	m := metrics.NewSet()
	client.Metrics = m

	require.NoError(t, client.Send(serverAddr, wire.Packet{Command: wire.CmdInput}))
	waitDeliveries(t, server, 1) // server's Poll sends the ACK back

	deadline := time.Now().Add(2 * time.Second)
	for histogramCount(t, m, "asteroids_ack_latency_seconds") == 0 && time.Now().Before(deadline) {
		client.Poll()
	}
	assert.Greater(t, histogramCount(t, m, "asteroids_ack_latency_seconds"), uint64(0))

	server2, client2 := newLoopbackPair(t)
	serverAddr2 := server2.endpoint.LocalAddr()
	server2.Close() // never ACKs, forcing a retransmit
	client2.Metrics = m

	require.NoError(t, client2.Send(serverAddr2, wire.Packet{Command: wire.CmdInput}))
	client2.Tick(time.Now().Add(Timeout))

	assert.Greater(t, counterValue(t, m, "asteroids_retransmits_total"), 0.0)
}

func TestTickRetransmitsThenReportsPeerLost(t *testing.T) {
	server, client := newLoopbackPair(t)
	serverAddr := server.endpoint.LocalAddr()
	// Close the server's socket so retransmissions never get ACKed and the
	// flow is guaranteed to cross TimeoutMax.
	server.Close()

	require.NoError(t, client.Send(serverAddr, wire.Packet{Command: wire.CmdInput}))

	var lostAddr *net.UDPAddr
	client.OnPeerLost = func(addr *net.UDPAddr) { lostAddr = addr }

	start := time.Now()
	steps := int(TimeoutMax/Timeout) + 2
	now := start
	for i := 0; i < steps && lostAddr == nil; i++ {
		now = now.Add(Timeout)
		client.Tick(now)
	}
	require.NotNil(t, lostAddr)
	assert.True(t, AddrEqual(lostAddr, serverAddr))
	assert.Equal(t, 0, client.FlowCount())
}
