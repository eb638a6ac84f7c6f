package filetransfer

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpasteros/asteroids-net/internal/transport"
	"github.com/dpasteros/asteroids-net/internal/wire"
)

// S6: a 100-chunk transfer exceeds transport.SeqSpace (64), the case that
// broke the old transport.Engine-based data plane by wrapping chunk
// indices modulo 64. ChunkSender/ChunkReceiver must carry every one of
// the 100 true chunk indices across the wire untouched.
func TestChunkTransferSurvivesMoreThanSeqSpaceChunks(t *testing.T) {
	const chunkCount = 100
	require.Greater(t, chunkCount, transport.SeqSpace)

	srcPath := writeTempFile(t, wire.MaxPayload*chunkCount-123) // final chunk partial
	info, err := os.Stat(srcPath)
	require.NoError(t, err)

	sess, err := NewSession(srcPath, 0)
	require.NoError(t, err)
	assert.EqualValues(t, chunkCount, sess.TotalPackets)

	serverEp, err := transport.Bind(0)
	require.NoError(t, err)
	defer serverEp.Close()

	clientEp, err := transport.Bind(0)
	require.NoError(t, err)
	defer clientEp.Close()

	dstPath := filepath.Join(t.TempDir(), "out.bin")
	out, err := PreallocateOutput(dstPath, info.Size())
	require.NoError(t, err)
	defer out.Close()

	sender := NewChunkSender(serverEp, clientEp.LocalAddr(), srcPath, sess)
	receiver := NewChunkReceiver(clientEp, serverEp.LocalAddr(), out, sess.TotalPackets)

	deadline := time.Now().Add(10 * time.Second)
	buf := make([]byte, wire.MaxPayload+wire.HeaderSize)
	for !receiver.Done() {
		require.True(t, time.Now().Before(deadline), "transfer did not complete in time")

		require.NoError(t, sender.Tick(time.Now()))

		for {
			_, raw, err := clientEp.TryRecv(buf)
			if err != nil {
				break
			}
			pkt, err := wire.Decode(raw)
			require.NoError(t, err)
			require.Equal(t, wire.CmdDownloadData, pkt.Command)
			require.NoError(t, receiver.HandleData(pkt))
		}
		for {
			_, raw, err := serverEp.TryRecv(buf)
			if err != nil {
				break
			}
			pkt, err := wire.Decode(raw)
			require.NoError(t, err)
			require.True(t, pkt.IsACK())
			sender.HandleAck(pkt.Sequence)
		}
	}

	assert.True(t, sender.Done())

	want, err := os.ReadFile(srcPath)
	require.NoError(t, err)
	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// HandleAck only slides send_base past chunks that were actually sent;
// an ACK for a chunk the sender never transmitted (or already slid past)
// is ignored rather than corrupting sendBase.
func TestChunkSenderIgnoresUnsolicitedAck(t *testing.T) {
	srcPath := writeTempFile(t, wire.MaxPayload*2)
	sess, err := NewSession(srcPath, 0)
	require.NoError(t, err)

	ep, err := transport.Bind(0)
	require.NoError(t, err)
	defer ep.Close()
	dest := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}

	sender := NewChunkSender(ep, dest, srcPath, sess)
	sender.HandleAck(5) // never sent
	assert.False(t, sess.isAcked(5))
	assert.EqualValues(t, 0, sender.sendBase)
}
