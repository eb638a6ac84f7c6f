package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestConnectCreatesPeerInConnectedState(t *testing.T) {
	r := New(4, 2)
	p, err := r.Connect(addr(9001))
	require.NoError(t, err)
	assert.Equal(t, Connected, p.State)
	assert.Equal(t, uint16(9001), p.ID)
}

// Round-trip property: two identical REQ_CONNECTs from one peer yield one
// Connected peer (§8).
func TestConnectIsIdempotent(t *testing.T) {
	r := New(4, 2)
	p1, err := r.Connect(addr(9001))
	require.NoError(t, err)
	p2, err := r.Connect(addr(9001))
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, r.Count())
}

func TestConnectRefusesAtCapacity(t *testing.T) {
	r := New(1, 2)
	_, err := r.Connect(addr(9001))
	require.NoError(t, err)
	_, err = r.Connect(addr(9002))
	assert.ErrorIs(t, err, ErrAtCapacity)
}

func TestGameStartRequiresConnectedFirst(t *testing.T) {
	r := New(4, 2)
	_, err := r.RequestGameStart(addr(9001))
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

// S1: after two clients both reach Joining, the registry reports them
// ready and StartGame promotes both to InGame.
func TestTwoJoiningPeersReadyAndPromoted(t *testing.T) {
	r := New(4, 2)
	_, _ = r.Connect(addr(9001))
	_, _ = r.Connect(addr(9002))
	_, err := r.RequestGameStart(addr(9001))
	require.NoError(t, err)
	assert.Nil(t, r.ReadyToStart()) // only one joining so far

	_, err = r.RequestGameStart(addr(9002))
	require.NoError(t, err)
	ready := r.ReadyToStart()
	require.Len(t, ready, 2)

	r.StartGame(ready)
	p1, _ := r.Get(addr(9001))
	p2, _ := r.Get(addr(9002))
	assert.Equal(t, InGame, p1.State)
	assert.Equal(t, InGame, p2.State)
	assert.Equal(t, int32(3), p1.Lives)
}

func TestQuitRemovesPeer(t *testing.T) {
	r := New(4, 2)
	_, _ = r.Connect(addr(9001))
	removed, err := r.Quit(addr(9001))
	require.NoError(t, err)
	assert.Equal(t, Disconnected, removed.State)
	_, ok := r.Get(addr(9001))
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestQuitUnknownPeerErrors(t *testing.T) {
	r := New(4, 2)
	_, err := r.Quit(addr(9001))
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestPurgePeerLostRemovesPeer(t *testing.T) {
	r := New(4, 2)
	_, _ = r.Connect(addr(9001))
	r.PurgePeerLost(addr(9001))
	_, ok := r.Get(addr(9001))
	assert.False(t, ok)
}

// A peer that is never touched after Connect, and whose seen entry has
// therefore aged past the threshold, is reported idle.
func TestIdlePeersReportsPeerWithNoRecentTraffic(t *testing.T) {
	r := New(4, 2)
	_, err := r.Connect(addr(9001))
	require.NoError(t, err)

	idle := r.IdlePeers(0) // any age at all counts as idle
	require.Len(t, idle, 1)
	assert.Equal(t, uint16(9001), idle[0].ID)
}

// Touch refreshes the seen timestamp, so a peer touched just now is not
// reported idle under a one-minute threshold.
func TestTouchKeepsPeerOffIdleList(t *testing.T) {
	r := New(4, 2)
	_, err := r.Connect(addr(9001))
	require.NoError(t, err)

	r.Touch(addr(9001))
	idle := r.IdlePeers(time.Minute)
	assert.Empty(t, idle)
}

func TestInGamePeersOnlyReturnsInGame(t *testing.T) {
	r := New(4, 2)
	_, _ = r.Connect(addr(9001))
	_, _ = r.Connect(addr(9002))
	_, _ = r.RequestGameStart(addr(9001))
	_, _ = r.RequestGameStart(addr(9002))
	ready := r.ReadyToStart()
	r.StartGame(ready)

	_, _ = r.Connect(addr(9003)) // stays Connected, never joins

	inGame := r.InGamePeers()
	assert.Len(t, inGame, 2)
}
