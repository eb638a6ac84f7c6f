// Package session implements the peer registry and lifecycle state machine
// (§4.3, §4.11): Unknown -> Connected -> Joining -> InGame -> Disconnected.
// It is the Go analog of the teacher's Server.Players map, generalized from
// a single "connected" bool into the spec's full state machine and backed
// by an expiring cache for unresponsive-peer tracking, the way
// cppla-moto's controller/server.go tracks request IPs in its ipCache.
package session

import (
	"net"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/dpasteros/asteroids-net/internal/applog"
)

// State is one node of the peer lifecycle state machine (§4.11).
type State int

const (
	Unknown State = iota
	Connected
	Joining
	InGame
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Joining:
		return "joining"
	case InGame:
		return "ingame"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ErrAtCapacity is returned when a REQ_CONNECT arrives with the registry
// already holding MaxPeers peers.
var ErrAtCapacity = errors.New("session: registry at capacity")

// ErrUnknownPeer is returned when an operation names a peer the registry
// has never seen.
var ErrUnknownPeer = errors.New("session: unknown peer")

// Peer is one entry in the registry. ID is the peer's source UDP port
// (§4.3: "Peer ID for game purposes is the peer's source UDP port"),
// stable across state transitions so world objects can key on it without
// holding a pointer back into the registry (§9, "replace pointer cycles
// with stable integer handles").
type Peer struct {
	ID    uint16
	Addr  *net.UDPAddr
	State State

	Name  string
	Score int32
	Lives int32

	joinedAt time.Time
}

// Registry tracks every known peer keyed by its (ip, port) address string,
// plus an expiring side-cache used to detect peers that stopped responding
// before the transport layer's own timeout fires (the same
// responsiveness-tracking idea as moto's ipCache, applied to UDP peers
// instead of HTTP source IPs).
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]*Peer

	seen *cache.Cache

	maxPeers       int
	requiredPlayers int
}

// New builds an empty registry. maxPeers bounds REQ_CONNECT acceptance;
// requiredPlayers is the Joining-queue threshold that triggers game start.
func New(maxPeers, requiredPlayers int) *Registry {
	return &Registry{
		byKey:           make(map[string]*Peer),
		seen:            cache.New(2*time.Minute, 5*time.Minute),
		maxPeers:        maxPeers,
		requiredPlayers: requiredPlayers,
	}
}

func key(addr *net.UDPAddr) string {
	return addr.String()
}

// Connect handles REQ_CONNECT (§4.3). A second REQ_CONNECT from an address
// already present is idempotent: it returns the existing peer rather than
// erroring, matching S2's "server detects duplicate, ACKs again; registry
// still has a single entry."
func (r *Registry) Connect(addr *net.UDPAddr) (*Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(addr)
	if p, ok := r.byKey[k]; ok {
		r.seen.Set(k, time.Now(), cache.DefaultExpiration)
		return p, nil
	}
	if len(r.byKey) >= r.maxPeers {
		return nil, ErrAtCapacity
	}
	p := &Peer{
		ID:    uint16(addr.Port),
		Addr:  addr,
		State: Connected,
	}
	r.byKey[k] = p
	r.seen.Set(k, time.Now(), cache.DefaultExpiration)
	applog.L().Debugw("peer connected", "peer_id", p.ID, "addr", addr.String())
	return p, nil
}

// RequestGameStart handles REQ_GAME_START: a Connected peer moves to
// Joining. Idempotent under retransmission — calling it again on a peer
// already Joining or InGame is a no-op success, matching the ACK-replay
// semantics the transport layer already guarantees at a lower level.
func (r *Registry) RequestGameStart(addr *net.UDPAddr) (*Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byKey[key(addr)]
	if !ok {
		return nil, ErrUnknownPeer
	}
	if p.State == Connected {
		p.State = Joining
		p.joinedAt = time.Now()
	}
	return p, nil
}

// ReadyToStart reports whether enough peers are Joining to start a game,
// and returns them in join order (§4.3: "when the number of Joining peers
// reaches required_players").
func (r *Registry) ReadyToStart() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var joining []*Peer
	for _, p := range r.byKey {
		if p.State == Joining {
			joining = append(joining, p)
		}
	}
	if len(joining) < r.requiredPlayers {
		return nil
	}
	// Stable by joinedAt so the same set of peers is returned deterministically.
	for i := 1; i < len(joining); i++ {
		for j := i; j > 0 && joining[j].joinedAt.Before(joining[j-1].joinedAt); j-- {
			joining[j], joining[j-1] = joining[j-1], joining[j]
		}
	}
	return joining[:r.requiredPlayers]
}

// StartGame transitions the given peers from Joining to InGame, assigning
// their initial player record. Called once ReadyToStart returns a full set.
func (r *Registry) StartGame(peers []*Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range peers {
		p.State = InGame
		p.Score = 0
		p.Lives = 3
	}
}

// Quit handles REQ_QUIT: remove the peer from the registry entirely
// (§4.3: "remove from both Connected and Joining, remove from world if
// present"). Returns the removed peer, or ErrUnknownPeer if it was never
// registered.
func (r *Registry) Quit(addr *net.UDPAddr) (*Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(addr)
	p, ok := r.byKey[k]
	if !ok {
		return nil, ErrUnknownPeer
	}
	delete(r.byKey, k)
	r.seen.Delete(k)
	p.State = Disconnected
	return p, nil
}

// Get looks up a peer by address without mutating state.
func (r *Registry) Get(addr *net.UDPAddr) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byKey[key(addr)]
	return p, ok
}

// InGamePeers returns a snapshot slice of every peer currently InGame, for
// the tick engine and snapshot broadcaster to iterate without holding the
// registry lock during their own work.
func (r *Registry) InGamePeers() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Peer
	for _, p := range r.byKey {
		if p.State == InGame {
			out = append(out, p)
		}
	}
	return out
}

// Count reports the total number of registered peers, used by metrics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

// Touch refreshes addr's last-seen timestamp. Called on every inbound
// packet from a known peer, not just REQ_CONNECT/REQ_GAME_START, so
// IdlePeers reflects true traffic recency.
func (r *Registry) Touch(addr *net.UDPAddr) {
	k := key(addr)
	r.mu.RLock()
	_, ok := r.byKey[k]
	r.mu.RUnlock()
	if ok {
		r.seen.Set(k, time.Now(), cache.DefaultExpiration)
	}
}

// IdlePeers returns every registered peer that has gone quiet for at least
// maxIdle: either its seen entry aged past maxIdle, or it expired out of
// the cache entirely. This is the session layer's own responsiveness
// sweep (moto's ipCache pattern, applied to UDP peers), independent of
// and typically faster than the transport engine's own SR TimeoutMax,
// which only fires once a packet is actually outstanding and unacked.
func (r *Registry) IdlePeers(maxIdle time.Duration) []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var idle []*Peer
	for k, p := range r.byKey {
		lastSeen, ok := r.seen.Get(k)
		if !ok || now.Sub(lastSeen.(time.Time)) >= maxIdle {
			idle = append(idle, p)
		}
	}
	return idle
}

// PurgePeerLost removes a peer in response to the transport engine's
// OnPeerLost callback (§4.2's PeerLost propagated up from an accumulated
// SR timeout), wiring session state to unresponsive-peer detection the
// way the teacher's CleanupStaleSessions ticker purges stale RakNet
// sessions on a timer.
func (r *Registry) PurgePeerLost(addr *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(addr)
	if p, ok := r.byKey[k]; ok {
		p.State = Disconnected
		delete(r.byKey, k)
		r.seen.Delete(k)
		applog.L().Infow("peer lost", "peer_id", p.ID, "addr", addr.String())
	}
}
