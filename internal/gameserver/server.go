// Package gameserver wires the session registry, world tick engine,
// transport, leaderboard, and metrics into the single authoritative
// process (§4.3-§4.4, §4.11). Its Server type plays the role of the
// teacher's source/server/server.go Server: one UDP endpoint, a player
// table, a fixed-interval update ticker, and a signal-driven Start/Stop
// lifecycle — generalized from SA-MP's player-sync relay to the spec's
// own tick/session/snapshot pipeline.
package gameserver

import (
	"fmt"
	"net"
	"time"

	"github.com/dpasteros/asteroids-net/internal/applog"
	"github.com/dpasteros/asteroids-net/internal/config"
	"github.com/dpasteros/asteroids-net/internal/input"
	"github.com/dpasteros/asteroids-net/internal/leaderboard"
	"github.com/dpasteros/asteroids-net/internal/metrics"
	"github.com/dpasteros/asteroids-net/internal/session"
	"github.com/dpasteros/asteroids-net/internal/transport"
	"github.com/dpasteros/asteroids-net/internal/wire"
	"github.com/dpasteros/asteroids-net/internal/world"
)

// Server is the authoritative game process: one UDP endpoint multiplexed
// by internal/transport, a session registry, a world tick engine, and a
// shared leaderboard (§5's three protected regions).
type Server struct {
	cfg     config.Config
	engine  *transport.Engine
	peers   *session.Registry
	world   *world.World
	board   *leaderboard.Store
	metrics *metrics.Set

	running bool
	stop    chan struct{}
}

// New builds a Server bound to cfg's configured port; call Start to begin
// serving.
func New(cfg config.Config) (*Server, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(cfg.ServerIP), Port: cfg.ServerUDPPort}
	ep, err := transport.BindAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("gameserver: bind: %w", err)
	}

	board := leaderboard.New()
	if err := board.Load(cfg.LeaderboardPath); err != nil {
		applog.L().Warnw("failed to load leaderboard, starting empty", "err", err)
	}

	s := &Server{
		cfg:     cfg,
		engine:  transport.NewEngine(ep),
		peers:   session.New(cfg.MaxPlayers, cfg.RequiredPlayers),
		world:   world.New(),
		board:   board,
		metrics: metrics.NewSet(),
		stop:    make(chan struct{}),
	}
	s.engine.OnPeerLost = func(addr *net.UDPAddr) {
		s.peers.PurgePeerLost(addr)
		s.world.RemovePlayer(uint16(addr.Port))
	}
	s.engine.Metrics = s.metrics
	return s, nil
}

// Start runs the receive loop, the retransmit ticker, and the game tick
// loop until Stop is called. It blocks the calling goroutine, matching
// the teacher's Start() -> listen() blocking pattern.
func (s *Server) Start() error {
	s.running = true
	applog.L().Infow("server starting", "addr", s.engine.LocalAddr())

	tickInterval := time.Second / time.Duration(s.cfg.TickHz)
	snapshotInterval := time.Second / 60

	go s.retransmitLoop()
	go s.tickLoop(tickInterval)
	go s.snapshotLoop(snapshotInterval)

	s.recvLoop()
	return nil
}

// Stop signals every background loop to exit and closes the endpoint.
func (s *Server) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.engine.Close()
	if err := s.board.Save(s.cfg.LeaderboardPath); err != nil {
		applog.L().Errorw("failed to save leaderboard on shutdown", "err", err)
	}
}

func (s *Server) recvLoop() {
	for s.running {
		for _, d := range s.engine.Poll() {
			s.handlePacket(d)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (s *Server) retransmitLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.engine.Tick(now)
			s.metrics.PeerCount.Set(float64(s.peers.Count()))
			s.purgeIdlePeers()
		}
	}
}

// idlePeerThreshold bounds how long a registered peer may go without any
// inbound packet before the session layer itself declares it unresponsive.
// It is longer than the transport engine's TimeoutMax (10s), and unlike
// that budget it also applies when nothing is outstanding to the peer.
const idlePeerThreshold = 15 * time.Second

func (s *Server) purgeIdlePeers() {
	for _, p := range s.peers.IdlePeers(idlePeerThreshold) {
		applog.L().Infow("peer idle, purging", "peer_id", p.ID, "addr", p.Addr.String())
		s.peers.PurgePeerLost(p.Addr)
		s.world.RemovePlayer(p.ID)
		s.engine.Drop(p.Addr)
	}
}

func (s *Server) tickLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	dt := interval.Seconds()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			start := time.Now()
			s.world.Step(dt)
			s.metrics.TickDuration.Observe(time.Since(start).Seconds())

			if s.world.Phase == world.PhaseFinalizing {
				s.finalizeAndBroadcastLeaderboard()
			}
		}
	}
}

func (s *Server) snapshotLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.broadcastSnapshot()
		}
	}
}

func (s *Server) broadcastSnapshot() {
	snap := s.world.Snapshot()
	payload := snap.Encode()
	for _, p := range s.peers.InGamePeers() {
		pkt := wire.Packet{Command: wire.CmdSnapshot, Payload: payload}
		if err := s.engine.Send(p.Addr, pkt); err != nil {
			applog.L().Debugw("snapshot send dropped", "peer", p.ID, "err", err)
		}
	}
}

func (s *Server) finalizeAndBroadcastLeaderboard() {
	s.world.Finalize(s.board, time.Now().Format(time.RFC3339))
	top := s.board.Top(leaderboard.MaxScores)
	payload := []byte(fmt.Sprintf("%v", top))
	for _, p := range s.peers.InGamePeers() {
		pkt := wire.Packet{Command: wire.CmdLeaderboard, Payload: payload}
		if err := s.engine.Send(p.Addr, pkt); err != nil {
			applog.L().Debugw("leaderboard send dropped", "peer", p.ID, "err", err)
		}
	}
}

func (s *Server) handlePacket(d transport.Delivery) {
	s.peers.Touch(d.Addr)
	switch d.Packet.Command {
	case wire.CmdReqConnect:
		s.handleConnect(d.Addr)
	case wire.CmdReqGameStart:
		s.handleGameStart(d.Addr)
	case wire.CmdReqQuit:
		s.handleQuit(d.Addr)
	case wire.CmdInput:
		s.handleInput(d.Addr, d.Packet.Payload)
	default:
		applog.L().Debugw("unhandled command", "command", d.Packet.Command, "addr", d.Addr)
	}
}

func (s *Server) handleConnect(addr *net.UDPAddr) {
	if _, err := s.peers.Connect(addr); err != nil {
		applog.L().Warnw("connect refused", "addr", addr, "err", err)
		return
	}
	s.sendControl(addr, wire.CmdReqConnect)
}

func (s *Server) handleGameStart(addr *net.UDPAddr) {
	if _, err := s.peers.RequestGameStart(addr); err != nil {
		applog.L().Warnw("game start refused", "addr", addr, "err", err)
		return
	}
	s.sendControl(addr, wire.CmdReqGameStart)

	if ready := s.peers.ReadyToStart(); ready != nil {
		s.peers.StartGame(ready)
		for _, p := range ready {
			s.world.AddPlayer(p.ID, p.Name, p.Lives)
			s.sendControl(p.Addr, wire.CmdRspGameStart)
		}
	}
}

func (s *Server) handleQuit(addr *net.UDPAddr) {
	if _, err := s.peers.Quit(addr); err == nil {
		s.world.RemovePlayer(uint16(addr.Port))
	}
	s.sendControl(addr, wire.CmdReqQuit)
	s.engine.Drop(addr)
}

func (s *Server) handleInput(addr *net.UDPAddr, payload []byte) {
	p, ok := s.peers.Get(addr)
	if !ok || p.State != session.InGame {
		return // §4.7: input from a peer not InGame is dropped
	}
	if len(payload) < 1 {
		return
	}
	action := input.Action(payload[0])
	latch := s.latchFor(p.ID)
	if latch != nil {
		latch.Apply(action)
	}
}

func (s *Server) latchFor(peerID uint16) *input.Latch {
	for _, p := range s.world.Players() {
		if p.ID == peerID {
			return p.Latch
		}
	}
	return nil
}

func (s *Server) sendControl(addr *net.UDPAddr, cmd wire.Command) {
	if err := s.engine.Send(addr, wire.Packet{Command: cmd}); err != nil {
		applog.L().Debugw("control send dropped", "addr", addr, "cmd", cmd, "err", err)
	}
}

// Metrics exposes the server's collector set for wiring into an HTTP
// listener by the caller.
func (s *Server) Metrics() *metrics.Set { return s.metrics }

// RetransmitCount reports the lifetime retransmit count of addr's flow
// (0 if it has none), read without holding the registry or world lock.
func (s *Server) RetransmitCount(addr *net.UDPAddr) uint32 {
	return s.engine.Retransmits(addr)
}

// LocalAddr reports the bound UDP address.
func (s *Server) LocalAddr() *net.UDPAddr {
	return s.engine.LocalAddr()
}
