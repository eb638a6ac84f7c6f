// Command asteroids-client is a thin UDP client harness: SR ingest and
// egress only, no renderer (§1 Out-of-scope: "the rendering loop... are
// consumers of the core and appear only through the interfaces in §6").
// Its line-oriented stdin prompts follow §6's CLI contract, grounded in
// Network.cpp's ConnectToServer prompt sequence (server IP, server UDP
// port, client UDP port).
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dpasteros/asteroids-net/internal/applog"
	"github.com/dpasteros/asteroids-net/internal/snapshot"
	"github.com/dpasteros/asteroids-net/internal/transport"
	"github.com/dpasteros/asteroids-net/internal/wire"
)

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func main() {
	log := applog.L()
	in := bufio.NewReader(os.Stdin)

	serverIP := prompt(in, "Server IP Address: ")
	serverPortStr := prompt(in, "Server UDP Port Number: ")
	clientPortStr := prompt(in, "Client UDP Port Number: ")

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		log.Fatalw("bad server port", "err", err)
	}
	clientPort, err := strconv.Atoi(clientPortStr)
	if err != nil {
		log.Fatalw("bad client port", "err", err)
	}

	ep, err := transport.Bind(clientPort)
	if err != nil {
		log.Fatalw("bind failed", "err", err)
	}
	engine := transport.NewEngine(ep)
	defer engine.Close()

	serverAddr := &net.UDPAddr{IP: net.ParseIP(serverIP), Port: serverPort}

	if err := engine.Send(serverAddr, wire.Packet{Command: wire.CmdReqConnect}); err != nil {
		log.Fatalw("connect failed", "err", err)
	}
	if err := engine.Send(serverAddr, wire.Packet{Command: wire.CmdReqGameStart}); err != nil {
		log.Fatalw("game start failed", "err", err)
	}
	log.Infow("connected, waiting for game to start", "server", serverAddr.String())

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	lastApplied := uint32(0)

	for range ticker.C {
		engine.Tick(time.Now())
		for _, d := range engine.Poll() {
			switch d.Packet.Command {
			case wire.CmdRspGameStart:
				log.Infow("game started")
			case wire.CmdSnapshot:
				snap, err := snapshot.Decode(d.Packet.Payload)
				if err != nil {
					log.Debugw("dropped malformed snapshot", "err", err)
					continue
				}
				// §5: "a client must ignore any snapshot with world_seq <= last_applied"
				if snap.WorldSeq <= lastApplied {
					continue
				}
				lastApplied = snap.WorldSeq
				log.Debugw("applied snapshot", "world_seq", snap.WorldSeq, "objects", snap.ObjectCount)
			case wire.CmdLeaderboard:
				log.Infow("leaderboard received", "bytes", len(d.Packet.Payload))
			}
		}
	}
}
