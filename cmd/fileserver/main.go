// Command fileserver runs the file-transfer control (TCP) and data (UDP
// SR) planes described in §4.10: DOWNLOAD_REQ/RSP/ERR plus the
// supplemented REQ_LISTFILES/RSP_LISTFILES, each download handed its own
// ephemeral UDP socket so bulk traffic never contends with the game
// endpoint's window. Grounded in original_source/Server_Project/server.cpp's
// accept-loop-plus-sendFileReliably structure.
package main

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/dpasteros/asteroids-net/internal/applog"
	"github.com/dpasteros/asteroids-net/internal/filetransfer"
	"github.com/dpasteros/asteroids-net/internal/transport"
	"github.com/dpasteros/asteroids-net/internal/wire"
)

func main() {
	log := applog.L()

	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	tcpAddr := ":9700"
	if len(os.Args) > 2 {
		tcpAddr = os.Args[2]
	}

	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		log.Fatalw("listen failed", "err", err)
	}
	defer ln.Close()
	log.Infow("fileserver listening", "addr", tcpAddr, "root", root)

	limiter := filetransfer.NewRateLimiter(10, time.Minute)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Errorw("accept failed", "err", err)
			continue
		}
		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if !limiter.Allow(host) {
			log.Warnw("rate limit exceeded", "addr", host)
			conn.Close()
			continue
		}
		go handleConn(conn, root, log)
	}
}

func handleConn(conn net.Conn, root string, log interface {
	Infow(string, ...interface{})
	Warnw(string, ...interface{})
	Errorw(string, ...interface{})
}) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	tag, payload, err := filetransfer.ReadFrame(r)
	if err != nil {
		log.Warnw("read frame failed", "err", err)
		return
	}

	switch tag {
	case filetransfer.TagListFilesReq:
		names, err := filetransfer.ListFiles(root)
		if err != nil {
			log.Errorw("list files failed", "err", err)
			return
		}
		filetransfer.WriteFrame(conn, filetransfer.TagListFilesRsp, filetransfer.EncodeFileList(names))

	case filetransfer.TagDownloadReq:
		req, err := filetransfer.DecodeDownloadRequest(payload)
		if err != nil {
			log.Warnw("malformed download request", "err", err)
			return
		}
		serveDownload(conn, root, req, log)

	default:
		log.Warnw("unexpected control tag", "tag", tag)
	}
}

func serveDownload(conn net.Conn, root string, req filetransfer.DownloadRequest, log interface {
	Infow(string, ...interface{})
	Warnw(string, ...interface{})
	Errorw(string, ...interface{})
}) {
	fullPath := filepath.Join(root, filepath.Base(req.Filename))

	ep, err := transport.Bind(0)
	if err != nil {
		log.Errorw("ephemeral bind failed", "err", err)
		filetransfer.WriteFrame(conn, filetransfer.TagDownloadErr, []byte("internal error"))
		return
	}

	sess, err := filetransfer.NewSession(fullPath, ep.LocalAddr().Port)
	if err != nil {
		filetransfer.WriteFrame(conn, filetransfer.TagDownloadErr, []byte("file not found"))
		ep.Close()
		return
	}

	rsp := filetransfer.DownloadResponse{
		ServerIP:      ep.LocalAddr().IP.String(),
		EphemeralPort: sess.EphemeralPort,
		SessionID:     sess.ID.String(),
		FileSize:      sess.FileSize,
		Filename:      req.Filename,
	}
	if err := filetransfer.WriteFrame(conn, filetransfer.TagDownloadRsp, filetransfer.EncodeDownloadResponse(rsp)); err != nil {
		ep.Close()
		return
	}

	clientAddr := &net.UDPAddr{IP: net.ParseIP(req.RequesterIP), Port: req.RequesterPort}
	go runTransfer(ep, clientAddr, fullPath, sess, log)
}

func runTransfer(ep *transport.Endpoint, clientAddr *net.UDPAddr, path string, sess *filetransfer.Session, log interface {
	Infow(string, ...interface{})
	Warnw(string, ...interface{})
	Errorw(string, ...interface{})
}) {
	defer ep.Close()
	start := time.Now()

	sender := filetransfer.NewChunkSender(ep, clientAddr, path, sess)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	buf := make([]byte, wire.MaxPayload+wire.HeaderSize)
	for !sender.Done() {
		if sess.Expired() {
			log.Warnw("transfer expired", "session", sess.ID.String())
			return
		}
		<-ticker.C
		if err := sender.Tick(time.Now()); err != nil {
			log.Errorw("transfer failed", "session", sess.ID.String(), "err", err)
			return
		}
		for {
			_, raw, err := ep.TryRecv(buf)
			if err != nil {
				break
			}
			pkt, err := wire.Decode(raw)
			if err != nil || !pkt.IsACK() {
				continue
			}
			sender.HandleAck(pkt.Sequence)
		}
	}

	log.Infow("transfer complete", "session", sess.ID.String(), "elapsed", time.Since(start))
}
