// Command filectl is the file-transfer CLI client: it lists files via
// REQ_LISTFILES and downloads one via DOWNLOAD_REQ/RSP, then drives the
// UDP SR data plane to pull every chunk (§4.10). Its prompts are outside
// the core contract (§6) and follow the original's interactive style.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/dpasteros/asteroids-net/internal/applog"
	"github.com/dpasteros/asteroids-net/internal/filetransfer"
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

	serverAddr := prompt(in, "File server address (host:port): ")
	conn, err := net.Dial("tcp", serverAddr)
	if err != nil {
		log.Fatalw("dial failed", "err", err)
	}

	if err := filetransfer.WriteFrame(conn, filetransfer.TagListFilesReq, nil); err != nil {
		log.Fatalw("list request failed", "err", err)
	}
	tag, payload, err := filetransfer.ReadFrame(bufio.NewReader(conn))
	if err != nil || tag != filetransfer.TagListFilesRsp {
		log.Fatalw("list response failed", "err", err)
	}
	conn.Close()

	files := filetransfer.DecodeFileList(payload)
	fmt.Println("Available files:")
	for _, f := range files {
		fmt.Println(" -", f)
	}

	filename := prompt(in, "File to download: ")
	localPortStr := prompt(in, "Local UDP port for data plane: ")
	localPort, err := strconv.Atoi(localPortStr)
	if err != nil {
		log.Fatalw("bad local port", "err", err)
	}

	conn, err = net.Dial("tcp", serverAddr)
	if err != nil {
		log.Fatalw("dial failed", "err", err)
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.TCPAddr)
	req := filetransfer.DownloadRequest{RequesterIP: localAddr.IP.String(), RequesterPort: localPort, Filename: filename}
	if err := filetransfer.WriteFrame(conn, filetransfer.TagDownloadReq, filetransfer.EncodeDownloadRequest(req)); err != nil {
		log.Fatalw("download request failed", "err", err)
	}

	tag, payload, err = filetransfer.ReadFrame(bufio.NewReader(conn))
	if err != nil {
		log.Fatalw("download response read failed", "err", err)
	}
	if tag == filetransfer.TagDownloadErr {
		log.Fatalw("server reported file missing", "payload", string(payload))
	}
	rsp, err := filetransfer.DecodeDownloadResponse(payload)
	if err != nil {
		log.Fatalw("malformed download response", "err", err)
	}

	pullFile(localPort, rsp, log)
}

func pullFile(localPort int, rsp filetransfer.DownloadResponse, log interface {
	Infow(string, ...interface{})
	Fatalw(string, ...interface{})
}) {
	ep, err := transport.Bind(localPort)
	if err != nil {
		log.Fatalw("bind failed", "err", err)
	}
	defer ep.Close()

	f, err := filetransfer.PreallocateOutput(rsp.Filename, rsp.FileSize)
	if err != nil {
		log.Fatalw("preallocate failed", "err", err)
	}
	defer f.Close()

	serverDataAddr := &net.UDPAddr{IP: net.ParseIP(rsp.ServerIP), Port: rsp.EphemeralPort}
	total := uint32((rsp.FileSize + int64(wire.MaxPayload) - 1) / int64(wire.MaxPayload))
	receiver := filetransfer.NewChunkReceiver(ep, serverDataAddr, f, total)

	buf := make([]byte, wire.MaxPayload+wire.HeaderSize)
	for !receiver.Done() {
		_, raw, err := ep.TryRecv(buf)
		if err != nil {
			continue
		}
		pkt, err := wire.Decode(raw)
		if err != nil || pkt.Command != wire.CmdDownloadData {
			continue
		}
		if err := receiver.HandleData(pkt); err != nil {
			log.Fatalw("write chunk failed", "err", err)
		}
	}

	log.Infow("download complete", "filename", rsp.Filename, "bytes", rsp.FileSize)
}
