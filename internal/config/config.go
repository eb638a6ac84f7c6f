// Package config parses the plain key=value configuration file (§6).
// Hand-rolled over bufio.Scanner rather than a third-party config library:
// no repo in the retrieval pack parses flat key=value ini-style files
// (cppla-moto's config/setting.go unmarshals JSON into a struct, a
// different shape), so there is no library in the pack to adopt here.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// InvalidError reports a malformed configuration line, including its
// 1-based line number (§7: "ConfigInvalid... print line number if
// available").
type InvalidError struct {
	Line int
	Text string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("config: invalid line %d: %q", e.Line, e.Text)
}

// Config holds the recognised keys from §6 plus this module's expansion
// (maxPlayers, requiredPlayers, tickHz, logPath, logLevel, leaderboardPath,
// metricsAddr). Unknown keys are ignored, per spec.
type Config struct {
	ServerIP      string
	ServerUDPPort int

	MaxPlayers      int
	RequiredPlayers int
	TickHz          int

	LogPath  string
	LogLevel string

	LeaderboardPath string
	MetricsAddr     string
}

// Defaults mirrors the constants named throughout §3/§4 so a config file
// that only sets serverIp/serverUdpPort still yields a runnable server.
func Defaults() Config {
	return Config{
		ServerIP:        "127.0.0.1",
		ServerUDPPort:   9000,
		MaxPlayers:      4,
		RequiredPlayers: 2,
		TickHz:          60,
		LogPath:         "",
		LogLevel:        "info",
		LeaderboardPath: "leaderboard.bin",
		MetricsAddr:     "",
	}
}

// Load reads and parses path over Defaults(). A line with no '=' is
// InvalidError; unrecognised keys are ignored.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()

	cfg := Defaults()
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return Config{}, &InvalidError{Line: lineNum, Text: line}
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		applyKey(&cfg, key, val)
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: scan: %w", err)
	}
	return cfg, nil
}

func applyKey(cfg *Config, key, val string) {
	switch key {
	case "serverIp":
		cfg.ServerIP = val
	case "serverUdpPort":
		if n, err := strconv.Atoi(val); err == nil {
			cfg.ServerUDPPort = n
		}
	case "maxPlayers":
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxPlayers = n
		}
	case "requiredPlayers":
		if n, err := strconv.Atoi(val); err == nil {
			cfg.RequiredPlayers = n
		}
	case "tickHz":
		if n, err := strconv.Atoi(val); err == nil {
			cfg.TickHz = n
		}
	case "logPath":
		cfg.LogPath = val
	case "logLevel":
		cfg.LogLevel = val
	case "leaderboardPath":
		cfg.LeaderboardPath = val
	case "metricsAddr":
		cfg.MetricsAddr = val
	default:
		// unknown keys ignored, per §6
	}
}
