// Command sspclient is a minimal SSP peer over UDP: it opens one socket,
// reads lines from stdin, sends each line as one message to a configured
// peer socket, and logs whatever the peer sends back. Configuration
// follows the same config.json convention as sspgateway.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexlink-io/ssp/ssp"
	"github.com/nexlink-io/ssp/hostservices"
	"github.com/nexlink-io/ssp/transport/udpbyte"
)

type clientConfig struct {
	LocalAddr   string `json:"local addr"`
	RemoteAddr  string `json:"remote addr"`
	LocalSocket byte   `json:"local socket"`
	PeerSocket  byte   `json:"peer socket"`
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf(`%v (you must have a valid "config.json" next to the executable)`, err)
	}

	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("app", "sspclient").Logger()

	laddr, err := net.ResolveUDPAddr("udp", cfg.LocalAddr)
	if err != nil {
		logger.Fatal().Msgf("resolve local addr: %v", err)
	}
	raddr, err := net.ResolveUDPAddr("udp", cfg.RemoteAddr)
	if err != nil {
		logger.Fatal().Msgf("resolve remote addr: %v", err)
	}

	engineCfg := ssp.NewConfig(ssp.WithLogger(logger))
	engine := ssp.NewEngine(engineCfg, hostservices.NewStd())

	conn := udpbyte.New(laddr, raddr)
	if err := engine.OpenPort(1, conn); err != ssp.Success {
		logger.Fatal().Msgf("open udp port: %v", err)
	}
	if err := engine.OpenSocket(1, cfg.LocalSocket); err != ssp.Success {
		logger.Fatal().Msgf("open socket: %v", err)
	}
	if err := engine.RegisterListener(cfg.LocalSocket, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {
		if kind == ssp.Receive {
			fmt.Printf("peer: %s\n", data)
		}
	}, nil); err != ssp.Success {
		logger.Fatal().Msgf("register listener: %v", err)
	}

	ticker := time.NewTicker(engineCfg.RecvTimeout)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			engine.Tick()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if err := engine.Send(cfg.LocalSocket, cfg.PeerSocket, []byte(line)); err != ssp.Success {
			logger.Error().Msgf("send: %v", err)
		}
	}
}

func loadConfig() (*clientConfig, error) {
	filePath := "config.json"
	if !fileExists(filePath) {
		exePath, err := os.Executable()
		if err != nil {
			return nil, err
		}
		filePath = path.Join(path.Dir(exePath), filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := clientConfig{}
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}
