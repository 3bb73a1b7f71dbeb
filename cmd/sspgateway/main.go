// Command sspgateway runs one SSP endpoint over a real serial port,
// opening a fixed local socket and logging every message it receives and
// every send result reported to it; it sends nothing itself, and the
// "peer socket" config field is read but not used. Configuration is
// loaded from a JSON file the same way the teacher repo's example.go does: "config.json" in the
// working directory, falling back to the directory next to the
// executable.
package main

import (
	"encoding/json"
	"log"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexlink-io/ssp/ssp"
	"github.com/nexlink-io/ssp/hostservices"
	sspserial "github.com/nexlink-io/ssp/transport/serial"
)

type gatewayConfig struct {
	ComPortName string `json:"comport name"`
	ComBaudRate int    `json:"baud rate"`
	LocalSocket byte   `json:"local socket"`
	PeerSocket  byte   `json:"peer socket"`
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf(`%v (you must have a valid "config.json" next to the executable)`, err)
	}

	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("app", "sspgateway").Logger()

	engineCfg := ssp.NewConfig(ssp.WithLogger(logger))
	engine := ssp.NewEngine(engineCfg, hostservices.NewStd())

	port := sspserial.New(cfg.ComPortName, cfg.ComBaudRate, engineCfg.RecvTimeout)
	if err := engine.OpenPort(1, port); err != ssp.Success {
		logger.Fatal().Msgf("open port %q: %v", cfg.ComPortName, err)
	}
	if err := engine.OpenSocket(1, cfg.LocalSocket); err != ssp.Success {
		logger.Fatal().Msgf("open socket: %v", err)
	}

	if err := engine.RegisterListener(cfg.LocalSocket, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {
		switch kind {
		case ssp.Receive:
			logger.Info().Bytes("payload", data).Msg("received")
		case ssp.Send:
			logger.Info().Str("result", err.Error()).Msg("send completed")
		}
	}, nil); err != ssp.Success {
		logger.Fatal().Msgf("register listener: %v", err)
	}

	logger.Info().Str("port", cfg.ComPortName).Int("baud", cfg.ComBaudRate).Msg("sspgateway listening")

	ticker := time.NewTicker(engineCfg.RecvTimeout)
	defer ticker.Stop()
	for range ticker.C {
		engine.Tick()
	}
}

func loadConfig() (*gatewayConfig, error) {
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

	cfg := gatewayConfig{ComBaudRate: 115200}
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
