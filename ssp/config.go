package ssp

import (
	"time"

	"github.com/rs/zerolog"
)

// Config carries the numeric knobs original_source/ssp/ssp_opt.h expresses
// as compile-time #defines. Defaults match that header exactly.
type Config struct {
	// AckTimeout is the max wait before retransmitting the head-of-queue
	// entry of a port's send queue. Default 200ms (SSP_ACK_TIMEOUT).
	AckTimeout time.Duration

	// MaxRetries is the total number of transmission attempts a message
	// gets before it is failed out to its listener. Default 4
	// (SSP_MAX_RETRIES). See SPEC_FULL.md §9.1 for the counting rule.
	MaxRetries uint32

	// RecvTimeout bounds a single Transport.Recv call inside PollReceive.
	// Default 10ms (SSP_RECV_TIMEOUT).
	RecvTimeout time.Duration

	// MaxMessages is the per-port send queue capacity. Default 5
	// (SSP_MAX_MESSAGES).
	MaxMessages int

	// MaxPacketSize is the total on-wire frame size budget, including the
	// 8-byte header and 2-byte CRC footer. Must be <= 256 since bodySize
	// is a single octet. Default 64 (SSP_MAX_PACKET_SIZE).
	MaxPacketSize int

	// SocketMax bounds socket id slots (0..SocketMax-1).
	SocketMax int

	// PortMax is the number of physical ports an application plans to
	// use. The Engine does not check it: any PortId other than
	// InvalidPort can be opened.
	PortMax int

	// Logger receives a Warn entry when a transport fails to send a
	// queued DATA packet; no other events are logged. A nil Logger
	// disables logging entirely, replacing original_source's
	// USE_SSP_TRACE build-time switch.
	Logger *zerolog.Logger
}

// MaxBody is the largest payload a packet built under this Config may
// carry. spec.md's header table states MAX_BODY = MAX_PACKET - 10 - 2;
// the extra 2 bytes of headroom below the hard wire ceiling (header 8 +
// crc 2 = 10 bytes of true overhead) is kept as explicit slack rather
// than resolved away, since it is also the figure cross-checked by the
// "must be <= 244" bound in spec.md's configuration table when
// MaxPacketSize is 256.
func (c Config) MaxBody() int {
	return c.MaxPacketSize - 12
}

// DefaultConfig matches original_source/ssp/ssp_opt.h's defaults.
func DefaultConfig() Config {
	return Config{
		AckTimeout:    200 * time.Millisecond,
		MaxRetries:    4,
		RecvTimeout:   10 * time.Millisecond,
		MaxMessages:   5,
		MaxPacketSize: 64,
		SocketMax:     16,
		PortMax:       2,
	}
}

// Option mutates a Config; the idiomatic Go analogue of overriding
// ssp_opt.h's #defines via -DSSP_CONFIG.
type Option func(*Config)

func WithAckTimeout(d time.Duration) Option { return func(c *Config) { c.AckTimeout = d } }
func WithMaxRetries(n uint32) Option { return func(c *Config) { c.MaxRetries = n } }
func WithRecvTimeout(d time.Duration) Option { return func(c *Config) { c.RecvTimeout = d } }
func WithMaxMessages(n int) Option { return func(c *Config) { c.MaxMessages = n } }
func WithMaxPacketSize(n int) Option { return func(c *Config) { c.MaxPacketSize = n } }
func WithSocketMax(n int) Option { return func(c *Config) { c.SocketMax = n } }
func WithPortMax(n int) Option { return func(c *Config) { c.PortMax = n } }
func WithLogger(l zerolog.Logger) Option { return func(c *Config) { c.Logger = &l } }

func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c Config) log() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.Nop()
}
