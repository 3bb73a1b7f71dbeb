package ssp

import "sync"

// SspErr is the error taxonomy shared by the framer and the protocol
// engine. It is returned directly by calls that fail synchronously, and
// surfaced to a registered ErrorHandler plus LastError() for everything
// else (receive-path faults, retry exhaustion notified via a listener).
type SspErr int

const (
	Success SspErr = iota
	BadSignature
	PartialPacket
	PartialHeaderValid
	PortOpenFailed
	SocketNotOpen
	PortNotOpen
	BadSocketId
	SocketAlreadyOpen
	PacketTooLarge
	DataSizeTooLarge
	ParseError
	CorruptedPacket
	BadHeaderChecksum
	SendRetriesFailed
	QueueFull
	OutOfMemory
	BadArgument
	SendFailure
	NotInitialized
	DuplicateListener
	SoftwareFault
)

func (e SspErr) Error() string {
	if s, ok := errNames[e]; ok {
		return s
	}
	return "ssp: unknown error"
}

var errNames = map[SspErr]string{
	Success:             "success",
	BadSignature:        "bad signature",
	PartialPacket:       "partial packet",
	PartialHeaderValid:  "partial packet, header valid",
	PortOpenFailed:      "port open failed",
	SocketNotOpen:       "socket not open",
	PortNotOpen:         "port not open",
	BadSocketId:         "bad socket id",
	SocketAlreadyOpen:   "socket already open",
	PacketTooLarge:      "packet too large",
	DataSizeTooLarge:    "data size too large",
	ParseError:          "parse error",
	CorruptedPacket:     "corrupted packet",
	BadHeaderChecksum:   "bad header checksum",
	SendRetriesFailed:   "send retries failed",
	QueueFull:           "queue full",
	OutOfMemory:         "out of memory",
	BadArgument:         "bad argument",
	SendFailure:         "send failure",
	NotInitialized:      "not initialized",
	DuplicateListener:   "duplicate listener",
	SoftwareFault:       "software fault",
}

// ErrorHandler is invoked, in addition to the error being returned, for
// every error surfaced to a caller. Mirrors original_source's
// SSPCMN_ReportErr / SSPCMN_SetErrorHandler pair.
type ErrorHandler func(SspErr)

type errorState struct {
	mu      sync.Mutex
	handler ErrorHandler
	last    SspErr
}

// report records err as the last error and fires the handler, if any, then
// returns err unchanged so call sites can `return e.report(BadSocketId)`.
func (s *errorState) report(err SspErr) SspErr {
	s.mu.Lock()
	s.last = err
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(err)
	}
	return err
}

func (s *errorState) setHandler(h ErrorHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *errorState) lastError() SspErr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
