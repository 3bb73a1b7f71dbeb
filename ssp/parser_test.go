package ssp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParserRejectsOversizedBody(t *testing.T) {
	pkt := Packet{Header: Header{DestId: 1, SrcId: 2, Type: MsgData}, Body: make([]byte, 10)}
	wire := Encode(pkt)
	outcome, _ := decodeFull(t, 4, wire) // maxBody smaller than the 10-byte body
	require.Equal(t, PacketTooLarge, outcome)
}

func TestParserAcceptsZeroLengthBody(t *testing.T) {
	pkt := Packet{Header: Header{DestId: 1, SrcId: 2, Type: MsgAck}}
	outcome, got := decodeFull(t, 244, Encode(pkt))
	require.Equal(t, Success, outcome)
	require.Empty(t, got.Body)
}

func TestParserAbsorbsStutteredSyncBytes(t *testing.T) {
	pkt := Packet{Header: Header{DestId: 3, SrcId: 4, Type: MsgData}, Body: []byte("Z")}
	wire := Encode(pkt)

	stuttered := append([]byte{sig1}, wire...) // "BE BE EF ..."
	outcome, got := decodeFull(t, 244, stuttered)
	require.Equal(t, Success, outcome)
	require.Equal(t, []byte("Z"), got.Body)
}

func TestParserRejectsGarbageThenResyncs(t *testing.T) {
	p := newParser(244)

	outcome := p.feed(0x00)
	require.Equal(t, BadSignature, outcome)

	pkt := Packet{Header: Header{DestId: 5, SrcId: 6, Type: MsgData}, Body: []byte("Q")}
	wire := Encode(pkt)
	var last SspErr
	for _, b := range wire {
		last = p.feed(b)
	}
	require.Equal(t, Success, last)
	got := p.snapshot()
	require.Equal(t, []byte("Q"), got.Body)
}

func TestParserResynchronizationAcrossTwoFrames(t *testing.T) {
	first := Encode(Packet{Header: Header{DestId: 1, SrcId: 2, Type: MsgData}, Body: []byte("A")})
	second := Encode(Packet{Header: Header{DestId: 1, SrcId: 2, Type: MsgData}, Body: []byte("B")})

	stream := append([]byte{0x00}, first...)
	stream = append(stream, sig1) // stray BE before the second frame
	stream = append(stream, second...)

	p := newParser(244)
	var results []*Packet
	for _, b := range stream {
		outcome := p.feed(b)
		if outcome == Success {
			results = append(results, p.snapshot())
			p.reset()
		}
	}

	require.Len(t, results, 2)
	require.Equal(t, []byte("A"), results[0].Body)
	require.Equal(t, []byte("B"), results[1].Body)
}

func TestParserDetectsCorruptedBody(t *testing.T) {
	wire := Encode(Packet{Header: Header{DestId: 1, SrcId: 2, Type: MsgData}, Body: []byte("hello")})
	wire[headerSize] ^= 0xFF // flip a body byte, header checksum still valid
	outcome, _ := decodeFull(t, 244, wire)
	require.Equal(t, CorruptedPacket, outcome)
}

func TestParserDetectsBadHeaderChecksum(t *testing.T) {
	wire := Encode(Packet{Header: Header{DestId: 1, SrcId: 2, Type: MsgData}, Body: []byte("x")})
	wire[7] ^= 0xFF // corrupt the checksum byte itself
	outcome, _ := decodeFull(t, 244, wire)
	require.Equal(t, BadHeaderChecksum, outcome)
}
