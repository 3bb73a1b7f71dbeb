package ssp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// decodeFull feeds every byte of buf through a fresh parser and returns
// the terminal outcome plus the resulting packet, used by tests as the
// inverse of Encode.
func decodeFull(t *testing.T, maxBody int, buf []byte) (SspErr, *Packet) {
	t.Helper()
	p := newParser(maxBody)
	var outcome SspErr
	for _, b := range buf {
		outcome = p.feed(b)
		if outcome != PartialPacket {
			return outcome, p.snapshot()
		}
	}
	return outcome, nil
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Packet{
		{Header: Header{DestId: 1, SrcId: 2, Type: MsgData, TransId: 7}, Body: []byte("hello")},
		{Header: Header{DestId: 0, SrcId: 0, Type: MsgAck, TransId: 0}, Body: nil},
		{Header: Header{DestId: 255, SrcId: 254, Type: MsgNak, TransId: 200}, Body: []byte{0, 1, 2, 3}},
	}

	for _, c := range cases {
		wire := Encode(c)
		outcome, got := decodeFull(t, 244, wire)
		require.Equal(t, Success, outcome)
		require.Equal(t, c.Header.DestId, got.Header.DestId)
		require.Equal(t, c.Header.SrcId, got.Header.SrcId)
		require.Equal(t, c.Header.Type, got.Header.Type)
		require.Equal(t, c.Header.TransId, got.Header.TransId)
		require.Equal(t, byte(len(c.Body)), got.Header.BodySize)
		require.Equal(t, c.Body, got.Body)
	}
}

func TestHeaderChecksumCoversFirstSevenBytes(t *testing.T) {
	h := Header{DestId: 9, SrcId: 10, Type: MsgData, BodySize: 3, TransId: 5}
	wire := Encode(Packet{Header: h, Body: []byte{1, 2, 3}})
	var sum byte
	for _, b := range wire[:7] {
		sum += b
	}
	require.Equal(t, sum, wire[7])
}
