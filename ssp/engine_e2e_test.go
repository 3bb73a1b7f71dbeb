package ssp_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexlink-io/ssp/ssp"
	"github.com/nexlink-io/ssp/hostservices"
	"github.com/nexlink-io/ssp/transport/loopback"
)

func newTestEngines(t *testing.T, opts ...ssp.Option) (*ssp.Engine, *ssp.Engine, *loopback.Pair) {
	t.Helper()
	pair := loopback.NewPair()

	cfg := ssp.NewConfig(append([]ssp.Option{
		ssp.WithAckTimeout(20 * time.Millisecond),
		ssp.WithRecvTimeout(2 * time.Millisecond),
		ssp.WithMaxRetries(4),
	}, opts...)...)

	e1 := ssp.NewEngine(cfg, hostservices.NewCooperative())
	e2 := ssp.NewEngine(cfg, hostservices.NewCooperative())

	require.Equal(t, ssp.Success, e1.OpenPort(1, pair.A))
	require.Equal(t, ssp.Success, e2.OpenPort(1, pair.B))

	return e1, e2, pair
}

func tickBoth(e1, e2 *ssp.Engine, n int) {
	for i := 0; i < n; i++ {
		e1.Tick()
		e2.Tick()
		time.Sleep(time.Millisecond)
	}
}

// Scenario 1 from spec.md §8: loopback happy path.
func TestEngineLoopbackHappyPath(t *testing.T) {
	e1, e2, _ := newTestEngines(t)

	var received []byte
	var sendResult ssp.SspErr
	var sendNotified bool

	require.Equal(t, ssp.Success, e1.OpenSocket(1, 0))
	require.Equal(t, ssp.Success, e2.OpenSocket(1, 1))

	require.Equal(t, ssp.Success, e1.RegisterListener(0, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {
		if kind == ssp.Send {
			sendResult = err
			sendNotified = true
		}
	}, nil))
	require.Equal(t, ssp.Success, e2.RegisterListener(1, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {
		if kind == ssp.Receive {
			received = append([]byte(nil), data...)
		}
	}, nil))

	require.Equal(t, ssp.Success, e1.Send(0, 1, []byte("X")))

	tickBoth(e1, e2, 50)

	require.Equal(t, []byte("X"), received)
	require.True(t, sendNotified)
	require.Equal(t, ssp.Success, sendResult)
	require.Equal(t, 0, e1.SendQueueLen(1))
}

// Scenario 2: retry exhaustion when nothing ever ACKs the message (here,
// the destination socket is never given a listener, so every delivery
// attempt is NAKed until retries run out).
func TestEngineRetryExhaustion(t *testing.T) {
	e1, e2, _ := newTestEngines(t)

	require.Equal(t, ssp.Success, e1.OpenSocket(1, 0))
	require.Equal(t, ssp.Success, e2.OpenSocket(1, 1)) // bound, but no listener

	var finalErr ssp.SspErr
	var notified bool
	require.Equal(t, ssp.Success, e1.RegisterListener(0, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {
		if kind == ssp.Send {
			finalErr = err
			notified = true
		}
	}, nil))

	require.Equal(t, ssp.Success, e1.Send(0, 1, []byte("Y")))

	tickBoth(e1, e2, 200)

	require.True(t, notified)
	require.Equal(t, ssp.SendRetriesFailed, finalErr)
	require.Equal(t, 0, e1.SendQueueLen(1))
}

// Scenario 3: a corrupted frame is NAKed and dropped without reaching the
// listener, and a subsequent genuine send on the same link still gets
// through cleanly (corruption on one frame doesn't wedge the link).
func TestEngineCorruptionThenRecovery(t *testing.T) {
	e1, e2, pair := newTestEngines(t)

	require.Equal(t, ssp.Success, e1.OpenSocket(1, 0))
	require.Equal(t, ssp.Success, e2.OpenSocket(1, 1))

	var received [][]byte
	require.Equal(t, ssp.Success, e2.RegisterListener(1, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {
		if kind == ssp.Receive {
			received = append(received, append([]byte(nil), data...))
		}
	}, nil))
	require.Equal(t, ssp.Success, e1.RegisterListener(0, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {}, nil))

	corrupt := ssp.Encode(ssp.Packet{
		Header: ssp.Header{DestId: 1, SrcId: 0, Type: ssp.MsgData, TransId: 9},
		Body:   []byte("bad"),
	})
	corrupt[8] ^= 0xFF // flip a body byte, header checksum still valid, CRC now wrong

	require.NoError(t, pair.A.Send(corrupt))
	tickBoth(e1, e2, 10)
	require.Empty(t, received)

	require.Equal(t, ssp.Success, e1.Send(0, 1, []byte("good")))
	tickBoth(e1, e2, 50)

	require.Len(t, received, 1)
	require.Equal(t, []byte("good"), received[0])
}

// Scenario 4: duplicate suppression. The exact same wire frame (same
// transId, same body, same CRC) is pushed onto the link twice, bypassing
// e1's own send queue so the test controls the retransmit directly rather
// than hoping a timed-out ACK reproduces it. Only one listener dispatch
// must result; the second delivery still gets ACKed (ACK precedes the
// dedupe check in Engine.handleData) but is dropped before reaching the
// listener.
func TestEngineDuplicateSuppression(t *testing.T) {
	e1, e2, pair := newTestEngines(t)

	require.Equal(t, ssp.Success, e1.OpenSocket(1, 0))
	require.Equal(t, ssp.Success, e2.OpenSocket(1, 1))

	dispatches := 0
	require.Equal(t, ssp.Success, e2.RegisterListener(1, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {
		if kind == ssp.Receive {
			dispatches++
		}
	}, nil))
	require.Equal(t, ssp.Success, e1.RegisterListener(0, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {}, nil))

	wire := ssp.Encode(ssp.Packet{
		Header: ssp.Header{DestId: 1, SrcId: 0, Type: ssp.MsgData, TransId: 5},
		Body:   []byte("dup"),
	})

	require.NoError(t, pair.A.Send(wire))
	tickBoth(e1, e2, 20)
	require.NoError(t, pair.A.Send(wire))
	tickBoth(e1, e2, 20)

	require.Equal(t, 1, dispatches)
}

// Scenario 5: queue full. With MaxMessages=5, a sixth enqueue fails; the
// first five still deliver.
func TestEngineQueueFull(t *testing.T) {
	e1, e2, _ := newTestEngines(t, ssp.WithMaxMessages(5))

	require.Equal(t, ssp.Success, e1.OpenSocket(1, 0))
	require.Equal(t, ssp.Success, e2.OpenSocket(1, 1))

	var delivered [][]byte
	require.Equal(t, ssp.Success, e2.RegisterListener(1, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {
		if kind == ssp.Receive {
			delivered = append(delivered, append([]byte(nil), data...))
		}
	}, nil))
	require.Equal(t, ssp.Success, e1.RegisterListener(0, func(socketId byte, data []byte, kind ssp.DataType, err ssp.SspErr, user interface{}) {}, nil))

	for i := 0; i < 5; i++ {
		require.Equal(t, ssp.Success, e1.Send(0, 1, []byte{byte('A' + i)}))
	}
	require.Equal(t, ssp.QueueFull, e1.Send(0, 1, []byte("F")))

	tickBoth(e1, e2, 100)

	require.Len(t, delivered, 5)
	for i, d := range delivered {
		require.Equal(t, []byte{byte('A' + i)}, d)
	}
}
