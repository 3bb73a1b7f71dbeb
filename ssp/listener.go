package ssp

// DataType tells a listener whether it is being notified about an
// inbound message it should consume, or the outcome of one of its own
// outbound sends.
type DataType int

const (
	Receive DataType = iota
	Send
)

// ListenerFunc is invoked synchronously from inside Tick(). Per spec.md
// §4.2, implementations must not call Tick reentrantly and may call
// Send/SendMultiple (streaming patterns). data is a copy of the received
// body made for this call, so it stays valid after the listener returns.
type ListenerFunc func(socketId byte, data []byte, kind DataType, err SspErr, user interface{})

type listenerEntry struct {
	cb   ListenerFunc
	user interface{}
}
