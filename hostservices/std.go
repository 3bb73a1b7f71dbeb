// Package hostservices provides ssp.HostServices back-ends: Std for
// ordinary multi-goroutine programs, Cooperative for single-goroutine or
// interrupt-driven callers that don't need real locking.
package hostservices

import (
	"sync"
	"time"

	"github.com/nexlink-io/ssp/ssp"
)

// Std is grounded on original_source's SSP_OSAL_STD back-end
// (port/osal/std_lib/ssp_osal_std.cpp): a real mutex for the critical
// section, real timed mutexes for per-Engine locks, and a monotonic
// clock for the tick counter.
type Std struct {
	mu    sync.Mutex
	start time.Time
}

// NewStd returns a Std host-services back-end. The millisecond tick
// counter is measured from the moment NewStd is called.
func NewStd() *Std {
	return &Std{start: time.Now()}
}

func (s *Std) EnterCritical() { s.mu.Lock() }
func (s *Std) ExitCritical()  { s.mu.Unlock() }

func (s *Std) NewLock() ssp.Lock {
	return &stdLock{ch: make(chan struct{}, 1)}
}

// TickMillis returns milliseconds elapsed since this Std was constructed,
// wrapping naturally in a uint32 the way original_source's
// SSPOSAL_GetTickCount wraps a 32-bit millisecond count.
func (s *Std) TickMillis() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

// stdLock is a one-slot channel used as a mutex with a bounded TryLock, the Go analogue of
// std::timed_mutex::try_lock_until used by ssp_osal_std.cpp.
type stdLock struct {
	ch chan struct{}
}

func (l *stdLock) TryLock(timeout time.Duration) bool {
	select {
	case l.ch <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (l *stdLock) Unlock() {
	select {
	case <-l.ch:
	default:
	}
}
