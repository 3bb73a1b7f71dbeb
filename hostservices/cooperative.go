package hostservices

import (
	"time"

	"github.com/nexlink-io/ssp/ssp"
)

// Cooperative is grounded on original_source's SSP_OSAL_NO_OS back-end
// (port/osal/no_os/ssp_osal_no_os.c): no real locking at all, appropriate
// when Engine.Tick and every application call into the engine run from a
// single goroutine (or a single interrupt context on bare metal). Its
// TryLock always succeeds immediately, matching SSPOSAL_LockGet's
// unconditional TRUE.
type Cooperative struct {
	start time.Time
}

func NewCooperative() *Cooperative {
	return &Cooperative{start: time.Now()}
}

func (c *Cooperative) EnterCritical() {}
func (c *Cooperative) ExitCritical()  {}

func (c *Cooperative) NewLock() ssp.Lock {
	return cooperativeLock{}
}

func (c *Cooperative) TickMillis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

type cooperativeLock struct{}

func (cooperativeLock) TryLock(time.Duration) bool { return true }
func (cooperativeLock) Unlock()                    {}
