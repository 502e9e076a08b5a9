//go:build !linux

package arena

import (
	"os"
	"sync/atomic"
	"syscall"
	"time"
)

// pollInterval bounds the busy-wait backoff used on platforms without a
// process-shared futex syscall available from pure Go. This portability
// shim trades a small amount of wasted CPU for working on non-Linux
// hosts at all; see DESIGN.md for why it is accepted as a known
// deviation from the zero-busy-wait behavior sync_linux.go provides.
const pollInterval = 2 * time.Millisecond

func processAlive(pid int32) bool {
	if pid == 0 {
		return false
	}
	err := syscall.Kill(int(pid), 0)
	if err == nil {
		return true
	}
	if err == syscall.ESRCH {
		return false
	}
	return true
}

func lockMutex(m *procMutex, deadline time.Time) waitResult {
	self := int32(os.Getpid())
	for {
		if atomic.CompareAndSwapUint32(&m.state, 0, 1) {
			atomic.StoreInt32(&m.ownerPID, self)
			return waitSignalled
		}

		state := atomic.LoadUint32(&m.state)
		owner := atomic.LoadInt32(&m.ownerPID)
		if state != 0 && owner != 0 && !processAlive(owner) {
			if atomic.CompareAndSwapUint32(&m.state, state, 1) {
				atomic.StoreInt32(&m.ownerPID, self)
				return waitOwnerDead
			}
			continue
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return waitTimedOut
		}
		time.Sleep(pollInterval)
	}
}

func unlockMutex(m *procMutex) {
	atomic.StoreInt32(&m.ownerPID, 0)
	atomic.StoreUint32(&m.state, 0)
}

func waitCond(c *procCond, m *procMutex, deadline time.Time) waitResult {
	gen := atomic.LoadUint32(&c.generation)
	unlockMutex(m)

	for atomic.LoadUint32(&c.generation) == gen {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			lockMutex(m, noDeadline)
			return waitTimedOut
		}
		time.Sleep(pollInterval)
	}

	relock := lockMutex(m, noDeadline)
	if relock == waitOwnerDead {
		return waitOwnerDead
	}
	return waitSignalled
}

func signalCond(c *procCond) {
	atomic.AddUint32(&c.generation, 1)
}

func broadcastCond(c *procCond) {
	atomic.AddUint32(&c.generation, 1)
}
