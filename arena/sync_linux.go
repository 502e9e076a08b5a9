//go:build linux

package arena

import (
	"math"
	"os"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// futexWait blocks while *addr == expected, until woken, interrupted, or
// deadline elapses. A zero deadline means wait forever. This sidesteps a
// full process-shared pthread mutex/condvar in favor of the same
// low-level, syscall-direct style used for raw mmap'd shared memory
// elsewhere in this codebase.
func futexWait(addr *uint32, expected uint32, deadline time.Time) waitResult {
	var ts *unix.Timespec
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return waitTimedOut
		}
		rel := unix.NsecToTimespec(d.Nanoseconds())
		ts = &rel
	}

	_, _, errno := syscall.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAIT),
		uintptr(expected),
		uintptr(unsafe.Pointer(ts)),
		0, 0,
	)

	switch errno {
	case 0, syscall.EAGAIN:
		// EAGAIN: *addr had already changed before we waited. Either way
		// the caller should re-check its condition.
		return waitSignalled
	case syscall.ETIMEDOUT:
		return waitTimedOut
	case syscall.EINTR:
		return waitInterrupted
	default:
		return waitInterrupted
	}
}

func futexWake(addr *uint32, n int32) {
	syscall.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAKE),
		uintptr(n),
		0, 0, 0,
	)
}

// processAlive reports whether pid names a live process, using the
// standard no-signal-sent liveness probe (kill(pid, 0)).
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
	// EPERM or anything else: we can't prove the owner is dead, so don't
	// steal the lock out from under it.
	return true
}

// lockMutex acquires m, implementing the CAS/steal/OwnerDead protocol:
// repairing slot state (any WRITING slot back to FREE, any READING slot
// back to READY) is the caller's job once lockMutex returns
// waitOwnerDead, the mutex layer only repairs lock ownership, not arena
// state.
//
// state is 0 (unlocked), 1 (locked, no known waiters) or 2 (locked,
// possibly waiters). Only the very first, uncontended acquire below is
// allowed to leave state at 1: every acquire reached through the loop
// must leave it at 2, even when the CAS observes state 0, because
// another goroutine may already be registered in futexWait below
// waiting for this exact word to change away from 2. Acquiring into 1
// from the loop is the classic lost-wakeup bug (Drepper, "Futexes Are
// Tricky", mutex2): this unlockMutex would then see old==1 and skip
// FUTEX_WAKE, stranding that waiter forever since every wait here uses
// noDeadline.
func lockMutex(m *procMutex, deadline time.Time) waitResult {
	self := int32(os.Getpid())

	if atomic.CompareAndSwapUint32(&m.state, 0, 1) {
		atomic.StoreInt32(&m.ownerPID, self)
		return waitSignalled
	}

	for {
		state := atomic.LoadUint32(&m.state)
		owner := atomic.LoadInt32(&m.ownerPID)

		if state != 0 && owner != 0 && !processAlive(owner) {
			// CAS on the exact observed state so exactly one contender
			// wins the steal; the rest fall through, re-loop, and see
			// the winner as a live new owner.
			if atomic.CompareAndSwapUint32(&m.state, state, 2) {
				atomic.StoreInt32(&m.ownerPID, self)
				return waitOwnerDead
			}
			continue
		}

		switch state {
		case 0:
			if !atomic.CompareAndSwapUint32(&m.state, 0, 2) {
				continue
			}
			atomic.StoreInt32(&m.ownerPID, self)
			return waitSignalled
		case 1:
			if !atomic.CompareAndSwapUint32(&m.state, 1, 2) {
				continue
			}
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return waitTimedOut
		}

		res := futexWait(&m.state, 2, deadline)
		if res == waitTimedOut {
			return waitTimedOut
		}
		// waitSignalled or waitInterrupted: loop and re-check. Spurious
		// wakeups and lost wake-ups are both handled by re-reading state.
	}
}

// unlockMutex releases m, waking one waiter if any were registered.
func unlockMutex(m *procMutex) {
	atomic.StoreInt32(&m.ownerPID, 0)
	old := atomic.SwapUint32(&m.state, 0)
	if old == 2 {
		futexWake(&m.state, 1)
	}
}

// waitCond implements the classic generation-counter futex condvar:
// record the generation, release the mutex, wait for the generation to
// change, then reacquire the mutex before returning. A signal therefore
// happens-after all writes the signaller made to shared state before
// releasing the mutex.
func waitCond(c *procCond, m *procMutex, deadline time.Time) waitResult {
	gen := atomic.LoadUint32(&c.generation)
	unlockMutex(m)

	res := futexWait(&c.generation, gen, deadline)

	relock := lockMutex(m, noDeadline)
	if res == waitTimedOut {
		return waitTimedOut
	}
	if relock == waitOwnerDead {
		return waitOwnerDead
	}
	return waitSignalled
}

func signalCond(c *procCond) {
	atomic.AddUint32(&c.generation, 1)
	futexWake(&c.generation, 1)
}

func broadcastCond(c *procCond) {
	atomic.AddUint32(&c.generation, 1)
	futexWake(&c.generation, math.MaxInt32)
}
