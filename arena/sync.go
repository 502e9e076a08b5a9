package arena

import (
	"sync/atomic"
	"time"
)

// procMutex is a process-shared, recoverable lock. state is the futex
// word: 0 unlocked, 1 locked/no waiters, 2 locked/waiters present.
// ownerPID is the pid of the current holder, used for the OwnerDead
// liveness check; it is zero when unlocked, and briefly zero while a
// holder is between its acquiring CAS and recording its pid or is
// releasing, so lockMutex never treats a zero owner as dead.
type procMutex struct {
	state    uint32
	ownerPID int32
}

// procCond is a process-shared condition variable: generation is bumped
// on every Signal/Broadcast, and waiters block on FUTEX_WAIT against its
// current value.
type procCond struct {
	generation uint32
	_          uint32 // padding
}

// waitResult is the outcome of a timed wait on mutex or condvar.
type waitResult int

const (
	waitSignalled waitResult = iota
	waitTimedOut
	waitOwnerDead
	waitInterrupted
)

func initMutex(m *procMutex) {
	atomic.StoreUint32(&m.state, 0)
	atomic.StoreInt32(&m.ownerPID, 0)
}

func initCond(c *procCond) {
	atomic.StoreUint32(&c.generation, 0)
}

func casFlag(flags *uint32, want, set uint32) bool {
	return atomic.CompareAndSwapUint32(flags, want, want|set)
}

// noDeadline is used by callers that want an unbounded wait; it is
// represented as the zero Time, distinguished from a real deadline by
// IsZero() at call sites.
var noDeadline time.Time
