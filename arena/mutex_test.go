package arena

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockMutexFastPath(t *testing.T) {
	var m procMutex
	initMutex(&m)

	require.Equal(t, waitSignalled, lockMutex(&m, noDeadline))
	unlockMutex(&m)
}

func TestLockMutexStealsFromDeadOwner(t *testing.T) {
	var m procMutex
	initMutex(&m)

	// A pid this large cannot be a real process; processAlive reports it
	// dead via ESRCH, so the lock should be stolen rather than waited on.
	const impossiblePID = int32(1 << 30)
	m.state = 1
	m.ownerPID = impossiblePID

	res := lockMutex(&m, noDeadline)
	require.Equal(t, waitOwnerDead, res)
	require.NotEqual(t, impossiblePID, m.ownerPID)

	unlockMutex(&m)
}

// TestMutexManyContendedWaitersDontStrand reproduces the scenario
// cmd/qads-reader's -workers flag drives against a real arena: several
// goroutines hammering the same procMutex. Every lockMutex call here
// uses noDeadline, so a lost wakeup (a waiter re-acquiring into state 1
// instead of 2, causing its own unlock to skip FUTEX_WAKE) hangs this
// test rather than just slowing it down.
func TestMutexManyContendedWaitersDontStrand(t *testing.T) {
	var m procMutex
	initMutex(&m)

	const goroutines = 8
	const iterations = 500

	var counter atomic.Int64
	done := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < iterations; j++ {
				lockMutex(&m, noDeadline)
				counter.Add(1)
				unlockMutex(&m)
			}
			done <- struct{}{}
		}()
	}

	finished := 0
	timeout := time.After(10 * time.Second)
	for finished < goroutines {
		select {
		case <-done:
			finished++
		case <-timeout:
			t.Fatalf("only %d of %d goroutines finished: a waiter was stranded by a lost wakeup", finished, goroutines)
		}
	}

	require.EqualValues(t, goroutines*iterations, counter.Load())
}

func TestSignalAndBroadcastCondBumpGeneration(t *testing.T) {
	var c procCond
	initCond(&c)

	require.EqualValues(t, 0, c.generation)
	signalCond(&c)
	require.EqualValues(t, 1, c.generation)
	broadcastCond(&c)
	require.EqualValues(t, 2, c.generation)
}
