package arena

import (
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
)

type readerState int32

const (
	readerUnattached readerState = iota
	readerAttached
	readerClosed
)

// Reader attaches to an existing arena and consumes published frames.
// With a single Reader the ring is SPSC; with several, each frame is
// still delivered to exactly one of them (work-stealing), since they
// share one read_index/read_seq pair in the header.
type Reader struct {
	mu     sync.Mutex
	state  readerState
	cfg    Config
	region *region
	header *arenaHeader
}

// OpenReader attaches to the named arena. If the arena does not exist
// yet and cfg.WaitForWriter is set, it polls at a bounded rate until the
// arena appears or the deadline elapses; otherwise it fails immediately
// with ErrNotFound.
func OpenReader(cfg Config) (*Reader, error) {
	cfg, err := cfg.normalized(false, false)
	if err != nil {
		return nil, err
	}

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}

	var r *region
	for {
		r, err = openRegion(cfg.Name)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrNotFound) || !cfg.WaitForWriter {
			return nil, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}
		time.Sleep(waitForWriterPollInterval)
	}

	// A reader attaches to whatever geometry the arena already declares;
	// it does not get to demand a particular slot_count/slot_capacity.
	h, err := attachHeader(r.data, 0, 0)
	if err != nil {
		closeRegion(r, false)
		return nil, err
	}

	if lockMutex(&h.Mutex, noDeadline) == waitOwnerDead {
		recoverSlots(h, r.data)
	}
	h.RefCount++
	unlockMutex(&h.Mutex)

	return &Reader{state: readerAttached, cfg: cfg, region: r, header: h}, nil
}

// Read waits for and consumes the next ready frame, decoding it as an
// Arrow record batch. It returns (nil, nil) once the writer has gone and
// the ring is empty, distinct from a timeout. See Writer.Write's doc
// comment for the (record, ErrOwnerDead) success-with-warning convention
// this method shares.
func (rd *Reader) Read(deadline time.Time) (arrow.Record, error) {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	if rd.state != readerAttached {
		return nil, ErrClosed
	}

	if deadline.IsZero() && rd.cfg.Timeout > 0 {
		deadline = time.Now().Add(rd.cfg.Timeout)
	}

	lockRes := lockMutex(&rd.header.Mutex, noDeadline)
	ownerDead := lockRes == waitOwnerDead
	if ownerDead {
		recoverSlots(rd.header, rd.region.data)
	}

	var idx int
	for {
		var ok bool
		idx, ok = claimRead(rd.header, rd.region.data)
		if ok {
			break
		}

		writerGone := rd.header.Flags&flagWriterAttached == 0 || !processAlive(rd.header.WriterPID)
		closed := rd.header.Flags&flagClosed != 0
		if closed || writerGone {
			unlockMutex(&rd.header.Mutex)
			return nil, nil
		}

		wr := waitCond(&rd.header.NotEmpty, &rd.header.Mutex, deadline)
		switch wr {
		case waitOwnerDead:
			recoverSlots(rd.header, rd.region.data)
			ownerDead = true
		case waitTimedOut:
			unlockMutex(&rd.header.Mutex)
			return nil, ErrTimeout
		}
	}

	s := slotAt(rd.region.data, idx, rd.header.SlotCapacity)
	payloadLen := s.PayloadLen
	checksum := s.Checksum

	// The sole in-process copy on the read path: payload bytes leave the
	// slot before the lock (and thus the slot's ownership) is released,
	// so decoding never happens while the mutex is held.
	payload := make([]byte, payloadLen)
	copy(payload, slotPayload(rd.region.data, idx, rd.header.SlotCapacity)[:payloadLen])

	releaseRead(rd.header, rd.region.data, idx)
	signalCond(&rd.header.NotFull)
	unlockMutex(&rd.header.Mutex)

	if rd.cfg.VerifyChecksum && checksum != 0 && crc32c(payload) != checksum {
		return nil, ErrCorrupt
	}

	rec, err := decodeFrame(payload)
	if err != nil {
		return nil, err
	}
	if ownerDead {
		return rec, ErrOwnerDead
	}
	return rec, nil
}

// Iterate returns a finite, non-restartable sequence of batches, ending
// when Read yields (nil, nil) or a hard error. A record paired with
// ErrOwnerDead is still yielded: see Read's doc comment.
func (rd *Reader) Iterate(deadline time.Time) iter.Seq2[arrow.Record, error] {
	return func(yield func(arrow.Record, error) bool) {
		for {
			rec, err := rd.Read(deadline)
			if rec == nil && err == nil {
				return
			}
			if !yield(rec, err) {
				return
			}
			if err != nil && !errors.Is(err, ErrOwnerDead) {
				return
			}
		}
	}
}

// Close detaches the reader. UnlinkOnClose (default false for readers)
// marks the arena as wanting removal, but per I7 the OS object is only
// actually removed once the last attached participant closes; see
// refCountAfterDetach.
func (rd *Reader) Close() error {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	if rd.state != readerAttached {
		return nil
	}
	rd.state = readerClosed

	lockMutex(&rd.header.Mutex, noDeadline)
	unlinkNow := refCountAfterDetach(rd.header, boolOr(rd.cfg.UnlinkOnClose, false))
	unlockMutex(&rd.header.Mutex)

	return closeRegion(rd.region, unlinkNow)
}
