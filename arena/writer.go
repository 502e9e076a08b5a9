package arena

import (
	"bytes"
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/google/uuid"
)

type writerState int32

const (
	writerUnopened writerState = iota
	writerOpen
	writerClosed
)

// Writer is the sole producer of an arena. Its state machine is
// Unopened -> Open -> Closed; a second OpenWriter against the same arena
// fails with ErrAlreadyWriter while a live writer is attached.
type Writer struct {
	mu      sync.Mutex
	state   writerState
	cfg     Config
	region  *region
	header  *arenaHeader
	staging bytes.Buffer
	unlink  bool
}

// OpenWriter creates the named arena if absent (when cfg.CreateIfMissing,
// the default) and attaches as its writer, or opens an existing arena
// and attaches if no live writer holds it.
func OpenWriter(cfg Config) (*Writer, error) {
	cfg, err := cfg.normalized(true, true)
	if err != nil {
		return nil, err
	}

	r, h, err := openOrCreateArena(cfg)
	if err != nil {
		return nil, err
	}

	self := int32(os.Getpid())
	epoch := binary.LittleEndian.Uint64(uuidBytes())

	lockRes := lockMutex(&h.Mutex, noDeadline)
	if lockRes == waitOwnerDead {
		recoverSlots(h, r.data)
	}

	// A writer that crashed without calling Close left flagWriterAttached
	// set and its share of RefCount uncollected; this open replaces that
	// writer rather than adding a new participant, so RefCount is only
	// bumped when no writer was already on the books.
	writerAlreadyCounted := h.Flags&flagWriterAttached != 0

	if writerAlreadyCounted && processAlive(h.WriterPID) {
		unlockMutex(&h.Mutex)
		closeRegion(r, false)
		return nil, ErrAlreadyWriter
	}

	h.Flags |= flagWriterAttached
	h.Flags &^= flagClosed
	h.WriterPID = self
	h.WriterEpoch = epoch
	if !writerAlreadyCounted {
		h.RefCount++
	}
	unlockMutex(&h.Mutex)

	return &Writer{
		state:  writerOpen,
		cfg:    cfg,
		region: r,
		header: h,
		unlink: boolOr(cfg.UnlinkOnClose, true),
	}, nil
}

// uuidBytes mints a fresh random UUID and returns its first 8 bytes,
// used as the writer-epoch token recorded in the header at each open.
// The token is not read back by any liveness check: a writer is judged
// alive or dead by WriterPID alone.
func uuidBytes() []byte {
	id := uuid.New()
	return id[:8]
}

// openOrCreateArena implements the create-or-attach branch of OpenWriter,
// tolerating the race where two writers call OpenWriter concurrently:
// whichever process wins initHeader's compare-and-set on flags.initialized
// initializes the arena, the loser just attaches to what's there.
func openOrCreateArena(cfg Config) (*region, *arenaHeader, error) {
	slotCapacity := deriveSlotCapacity(cfg.SizeBytes, cfg.SlotCount)
	if slotCapacity < minSlotCapacity {
		return nil, nil, ErrInvalidConfig
	}
	total := totalSize(uint32(cfg.SlotCount), slotCapacity)

	if !boolOr(cfg.CreateIfMissing, true) {
		r, err := openRegion(cfg.Name)
		if err != nil {
			return nil, nil, err
		}
		h, err := attachHeader(r.data, uint32(cfg.SlotCount), slotCapacity)
		if err != nil {
			closeRegion(r, false)
			return nil, nil, err
		}
		return r, h, nil
	}

	r, err := createRegion(cfg.Name, total, false)
	if err != nil {
		return nil, nil, err
	}

	if initHeader(r.data, uint32(cfg.SlotCount), slotCapacity) {
		return r, headerAt(r.data), nil
	}

	h, err := attachHeader(r.data, uint32(cfg.SlotCount), slotCapacity)
	if err != nil {
		closeRegion(r, false)
		return nil, nil, err
	}
	return r, h, nil
}

// Write encodes rec and publishes it into the next free slot, blocking
// while the ring is full. A zero deadline falls back to cfg.Timeout, and
// a zero cfg.Timeout means wait forever.
//
// Like io.Reader's (n, io.EOF) convention, Write may return successfully
// alongside a non-nil error, ErrOwnerDead: the frame was
// published, but a prior writer or reader was found dead and the arena's
// lock was recovered along the way. Callers that only care about hard
// failures should check errors.Is(err, ErrOwnerDead) before treating a
// non-nil error as fatal.
func (w *Writer) Write(rec arrow.Record, deadline time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != writerOpen {
		return ErrClosed
	}

	maxLen := maxPayloadLen(w.header.SlotCapacity)
	n, err := encodeFrame(rec, maxLen, &w.staging)
	if err != nil {
		return err
	}

	if deadline.IsZero() && w.cfg.Timeout > 0 {
		deadline = time.Now().Add(w.cfg.Timeout)
	}

	lockRes := lockMutex(&w.header.Mutex, noDeadline)
	ownerDead := lockRes == waitOwnerDead
	if ownerDead {
		recoverSlots(w.header, w.region.data)
	}

	var idx int
	for {
		var ok bool
		idx, ok = claimWrite(w.header, w.region.data)
		if ok {
			break
		}

		wr := waitCond(&w.header.NotFull, &w.header.Mutex, deadline)
		switch wr {
		case waitOwnerDead:
			recoverSlots(w.header, w.region.data)
			ownerDead = true
		case waitTimedOut:
			unlockMutex(&w.header.Mutex)
			return ErrTimeout
		}
	}

	beginWrite(w.header, w.region.data, idx)

	payload := slotPayload(w.region.data, idx, w.header.SlotCapacity)
	copy(payload, w.staging.Bytes()[:n])

	var checksum uint32
	if w.cfg.VerifyChecksum {
		checksum = crc32c(w.staging.Bytes()[:n])
	}

	publish(w.header, w.region.data, idx, n, checksum)
	signalCond(&w.header.NotEmpty)
	unlockMutex(&w.header.Mutex)

	if ownerDead {
		return ErrOwnerDead
	}
	return nil
}

// Close detaches the writer, broadcasting not_empty so any blocked
// readers wake and observe closure. Per I7, the OS object is only
// actually removed once the last attached participant (writer or
// reader) closes, and only if some participant closed with its
// UnlinkOnClose set; see refCountAfterDetach.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != writerOpen {
		return nil
	}
	w.state = writerClosed

	lockMutex(&w.header.Mutex, noDeadline)
	w.header.Flags &^= flagWriterAttached
	w.header.Flags |= flagClosed
	w.header.WriterPID = 0
	unlinkNow := refCountAfterDetach(w.header, w.unlink)
	broadcastCond(&w.header.NotEmpty)
	unlockMutex(&w.header.Mutex)

	return closeRegion(w.region, unlinkNow)
}
