package arena

import (
	"bytes"
	"unsafe"
)

// magic identifies a qadataswap arena. Bit-exact, shared across language
// implementations.
var magic = [8]byte{'Q', 'A', 'D', 'S', 'W', 'A', 'P', '1'}

// layoutVersion is the current arena header layout version.
const layoutVersion uint32 = 1

// pageSize is the rounding granularity for the header region and the
// overall mapping size. 4 KiB matches every platform qadataswap targets.
const pageSize = 4096

// Arena-level flag bits (header.Flags).
const (
	flagInitialized    uint32 = 1 << 0
	flagWriterAttached uint32 = 1 << 1
	flagClosed         uint32 = 1 << 2

	// flagUnlinkRequested is set (and never cleared) the first time any
	// participant closes with its configured UnlinkOnClose true. It is
	// sticky across closes so that, per I7, the OS object is removed
	// when the *final* participant closes rather than whichever
	// participant happens to ask for unlink first: see RefCount and
	// refCountAfterDetach.
	flagUnlinkRequested uint32 = 1 << 3
)

// arenaHeaderFields is the logical contents of the fixed-offset arena
// header, in stable field order. Its size is computed at
// compile time (via unsafe.Sizeof, a Go constant expression) so that
// arenaHeader below can reserve the rest of the first page as padding
// without a circular size dependency.
type arenaHeaderFields struct {
	Magic        [8]byte
	Version      uint32
	Flags        uint32
	SlotCount    uint32
	SlotCapacity uint64
	HeaderSize   uint32
	WriteSeq     uint64
	ReadSeq      uint64
	WriteIndex   uint32
	ReadIndex    uint32

	// RefCount is the number of endpoints (writer plus readers)
	// currently attached. Close decrements it; the OS object is unlinked
	// only once it reaches zero and flagUnlinkRequested is set, per I7.
	RefCount uint32

	// WriterPID and WriterEpoch identify the current writer. WriterPID is
	// what crash recovery and the reader's writer-gone check consult.
	// WriterEpoch is a random value minted at each writer Open and stored
	// here, but nothing reads it: a new, unrelated process that inherits
	// a dead writer's pid is taken to be that writer, still alive.
	WriterPID   int32
	_           uint32 // padding to keep WriterEpoch 8-byte aligned
	WriterEpoch uint64

	Mutex    procMutex
	NotEmpty procCond
	NotFull  procCond
}

const arenaHeaderFieldsSize = unsafe.Sizeof(arenaHeaderFields{})

// headerSize is the absolute byte offset of slot 0 — the header.HeaderSize
// field's value. One full page, leaving generous room for future fields
// without relayouting existing ones.
const headerSize = pageSize

// arenaHeader is the full fixed-offset header: fields plus zero-filled
// padding out to headerSize.
type arenaHeader struct {
	arenaHeaderFields
	_ [headerSize - arenaHeaderFieldsSize]byte
}

func init() {
	if arenaHeaderFieldsSize > headerSize {
		panic("arena: header fields exceed reserved header page")
	}
}

// headerAt reinterprets the first headerSize bytes of region as the arena
// header. Callers must hold region for the lifetime of the returned
// pointer's use.
func headerAt(region []byte) *arenaHeader {
	return (*arenaHeader)(unsafe.Pointer(&region[0]))
}

// initHeader sets every header field (geometry from its arguments,
// cursors and counters to zero, fresh mutex and condvars) exactly once,
// guarded
// by a compare-and-set on flagInitialized. It returns false if another
// participant won the race and already initialized the arena; the
// caller should then treat the arena as already-created.
func initHeader(region []byte, slotCount uint32, slotCapacity uint64) bool {
	h := headerAt(region)

	if !casFlag(&h.Flags, 0, flagInitialized) {
		return false
	}

	h.Magic = magic
	h.Version = layoutVersion
	h.SlotCount = slotCount
	h.SlotCapacity = slotCapacity
	h.HeaderSize = headerSize
	h.WriteSeq = 0
	h.ReadSeq = 0
	h.WriteIndex = 0
	h.ReadIndex = 0
	h.RefCount = 0
	h.WriterPID = 0
	h.WriterEpoch = 0

	initMutex(&h.Mutex)
	initCond(&h.NotEmpty)
	initCond(&h.NotFull)

	return true
}

// attachHeader verifies magic/version/geometry sanity and returns a view
// onto the header. It does not mutate the header.
func attachHeader(region []byte, wantSlotCount uint32, wantSlotCapacity uint64) (*arenaHeader, error) {
	if len(region) < headerSize {
		return nil, ErrCorruptHeader
	}

	h := headerAt(region)

	if !bytes.Equal(h.Magic[:], magic[:]) {
		return nil, ErrVersionMismatch
	}
	if h.Version != layoutVersion {
		return nil, ErrVersionMismatch
	}
	if h.HeaderSize != headerSize {
		return nil, ErrCorruptHeader
	}
	if h.SlotCount == 0 || h.SlotCount > maxSlotCount {
		return nil, ErrCorruptHeader
	}
	if h.SlotCapacity < minSlotCapacity {
		return nil, ErrCorruptHeader
	}
	if wantSlotCount != 0 && wantSlotCount != h.SlotCount {
		return nil, ErrCorruptHeader
	}
	if wantSlotCapacity != 0 && wantSlotCapacity != h.SlotCapacity {
		return nil, ErrCorruptHeader
	}

	return h, nil
}

const (
	maxSlotCount    = 1024
	minSlotCapacity = 4096
)

// refCountAfterDetach records one endpoint detaching: it decrements
// RefCount and, if requestUnlink is set, stickily marks the arena as
// wanting removal via flagUnlinkRequested. It reports whether this
// close is the one that should actually unlink the OS object, i.e. the
// final participant to detach from an arena some participant asked to
// have removed. Callers must already hold h.Mutex.
func refCountAfterDetach(h *arenaHeader, requestUnlink bool) bool {
	if h.RefCount > 0 {
		h.RefCount--
	}
	if requestUnlink {
		h.Flags |= flagUnlinkRequested
	}
	return h.RefCount == 0 && h.Flags&flagUnlinkRequested != 0
}

// totalSize computes the page-aligned total mapping size for slotCount
// slots of slotCapacity bytes each.
func totalSize(slotCount uint32, slotCapacity uint64) int64 {
	s := int64(headerSize) + int64(slotCount)*int64(slotCapacity)
	return roundUpPage(s)
}

func roundUpPage(n int64) int64 {
	if n%pageSize == 0 {
		return n
	}
	return n + (pageSize - n%pageSize)
}
