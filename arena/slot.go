package arena

import (
	"sync/atomic"
	"unsafe"
)

// slotState is one of FREE, WRITING, READY, READING.
type slotState uint32

const (
	slotFree slotState = iota
	slotWriting
	slotReady
	slotReading
)

// slotHeader is the fixed 32-byte prefix of every slot. The two 8-byte
// fields are declared first so Go's natural alignment packs the struct
// with no gaps — the same offset-driven arrangement used for
// ShmBboMessage's cache-line layout, documented the same way with
// explicit byte offsets rather than relying on declaration order alone.
type slotHeader struct {
	PayloadLen uint64 // 0..8
	Sequence   uint64 // 8..16
	State      uint32 // 16..20
	Checksum   uint32 // 20..24
	_Reserved  uint32 // 24..28
	_Pad       uint32 // 28..32, keeps payload 8-byte aligned
}

const slotHeaderSize = unsafe.Sizeof(slotHeader{})

func init() {
	if slotHeaderSize != 32 {
		panic("arena: slotHeader layout drifted from its 32-byte budget")
	}
}

// slotOffset returns the absolute byte offset of slot i within region.
func slotOffset(i int, slotCapacity uint64) int64 {
	return int64(headerSize) + int64(i)*int64(slotCapacity)
}

func slotAt(region []byte, i int, slotCapacity uint64) *slotHeader {
	off := slotOffset(i, slotCapacity)
	return (*slotHeader)(unsafe.Pointer(&region[off]))
}

// slotPayload returns the writable payload area of slot i, sized to its
// full capacity (callers slice it down to PayloadLen themselves).
func slotPayload(region []byte, i int, slotCapacity uint64) []byte {
	off := slotOffset(i, slotCapacity) + int64(slotHeaderSize)
	return region[off : off+int64(slotCapacity)-int64(slotHeaderSize)]
}

// maxPayloadLen is the largest frame a slot of the given capacity can
// hold.
func maxPayloadLen(slotCapacity uint64) uint64 {
	return slotCapacity - uint64(slotHeaderSize)
}

// The following ring operations all require the caller to already hold
// the arena's mutex.

// claimWrite returns write_index if its slot is FREE, without advancing
// any index (advance happens at publish).
func claimWrite(h *arenaHeader, region []byte) (int, bool) {
	idx := int(h.WriteIndex)
	s := slotAt(region, idx, h.SlotCapacity)
	if slotState(atomic.LoadUint32(&s.State)) != slotFree {
		return 0, false
	}
	return idx, true
}

// beginWrite transitions a claimed slot FREE -> WRITING so the writer can
// copy payload bytes into it while still holding the mutex.
func beginWrite(h *arenaHeader, region []byte, idx int) {
	s := slotAt(region, idx, h.SlotCapacity)
	atomic.StoreUint32(&s.State, uint32(slotWriting))
}

// publish transitions WRITING -> READY, stamps sequence/payload metadata,
// advances write_index, and bumps write_seq. Callers must signal
// not_empty afterward while still holding the mutex.
func publish(h *arenaHeader, region []byte, idx int, payloadLen uint64, checksum uint32) {
	s := slotAt(region, idx, h.SlotCapacity)
	h.WriteSeq++
	s.PayloadLen = payloadLen
	s.Checksum = checksum
	s.Sequence = h.WriteSeq
	atomic.StoreUint32(&s.State, uint32(slotReady))
	h.WriteIndex = uint32((idx + 1) % int(h.SlotCount))
}

// claimRead returns read_index and transitions READY -> READING if that
// slot is READY; otherwise reports no data.
func claimRead(h *arenaHeader, region []byte) (int, bool) {
	idx := int(h.ReadIndex)
	s := slotAt(region, idx, h.SlotCapacity)
	if slotState(atomic.LoadUint32(&s.State)) != slotReady {
		return 0, false
	}
	atomic.StoreUint32(&s.State, uint32(slotReading))
	return idx, true
}

// releaseRead transitions READING -> FREE, advances read_index, and
// bumps read_seq. Callers must signal not_full afterward while still
// holding the mutex.
func releaseRead(h *arenaHeader, region []byte, idx int) {
	s := slotAt(region, idx, h.SlotCapacity)
	atomic.StoreUint32(&s.State, uint32(slotFree))
	h.ReadIndex = uint32((idx + 1) % int(h.SlotCount))
	h.ReadSeq++
}

// recoverSlots implements crash-recovery repair: any WRITING slot is
// reset to FREE (the partial write discarded, write_seq left unchanged
// since publish never ran); any READING slot is reset to READY so
// another reader can retry it. Called after a lockMutex caller observes
// waitOwnerDead, while still holding the (now-consistent) mutex.
func recoverSlots(h *arenaHeader, region []byte) {
	for i := 0; i < int(h.SlotCount); i++ {
		s := slotAt(region, i, h.SlotCapacity)
		switch slotState(atomic.LoadUint32(&s.State)) {
		case slotWriting:
			atomic.StoreUint32(&s.State, uint32(slotFree))
		case slotReading:
			atomic.StoreUint32(&s.State, uint32(slotReady))
		}
	}
}
