package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestArena(t *testing.T, slotCount int, slotCapacity uint64) (*arenaHeader, []byte) {
	t.Helper()

	total := totalSize(uint32(slotCount), slotCapacity)
	region := make([]byte, total)
	require.True(t, initHeader(region, uint32(slotCount), slotCapacity))

	return headerAt(region), region
}

func TestSlotHeaderIsThirtyTwoBytes(t *testing.T) {
	require.EqualValues(t, 32, slotHeaderSize)
}

func TestSlotRingClaimPublishRelease(t *testing.T) {
	h, region := newTestArena(t, 2, 4096)

	idx, ok := claimWrite(h, region)
	require.True(t, ok)
	require.Equal(t, 0, idx)

	beginWrite(h, region, idx)
	payload := slotPayload(region, idx, h.SlotCapacity)
	copy(payload, []byte("hello"))
	publish(h, region, idx, 5, 0)

	require.EqualValues(t, 1, h.WriteIndex)
	require.EqualValues(t, 1, h.WriteSeq)

	ridx, ok := claimRead(h, region)
	require.True(t, ok)
	require.Equal(t, 0, ridx)

	s := slotAt(region, ridx, h.SlotCapacity)
	require.EqualValues(t, 5, s.PayloadLen)
	require.Equal(t, "hello", string(slotPayload(region, ridx, h.SlotCapacity)[:5]))

	releaseRead(h, region, ridx)
	require.EqualValues(t, 1, h.ReadIndex)
	require.EqualValues(t, 1, h.ReadSeq)

	idx2, ok := claimWrite(h, region)
	require.True(t, ok)
	require.Equal(t, 1, idx2)
}

func TestClaimWriteFailsWhenSlotNotFree(t *testing.T) {
	h, region := newTestArena(t, 1, 4096)

	idx, ok := claimWrite(h, region)
	require.True(t, ok)
	beginWrite(h, region, idx)
	publish(h, region, idx, 0, 0)

	_, ok = claimWrite(h, region)
	require.False(t, ok, "sole slot is READY, not FREE")
}

func TestClaimReadFailsWhenSlotNotReady(t *testing.T) {
	h, region := newTestArena(t, 1, 4096)

	_, ok := claimRead(h, region)
	require.False(t, ok, "freshly initialized slot has no published data")
}

func TestRecoverSlotsResetsInFlightStates(t *testing.T) {
	h, region := newTestArena(t, 2, 4096)

	readyIdx, ok := claimWrite(h, region)
	require.True(t, ok)
	beginWrite(h, region, readyIdx)
	publish(h, region, readyIdx, 0, 0)

	// readingIdx is left in READING, as if a reader died mid-copy.
	readingIdx, ok := claimRead(h, region)
	require.True(t, ok)

	// writingIdx is left in WRITING, as if a writer died mid-copy.
	writingIdx, ok := claimWrite(h, region)
	require.True(t, ok)
	beginWrite(h, region, writingIdx)

	recoverSlots(h, region)

	require.Equal(t, slotFree, slotState(slotAt(region, writingIdx, h.SlotCapacity).State))
	require.Equal(t, slotReady, slotState(slotAt(region, readingIdx, h.SlotCapacity).State))
}
