package arena

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func testArenaName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("test_%d_%s", os.Getpid(), t.Name())
}

func testRecordSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "n", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
}

func testRecord(n int64) arrow.Record {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), testRecordSchema())
	defer b.Release()
	b.Field(0).(*array.Int64Builder).Append(n)
	return b.NewRecord()
}

func bigRecord(rows int) arrow.Record {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), testRecordSchema())
	defer b.Release()
	col := b.Field(0).(*array.Int64Builder)
	for i := 0; i < rows; i++ {
		col.Append(int64(i))
	}
	return b.NewRecord()
}

func TestWriterReaderSmoke(t *testing.T) {
	name := testArenaName(t)

	w, err := OpenWriter(Config{Name: name, SlotCount: 3, SizeBytes: 1 << 20})
	require.NoError(t, err)
	defer w.Close()

	r, err := OpenReader(Config{Name: name})
	require.NoError(t, err)
	defer r.Close()

	rec := testRecord(42)
	defer rec.Release()
	require.NoError(t, w.Write(rec, time.Time{}))

	got, err := r.Read(time.Now().Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, got)
	defer got.Release()

	require.EqualValues(t, 1, got.NumRows())
	require.Equal(t, int64(42), got.Column(0).(*array.Int64).Value(0))
}

func TestWriterBackpressureTimesOut(t *testing.T) {
	name := testArenaName(t)

	w, err := OpenWriter(Config{Name: name, SlotCount: 1, SizeBytes: 1 << 16})
	require.NoError(t, err)
	defer w.Close()

	rec := testRecord(1)
	defer rec.Release()

	// Fill the sole slot; nothing drains it.
	require.NoError(t, w.Write(rec, time.Time{}))

	err = w.Write(rec, time.Now().Add(50*time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWriterOversizeRejectsBeforeClaimingSlot(t *testing.T) {
	name := testArenaName(t)

	// slot_count=1, size_bytes=8192 derives a single 4096-byte slot: a
	// 4064-byte payload budget after the 32-byte slot header.
	w, err := OpenWriter(Config{Name: name, SlotCount: 1, SizeBytes: 8192})
	require.NoError(t, err)
	defer w.Close()

	rec := bigRecord(2000)
	defer rec.Release()

	err = w.Write(rec, time.Time{})
	require.ErrorIs(t, err, ErrOversize)

	// The rejected write must not have left a claimed slot behind.
	idx, ok := claimWrite(w.header, w.region.data)
	require.True(t, ok)
	require.Equal(t, 0, idx)
}

func TestReaderSeesNoneAfterWriterClosesAndDrains(t *testing.T) {
	name := testArenaName(t)

	w, err := OpenWriter(Config{Name: name, SlotCount: 2, SizeBytes: 1 << 16, UnlinkOnClose: boolPtr(false)})
	require.NoError(t, err)

	rec := testRecord(7)
	defer rec.Release()
	require.NoError(t, w.Write(rec, time.Time{}))
	require.NoError(t, w.Close())

	r, err := OpenReader(Config{Name: name, UnlinkOnClose: boolPtr(true)})
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Read(time.Now().Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, got)
	got.Release()

	none, err := r.Read(time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestReaderOpenFailsNotFoundWithoutWaitForWriter(t *testing.T) {
	name := testArenaName(t)

	_, err := OpenReader(Config{Name: name})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSecondWriterRejectedWhileFirstIsLive(t *testing.T) {
	name := testArenaName(t)

	// Both use default geometry so the second Open attaches to the same
	// arena the first created rather than failing on a geometry mismatch.
	w1, err := OpenWriter(Config{Name: name})
	require.NoError(t, err)
	defer w1.Close()

	_, err = OpenWriter(Config{Name: name})
	require.ErrorIs(t, err, ErrAlreadyWriter)
}

func TestWriterCrashMidWriteIsRecoveredByNextOpen(t *testing.T) {
	name := testArenaName(t)

	w, err := OpenWriter(Config{Name: name, SlotCount: 2, SizeBytes: 1 << 16, UnlinkOnClose: boolPtr(false)})
	require.NoError(t, err)

	// Simulate a writer that died mid-write: it claimed a slot, marked it
	// WRITING, and never reached publish, all while still holding the
	// mutex under a pid that no longer exists.
	idx, ok := claimWrite(w.header, w.region.data)
	require.True(t, ok)
	beginWrite(w.header, w.region.data, idx)

	const deadPID = int32(1 << 30)
	w.header.Mutex.state = 1
	w.header.Mutex.ownerPID = deadPID
	w.header.WriterPID = deadPID
	w.header.Flags |= flagWriterAttached
	prevWriteSeq := w.header.WriteSeq

	// The in-memory Writer handle itself must not be reused past this
	// point; a fresh OpenWriter against the same arena stands in for the
	// new process that attaches after the crash.
	w2, err := OpenWriter(Config{Name: name, SlotCount: 2, SizeBytes: 1 << 16, UnlinkOnClose: boolPtr(true)})
	require.NoError(t, err)
	defer w2.Close()

	require.Equal(t, slotFree, slotState(slotAt(w2.region.data, idx, w2.header.SlotCapacity).State))
	require.Equal(t, prevWriteSeq, w2.header.WriteSeq)

	// Recovery already happened inside OpenWriter above (it acquired the
	// mutex, observed OwnerDead, and repaired slot state before
	// returning); the subsequent Write is an ordinary, uncontested write.
	rec := testRecord(99)
	defer rec.Release()
	require.NoError(t, w2.Write(rec, time.Now().Add(time.Second)))

	r, err := OpenReader(Config{Name: name})
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Read(time.Now().Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, got)
	defer got.Release()
	require.Equal(t, int64(99), got.Column(0).(*array.Int64).Value(0))
}

func TestReaderDetectsCorruptionWhenChecksumEnabled(t *testing.T) {
	name := testArenaName(t)

	w, err := OpenWriter(Config{Name: name, SlotCount: 2, SizeBytes: 1 << 16, VerifyChecksum: true})
	require.NoError(t, err)
	defer w.Close()

	rec := testRecord(5)
	defer rec.Release()
	require.NoError(t, w.Write(rec, time.Time{}))

	// Flip a single bit in the published slot's payload, simulating bit
	// rot or a misbehaving writer, without going through the API.
	payload := slotPayload(w.region.data, 0, w.header.SlotCapacity)
	payload[0] ^= 0x01

	r, err := OpenReader(Config{Name: name, VerifyChecksum: true})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Read(time.Now().Add(time.Second))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestSequenceOrderPreservedAcrossManyBatches(t *testing.T) {
	name := testArenaName(t)

	w, err := OpenWriter(Config{Name: name, SlotCount: 2, SizeBytes: 1 << 16})
	require.NoError(t, err)

	r, err := OpenReader(Config{Name: name, UnlinkOnClose: boolPtr(true)})
	require.NoError(t, err)

	const n = 20
	resultCh := make(chan []int64, 1)

	go func() {
		var got []int64
		for rec, err := range r.Iterate(time.Now().Add(2 * time.Second)) {
			if rec == nil {
				break
			}
			got = append(got, rec.Column(0).(*array.Int64).Value(0))
			rec.Release()
			if err != nil && !errors.Is(err, ErrOwnerDead) {
				break
			}
		}
		r.Close()
		resultCh <- got
	}()

	for i := int64(0); i < n; i++ {
		rec := testRecord(i)
		err := w.Write(rec, time.Now().Add(2*time.Second))
		rec.Release()
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	got := <-resultCh
	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, int64(i), v)
	}
}
