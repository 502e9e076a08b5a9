package arena

import (
	"bytes"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/require"
)

func sampleRecord(t *testing.T) arrow.Record {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{1.5, 2.5, 3.5}, nil)

	return b.NewRecord()
}

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	rec := sampleRecord(t)
	defer rec.Release()

	var buf bytes.Buffer
	n, err := encodeFrame(rec, 1<<20, &buf)
	require.NoError(t, err)
	require.Greater(t, n, uint64(0))

	got, err := decodeFrame(buf.Bytes()[:n])
	require.NoError(t, err)
	defer got.Release()

	require.True(t, rec.Schema().Equal(got.Schema()))
	require.Equal(t, rec.NumRows(), got.NumRows())
}

func TestEncodeFrameOversize(t *testing.T) {
	rec := sampleRecord(t)
	defer rec.Release()

	var buf bytes.Buffer
	_, err := encodeFrame(rec, 8, &buf)
	require.ErrorIs(t, err, ErrOversize)
}

func TestCRC32CDetectsSingleBitCorruption(t *testing.T) {
	payload := []byte("qadataswap frame payload")
	sum := crc32c(payload)

	corrupted := append([]byte(nil), payload...)
	corrupted[0] ^= 0x01

	require.NotEqual(t, sum, crc32c(corrupted))
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := decodeFrame([]byte("not an arrow ipc stream"))
	require.ErrorIs(t, err, ErrCorrupt)
}
