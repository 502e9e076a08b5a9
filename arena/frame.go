package arena

import (
	"bytes"
	"fmt"
	"hash/crc32"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"
)

// crc32cTable is the Castagnoli polynomial table used for slot
// checksums. hash/crc32 is the one concern in this transport that stays
// on the standard library rather than a third-party dependency — see
// DESIGN.md for why.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// crc32c computes the CRC-32C checksum of payload. A zero result is
// treated as "no checksum stored" by readers with verification enabled;
// an all-zero checksum on real payload data is vanishingly unlikely.
func crc32c(payload []byte) uint32 {
	return crc32.Checksum(payload, crc32cTable)
}

// encodeFrame serializes rec as a self-contained Arrow IPC stream
// (schema message, one record-batch message, end-of-stream marker) into
// dst, returning the number of bytes written. dst is reused across calls
// as the writer's staging buffer, so the copy from staging into a slot
// is the only in-process copy on the write path. Fails with ErrOversize
// if the encoded length exceeds maxLen; the caller has not yet touched
// any slot at that point.
func encodeFrame(rec arrow.Record, maxLen uint64, dst *bytes.Buffer) (uint64, error) {
	dst.Reset()

	w := ipc.NewWriter(dst, ipc.WithSchema(rec.Schema()))
	if err := w.Write(rec); err != nil {
		w.Close()
		return 0, fmt.Errorf("arena: encode frame: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("arena: encode frame: %w", err)
	}

	n := uint64(dst.Len())
	if n > maxLen {
		return 0, ErrOversize
	}
	return n, nil
}

// decodeFrame parses exactly one record batch out of an Arrow IPC
// stream. The returned record is retained independently of payload,
// which callers are free to discard or reuse afterward.
func decodeFrame(payload []byte) (arrow.Record, error) {
	r, err := ipc.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer r.Release()

	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return nil, fmt.Errorf("%w: empty stream", ErrCorrupt)
	}

	rec := r.Record()
	rec.Retain()
	return rec, nil
}
