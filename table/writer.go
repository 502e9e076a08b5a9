package table

import (
	"time"

	"github.com/yutiansut/qadataswap-go/arena"
)

// Writer is a Table-level convenience wrapper over arena.Writer, for
// callers that would rather hand over a Table than build an arrow.Record
// themselves. It mirrors a dataframe-style "write" call backed by the
// same shared-memory transport arena.Writer uses directly.
type Writer struct {
	w *arena.Writer
}

// OpenWriter opens the named arena for writing, per arena.OpenWriter.
func OpenWriter(cfg arena.Config) (*Writer, error) {
	w, err := arena.OpenWriter(cfg)
	if err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// Write converts t to a record batch and publishes it, per arena.Writer.Write.
func (w *Writer) Write(t *Table, deadline time.Time) error {
	rec := ToRecordBatch(t)
	defer rec.Release()
	return w.w.Write(rec, deadline)
}

// Close detaches the writer, per arena.Writer.Close.
func (w *Writer) Close() error { return w.w.Close() }
