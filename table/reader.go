package table

import (
	"errors"
	"iter"
	"time"

	"github.com/yutiansut/qadataswap-go/arena"
)

// Reader is a Table-level convenience wrapper over arena.Reader, for
// callers that would rather receive a Table than an arrow.Record.
type Reader struct {
	r *arena.Reader
}

// OpenReader attaches to the named arena for reading, per arena.OpenReader.
func OpenReader(cfg arena.Config) (*Reader, error) {
	r, err := arena.OpenReader(cfg)
	if err != nil {
		return nil, err
	}
	return &Reader{r: r}, nil
}

// Read waits for the next batch and converts it to a Table, per
// arena.Reader.Read. A (nil, nil) result means the writer has gone and
// the ring is empty.
func (rd *Reader) Read(deadline time.Time) (*Table, error) {
	rec, err := rd.r.Read(deadline)
	if rec == nil {
		return nil, err
	}

	t, convErr := FromRecordBatch(rec)
	rec.Release()
	if convErr != nil {
		return nil, convErr
	}
	return t, err
}

// Iterate returns a finite, non-restartable sequence of Tables, ending
// when Read yields (nil, nil) or a hard error. A Table paired with
// arena.ErrOwnerDead is still yielded, mirroring arena.Reader.Iterate.
func (rd *Reader) Iterate(deadline time.Time) iter.Seq2[*Table, error] {
	return func(yield func(*Table, error) bool) {
		for {
			t, err := rd.Read(deadline)
			if t == nil && err == nil {
				return
			}
			if !yield(t, err) {
				return
			}
			if err != nil && !errors.Is(err, arena.ErrOwnerDead) {
				return
			}
		}
	}
}

// Close detaches the reader, per arena.Reader.Close.
func (rd *Reader) Close() error { return rd.r.Close() }
