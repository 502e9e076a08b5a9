package table

import (
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
)

// ToRecordBatch converts t into an arrow.Record, the unit the arena
// transport's frame codec operates on. Column name, order, and logical
// type are preserved exactly, including any dictionary encoding, since
// they all come straight from the table's own Arrow arrays.
func ToRecordBatch(t *Table) arrow.Record {
	cols := make([]arrow.Array, t.NumCols())
	for i := 0; i < t.NumCols(); i++ {
		cols[i] = t.Column(i)
	}
	return array.NewRecord(t.Schema(), cols, int64(t.NumRows()))
}

// FromRecordBatch converts rec into a Table, taking its own references
// to the batch's columns so the caller is free to Release rec
// immediately afterward.
func FromRecordBatch(rec arrow.Record) (*Table, error) {
	cols := make([]arrow.Array, rec.NumCols())
	for i := range cols {
		cols[i] = rec.Column(i)
	}
	return New(rec.Schema(), cols)
}
