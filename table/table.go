// Package table converts between a minimal Table object and an Arrow
// record batch, so callers working with row/column data don't need to
// build arrow.Record values by hand to use the arena transport.
package table

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
)

// Table is a minimal in-memory columnar table: parallel named Arrow
// arrays sharing one logical row count. Column names, order, and types
// live in its Schema.
type Table struct {
	schema  *arrow.Schema
	columns []arrow.Array
}

// New builds a Table from a schema and one array per field. All columns
// must share the same length. New retains a reference to each column;
// call Release when the Table is no longer needed.
func New(schema *arrow.Schema, columns []arrow.Array) (*Table, error) {
	if len(columns) != schema.NumFields() {
		return nil, fmt.Errorf("table: %d columns for %d schema fields", len(columns), schema.NumFields())
	}

	n := -1
	for i, col := range columns {
		if n == -1 {
			n = col.Len()
			continue
		}
		if col.Len() != n {
			return nil, fmt.Errorf("table: column %d has %d rows, want %d", i, col.Len(), n)
		}
	}

	for _, col := range columns {
		col.Retain()
	}

	return &Table{schema: schema, columns: columns}, nil
}

// Schema returns the table's Arrow schema.
func (t *Table) Schema() *arrow.Schema { return t.schema }

// NumRows returns the table's row count (0 for a zero-column table).
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// ColumnName returns the name of column i, per the table's schema.
func (t *Table) ColumnName(i int) string { return t.schema.Field(i).Name }

// Column returns column i's backing Arrow array.
func (t *Table) Column(i int) arrow.Array { return t.columns[i] }

// Release drops the table's references to its underlying Arrow arrays.
// Safe to call once; subsequent use of the Table is invalid afterward.
func (t *Table) Release() {
	for _, col := range t.columns {
		col.Release()
	}
}
