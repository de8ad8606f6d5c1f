// Package tabular abstracts the spreadsheet-style row storage the
// persistence pipeline writes to. A backend exposes named tables with a
// header row, append-only row inserts, and targeted cell updates.
package tabular

import "context"

// Row is one data row of a table. Number is the backend line number the row
// occupies, counted from 1 with the header on line 1, so targeted updates can
// address the row without re-reading.
type Row struct {
	Number int
	Values map[string]string
}

// Table is a full table read: its header order plus every data row.
type Table struct {
	Name    string
	Headers []string
	Rows    []Row
}

// HeaderIndex maps each header to its zero-based column position.
func (t *Table) HeaderIndex() map[string]int {
	idx := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		idx[h] = i
	}
	return idx
}

// CellUpdate rewrites a contiguous horizontal run of cells on one row.
// Row is the backend line number reported by ReadTable; Column is the
// zero-based index of the first cell.
type CellUpdate struct {
	Row    int
	Column int
	Values []string
}

// Store is the row-storage contract shared by all backends.
type Store interface {
	// ReadTable returns the table's headers and all data rows.
	ReadTable(ctx context.Context, table string) (*Table, error)

	// AppendRows adds rows after the last data row. Each row is positional,
	// aligned with the table's header order.
	AppendRows(ctx context.Context, table string, rows [][]string) error

	// UpdateCells applies every update in one batched write.
	UpdateCells(ctx context.Context, table string, updates []CellUpdate) error
}
