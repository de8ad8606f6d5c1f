package tabular

import (
	"context"
	"sync"

	"github.com/leadfisco/fiscaldesk/errs"
)

// MemoryStore is an in-process Store used by tests and local development.
// Tables must be created up front with their header order; reads return
// deep copies so callers cannot mutate stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable
}

type memoryTable struct {
	headers []string
	rows    [][]string
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memoryTable)}
}

// CreateTable registers a table with the given header order. Re-creating an
// existing table resets it.
func (s *MemoryStore) CreateTable(name string, headers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = &memoryTable{headers: append([]string(nil), headers...)}
}

func (s *MemoryStore) table(name string) (*memoryTable, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, errs.New("tabular", errs.CodeNotFound,
			errs.WithMessage("table "+name+" does not exist"))
	}
	return t, nil
}

// ReadTable implements Store.
func (s *MemoryStore) ReadTable(_ context.Context, table string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}

	out := &Table{
		Name:    table,
		Headers: append([]string(nil), t.headers...),
		Rows:    make([]Row, 0, len(t.rows)),
	}
	for i, cells := range t.rows {
		values := make(map[string]string, len(t.headers))
		for col, header := range t.headers {
			if col < len(cells) {
				values[header] = cells[col]
			} else {
				values[header] = ""
			}
		}
		out.Rows = append(out.Rows, Row{Number: i + 2, Values: values})
	}
	return out, nil
}

// AppendRows implements Store.
func (s *MemoryStore) AppendRows(_ context.Context, table string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		t.rows = append(t.rows, append([]string(nil), row...))
	}
	return nil
}

// UpdateCells implements Store.
func (s *MemoryStore) UpdateCells(_ context.Context, table string, updates []CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(table)
	if err != nil {
		return err
	}
	for _, u := range updates {
		idx := u.Row - 2
		if idx < 0 || idx >= len(t.rows) {
			return errs.New("tabular", errs.CodeInvalid,
				errs.WithMessage("update addresses a row that does not exist"))
		}
		row := t.rows[idx]
		need := u.Column + len(u.Values)
		if need > len(row) {
			grown := make([]string, need)
			copy(grown, row)
			row = grown
			t.rows[idx] = row
		}
		copy(row[u.Column:], u.Values)
	}
	return nil
}
