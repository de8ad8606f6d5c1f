// Package postgres backs the tabular storage contract with PostgreSQL.
// Each logical table is one row in sheet_tables holding the header order,
// with data rows stored positionally as JSONB arrays in sheet_rows.
package postgres

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadfisco/fiscaldesk/errs"
	"github.com/leadfisco/fiscaldesk/internal/tabular"
)

const (
	tableEnsureSQL = `
INSERT INTO sheet_tables (name, headers, created_at)
VALUES (@name, @headers::jsonb, NOW())
ON CONFLICT (name) DO NOTHING;
`

	headersSelectSQL = `
SELECT headers FROM sheet_tables WHERE name = @name;
`

	rowsSelectSQL = `
SELECT row_number, cells
FROM sheet_rows
WHERE table_name = @name
ORDER BY row_number;
`

	nextRowSelectSQL = `
SELECT COALESCE(MAX(row_number), 1) + 1
FROM sheet_rows
WHERE table_name = @name;
`

	rowInsertSQL = `
INSERT INTO sheet_rows (table_name, row_number, cells, updated_at)
VALUES (@name, @row_number, @cells::jsonb, NOW());
`

	rowSelectForUpdateSQL = `
SELECT cells FROM sheet_rows
WHERE table_name = @name AND row_number = @row_number
FOR UPDATE;
`

	rowUpdateSQL = `
UPDATE sheet_rows
SET cells = @cells::jsonb, updated_at = NOW()
WHERE table_name = @name AND row_number = @row_number;
`
)

// SheetStore implements tabular.Store over a pgx connection pool.
type SheetStore struct {
	pool *pgxpool.Pool
}

// NewSheetStore constructs a SheetStore backed by the provided pool.
func NewSheetStore(pool *pgxpool.Pool) *SheetStore {
	return &SheetStore{pool: pool}
}

// EnsureTable registers a table and its header order if it does not exist
// yet. Headers of an existing table are left untouched.
func (s *SheetStore) EnsureTable(ctx context.Context, table string, headers []string) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(headers)
	if err != nil {
		return errs.New("postgres", errs.CodeInvalid, errs.WithCause(err))
	}
	args := pgx.NamedArgs{"name": table, "headers": string(encoded)}
	if _, err := pool.Exec(ctx, tableEnsureSQL, args); err != nil {
		return storeErr("ensure table", err)
	}
	return nil
}

// ReadTable returns the table's headers and all data rows ordered by their
// backend line number.
func (s *SheetStore) ReadTable(ctx context.Context, table string) (*tabular.Table, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return nil, err
	}

	headers, err := s.readHeaders(ctx, pool, table)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, rowsSelectSQL, pgx.NamedArgs{"name": table})
	if err != nil {
		return nil, storeErr("read rows", err)
	}
	defer rows.Close()

	result := &tabular.Table{Name: table, Headers: headers}
	for rows.Next() {
		var number int
		var cellsRaw []byte
		if err := rows.Scan(&number, &cellsRaw); err != nil {
			return nil, storeErr("scan row", err)
		}
		cells, err := decodeCells(cellsRaw)
		if err != nil {
			return nil, err
		}
		values := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(cells) {
				values[header] = cells[i]
			} else {
				values[header] = ""
			}
		}
		result.Rows = append(result.Rows, tabular.Row{Number: number, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate rows", err)
	}
	return result, nil
}

// AppendRows inserts positional rows after the last data row, numbering them
// consecutively inside one transaction.
func (s *SheetStore) AppendRows(ctx context.Context, table string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	if _, err := s.readHeaders(ctx, pool, table); err != nil {
		return err
	}

	return s.withTx(ctx, pool, func(tx pgx.Tx) error {
		var next int
		if err := tx.QueryRow(ctx, nextRowSelectSQL, pgx.NamedArgs{"name": table}).Scan(&next); err != nil {
			return storeErr("next row number", err)
		}
		for i, row := range rows {
			encoded, err := json.Marshal(row)
			if err != nil {
				return errs.New("postgres", errs.CodeInvalid, errs.WithCause(err))
			}
			args := pgx.NamedArgs{
				"name":       table,
				"row_number": next + i,
				"cells":      string(encoded),
			}
			if _, err := tx.Exec(ctx, rowInsertSQL, args); err != nil {
				return storeErr("insert row", err)
			}
		}
		return nil
	})
}

// UpdateCells applies every update inside one transaction. Each update
// rewrites a contiguous run of cells on an existing row; a row number with no
// stored row is rejected.
func (s *SheetStore) UpdateCells(ctx context.Context, table string, updates []tabular.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	headers, err := s.readHeaders(ctx, pool, table)
	if err != nil {
		return err
	}

	return s.withTx(ctx, pool, func(tx pgx.Tx) error {
		for _, update := range updates {
			if update.Row < 2 {
				return errs.New("postgres", errs.CodeInvalid,
					errs.WithMessage(fmt.Sprintf("row %d is not a data row", update.Row)))
			}
			var cellsRaw []byte
			args := pgx.NamedArgs{"name": table, "row_number": update.Row}
			err := tx.QueryRow(ctx, rowSelectForUpdateSQL, args).Scan(&cellsRaw)
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.New("postgres", errs.CodeInvalid,
					errs.WithMessage(fmt.Sprintf("row %d does not exist in %s", update.Row, table)))
			}
			if err != nil {
				return storeErr("read row for update", err)
			}
			cells, err := decodeCells(cellsRaw)
			if err != nil {
				return err
			}
			if grow := update.Column + len(update.Values); grow > len(cells) {
				padded := make([]string, grow)
				copy(padded, cells)
				cells = padded
			}
			copy(cells[update.Column:], update.Values)
			if len(cells) > len(headers) {
				cells = cells[:len(headers)]
			}
			encoded, err := json.Marshal(cells)
			if err != nil {
				return errs.New("postgres", errs.CodeInvalid, errs.WithCause(err))
			}
			args["cells"] = string(encoded)
			if _, err := tx.Exec(ctx, rowUpdateSQL, args); err != nil {
				return storeErr("update row", err)
			}
		}
		return nil
	})
}

func (s *SheetStore) readHeaders(ctx context.Context, pool *pgxpool.Pool, table string) ([]string, error) {
	var headersRaw []byte
	err := pool.QueryRow(ctx, headersSelectSQL, pgx.NamedArgs{"name": table}).Scan(&headersRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.New("postgres", errs.CodeNotFound,
			errs.WithMessage(fmt.Sprintf("table %s does not exist", table)))
	}
	if err != nil {
		return nil, storeErr("read headers", err)
	}
	var headers []string
	if err := json.Unmarshal(headersRaw, &headers); err != nil {
		return nil, errs.New("postgres", errs.CodeInvalid, errs.WithCause(err))
	}
	return headers, nil
}

func (s *SheetStore) withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return storeErr("begin tx", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return storeErr("rollback tx", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return storeErr("commit tx", err)
	}
	return nil
}

func (s *SheetStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, errs.New("postgres", errs.CodeConfig,
			errs.WithMessage("sheet store: nil pool"))
	}
	return s.pool, nil
}

func decodeCells(raw []byte) ([]string, error) {
	var cells []string
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, errs.New("postgres", errs.CodeInvalid, errs.WithCause(err))
	}
	return cells, nil
}

// storeErr classifies backend failures as unavailable so the resilient
// wrapper retries them.
func storeErr(op string, err error) error {
	return errs.New("postgres", errs.CodeUnavailable,
		errs.WithMessage(op), errs.WithCause(err))
}
