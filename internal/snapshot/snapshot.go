// Package snapshot maintains the one-row-per-client derived summary table.
package snapshot

import (
	"context"

	"github.com/leadfisco/fiscaldesk/errs"
	"github.com/leadfisco/fiscaldesk/internal/tabular"
)

// Columns is the snapshot table header set, in storage order.
var Columns = []string{
	"cliente_id",
	"empresa_id",
	"nome_da_empresa",
	"cnpj",
	"qtd_total",
	"qtd_dcomp",
	"qtd_rest",
	"qtd_ressarc",
	"risco_nivel",
	"risco_tags_json",
	"por_natureza_json",
	"por_credito_json",
	"datas_json",
	"primeira_data_iso",
	"ultima_data_iso",
	"resumo_ultima_consulta_json_p1",
	"resumo_ultima_consulta_json_p2",
	"card_schema_version",
	"rendered_at_iso",
	"fonte",
	"data_consulta",
	"url_comprovante_html",
	"payload_bytes",
	"snapshot_hash",
	"facts_count",
	"last_updated_iso",
	"consulta_id",
	"erro_ultima_consulta",
}

// Upserter writes snapshot rows with merge-on-update semantics: existing rows
// only have the columns present in the update rewritten, so repeated partial
// writes accumulate instead of clobbering prior values.
type Upserter struct {
	store tabular.Store
	table string
}

// NewUpserter builds an upserter over the given table.
func NewUpserter(store tabular.Store, table string) *Upserter {
	return &Upserter{store: store, table: table}
}

// Find returns the snapshot row for a client, or nil when none exists.
func (u *Upserter) Find(ctx context.Context, clienteID string) (*tabular.Row, error) {
	table, err := u.read(ctx)
	if err != nil {
		return nil, err
	}
	return findRow(table, clienteID), nil
}

// ReadAll returns the full snapshot table after header validation.
func (u *Upserter) ReadAll(ctx context.Context) (*tabular.Table, error) {
	return u.read(ctx)
}

// Upsert writes row for clienteID. A matching existing row gets a single
// batched update covering exactly the columns present in row; otherwise a new
// row is appended with absent columns left empty.
func (u *Upserter) Upsert(ctx context.Context, clienteID string, row map[string]string) error {
	table, err := u.read(ctx)
	if err != nil {
		return err
	}

	existing := findRow(table, clienteID)
	if existing == nil {
		appended := make([]string, len(table.Headers))
		for i, header := range table.Headers {
			appended[i] = row[header]
		}
		return u.store.AppendRows(ctx, u.table, [][]string{appended})
	}

	updates := mergeUpdates(table.Headers, existing.Number, row)
	if len(updates) == 0 {
		return nil
	}
	return u.store.UpdateCells(ctx, u.table, updates)
}

func (u *Upserter) read(ctx context.Context) (*tabular.Table, error) {
	table, err := u.store.ReadTable(ctx, u.table)
	if err != nil {
		return nil, err
	}
	if err := validateHeaders(table); err != nil {
		return nil, err
	}
	return table, nil
}

// validateHeaders treats a missing expected column as a fatal configuration
// error rather than silently writing a misaligned row.
func validateHeaders(table *tabular.Table) error {
	idx := table.HeaderIndex()
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			return errs.New("snapshot", errs.CodeConfig,
				errs.WithMessage("table "+table.Name+" is missing column "+col))
		}
	}
	return nil
}

func findRow(table *tabular.Table, clienteID string) *tabular.Row {
	for i := range table.Rows {
		if table.Rows[i].Values["cliente_id"] == clienteID {
			return &table.Rows[i]
		}
	}
	return nil
}

// mergeUpdates renders the batched cell writes for one row: contiguous runs
// of updated columns collapse into single range updates.
func mergeUpdates(headers []string, rowNumber int, row map[string]string) []tabular.CellUpdate {
	var updates []tabular.CellUpdate
	var run *tabular.CellUpdate
	for i, header := range headers {
		value, ok := row[header]
		if !ok {
			run = nil
			continue
		}
		if run != nil && run.Column+len(run.Values) == i {
			run.Values = append(run.Values, value)
			continue
		}
		updates = append(updates, tabular.CellUpdate{Row: rowNumber, Column: i, Values: []string{value}})
		run = &updates[len(updates)-1]
	}
	return updates
}
