package persist

import (
	"context"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/leadfisco/fiscaldesk/errs"
	"github.com/leadfisco/fiscaldesk/internal/domain"
	"github.com/leadfisco/fiscaldesk/internal/snapshot"
	"github.com/leadfisco/fiscaldesk/internal/tabular"
)

func newOrchestrator(t *testing.T) (*Orchestrator, *tabular.MemoryStore) {
	t.Helper()
	store := tabular.NewMemoryStore()
	store.CreateTable("perdecomp_facts", domain.FactColumns)
	store.CreateTable("perdecomp_snapshot", snapshot.Columns)
	return New(store, DefaultConfig()), store
}

func saveArgs(clienteID string) SaveArgs {
	return SaveArgs{
		ClienteID: clienteID,
		CNPJ:      "12345678000190",
		Card: domain.CardPayload{
			NomeEmpresa: "Empresa Teste",
		},
		Facts: []domain.ProviderRecord{
			{Perdcomp: "11111.22222.010203.1.1.01-1234", Situacao: "Em análise", Valor: "0"},
			{Perdcomp: "22662.90524.250925.1.3.18-9471"},
		},
		Meta: Meta{
			Fonte:             "api:infosimples",
			DataConsultaISO:   "2024-01-01T11:00:00Z",
			CardSchemaVersion: "test-v1",
			RenderedAtISO:     "2024-01-01T12:00:00Z",
			ConsultaID:        "consulta-123",
		},
	}
}

func TestSaveRequiresConsultaID(t *testing.T) {
	o, _ := newOrchestrator(t)
	args := saveArgs("")
	args.Meta.ConsultaID = ""
	if _, err := o.Save(context.Background(), args); errs.CodeOf(err) != errs.CodeInvalid {
		t.Fatalf("expected invalid_request, got %v", err)
	}
}

func TestSaveRejectsMalformedClienteID(t *testing.T) {
	o, store := newOrchestrator(t)
	if _, err := o.Save(context.Background(), saveArgs("COMP-9999")); err == nil {
		t.Fatal("expected abort for malformed cliente id")
	}

	facts, err := store.ReadTable(context.Background(), "perdecomp_facts")
	if err != nil {
		t.Fatalf("read facts: %v", err)
	}
	if len(facts.Rows) != 0 {
		t.Fatalf("aborted write left %d fact rows", len(facts.Rows))
	}
}

func TestSaveAllocatesIDAndPersists(t *testing.T) {
	ctx := context.Background()
	o, store := newOrchestrator(t)

	result, err := o.Save(ctx, saveArgs(""))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if result.Contained {
		t.Fatalf("unexpected containment: %s", result.Message)
	}
	if result.ClienteID != "CLT-0001" {
		t.Fatalf("cliente id = %q", result.ClienteID)
	}
	if result.Inserted != 2 || result.Skipped != 0 || result.FactsCount != 2 {
		t.Fatalf("result = %+v", result)
	}

	facts, _ := store.ReadTable(ctx, "perdecomp_facts")
	if len(facts.Rows) != 2 {
		t.Fatalf("fact rows = %d", len(facts.Rows))
	}
	row := facts.Rows[1].Values
	if row["cliente_id"] != "CLT-0001" || row["nome_da_empresa"] != "Empresa Teste" {
		t.Fatalf("fact row = %+v", row)
	}
	if row["natureza"] != "1.3" || row["credito_codigo"] != "18" || row["data_iso"] != "2025-09-25" {
		t.Fatalf("parsed fields = %+v", row)
	}

	snap, _ := store.ReadTable(ctx, "perdecomp_snapshot")
	if len(snap.Rows) != 1 {
		t.Fatalf("snapshot rows = %d", len(snap.Rows))
	}
	values := snap.Rows[0].Values
	if values["facts_count"] != "2" || values["qtd_total"] != "2" {
		t.Fatalf("snapshot counters = %+v", values)
	}
	if values["qtd_dcomp"] != "1" || values["qtd_ressarc"] != "1" || values["qtd_rest"] != "0" {
		t.Fatalf("familia counters = %+v", values)
	}
	if values["risco_nivel"] != "DESCONHECIDO" {
		t.Fatalf("risco = %q", values["risco_nivel"])
	}
	var tags []domain.CountBlock
	if err := json.Unmarshal([]byte(values["risco_tags_json"]), &tags); err != nil {
		t.Fatalf("risco tags: %v", err)
	}
	if len(tags) != 1 || tags[0].Label != "DESCONHECIDO" || tags[0].Count != 2 {
		t.Fatalf("risco tags = %+v", tags)
	}
	var porCredito []domain.CountBlock
	_ = json.Unmarshal([]byte(values["por_credito_json"]), &porCredito)
	labels := map[string]int{}
	for _, b := range porCredito {
		labels[b.Label] = b.Count
	}
	if labels["Ressarcimento de IPI"] != 1 || labels["Outros Créditos"] != 1 {
		t.Fatalf("por credito = %+v", porCredito)
	}
	if values["primeira_data_iso"] != "2003-02-01" || values["ultima_data_iso"] != "2025-09-25" {
		t.Fatalf("date range = %q .. %q", values["primeira_data_iso"], values["ultima_data_iso"])
	}
	if values["erro_ultima_consulta"] != "" {
		t.Fatalf("error column = %q", values["erro_ultima_consulta"])
	}
	if values["snapshot_hash"] == "" || values["resumo_ultima_consulta_json_p1"] == "" {
		t.Fatal("payload columns missing")
	}
}

func TestSaveReingestionIsNoOp(t *testing.T) {
	ctx := context.Background()
	o, store := newOrchestrator(t)

	if _, err := o.Save(ctx, saveArgs("")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	result, err := o.Save(ctx, saveArgs("CLT-0001"))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if result.Inserted != 0 || result.Skipped != 2 {
		t.Fatalf("re-ingestion result = %+v", result)
	}

	facts, _ := store.ReadTable(ctx, "perdecomp_facts")
	if len(facts.Rows) != 2 {
		t.Fatalf("fact rows after re-ingestion = %d", len(facts.Rows))
	}
	snap, _ := store.ReadTable(ctx, "perdecomp_snapshot")
	if len(snap.Rows) != 1 {
		t.Fatalf("snapshot rows after re-ingestion = %d", len(snap.Rows))
	}
}

type appendFailingStore struct {
	tabular.Store
}

func (s *appendFailingStore) AppendRows(ctx context.Context, table string, rows [][]string) error {
	if table == "perdecomp_facts" {
		return errs.New("tabular", errs.CodeProvider, errs.WithMessage("boom"))
	}
	return s.Store.AppendRows(ctx, table, rows)
}

func TestSaveContainsMidWriteFailure(t *testing.T) {
	ctx := context.Background()
	inner := tabular.NewMemoryStore()
	inner.CreateTable("perdecomp_facts", domain.FactColumns)
	inner.CreateTable("perdecomp_snapshot", snapshot.Columns)
	o := New(&appendFailingStore{Store: inner}, DefaultConfig())

	result, err := o.Save(ctx, saveArgs(""))
	if err != nil {
		t.Fatalf("contained failure surfaced as error: %v", err)
	}
	if !result.Contained || !strings.Contains(result.Message, "boom") {
		t.Fatalf("result = %+v", result)
	}

	snap, _ := inner.ReadTable(ctx, "perdecomp_snapshot")
	if len(snap.Rows) != 1 {
		t.Fatalf("error row not written: %d rows", len(snap.Rows))
	}
	values := snap.Rows[0].Values
	if !strings.Contains(values["erro_ultima_consulta"], "boom") {
		t.Fatalf("error column = %q", values["erro_ultima_consulta"])
	}
	if values["last_updated_iso"] == "" {
		t.Fatal("timestamp missing on error row")
	}
}

func TestSaveFailureKeepsLastKnownGoodSnapshot(t *testing.T) {
	ctx := context.Background()
	inner := tabular.NewMemoryStore()
	inner.CreateTable("perdecomp_facts", domain.FactColumns)
	inner.CreateTable("perdecomp_snapshot", snapshot.Columns)

	good := New(inner, DefaultConfig())
	if _, err := good.Save(ctx, saveArgs("")); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	bad := New(&appendFailingStore{Store: inner}, DefaultConfig())
	args := saveArgs("CLT-0001")
	args.Facts = append(args.Facts, domain.ProviderRecord{
		Perdcomp: "33333.44444.010101.2.2.04-0001",
	})
	result, err := bad.Save(ctx, args)
	if err != nil || !result.Contained {
		t.Fatalf("expected containment, got %+v, %v", result, err)
	}

	snap, _ := inner.ReadTable(ctx, "perdecomp_snapshot")
	values := snap.Rows[0].Values
	if values["qtd_total"] != "2" || values["facts_count"] != "2" {
		t.Fatalf("known-good counters clobbered: %+v", values)
	}
	if !strings.Contains(values["erro_ultima_consulta"], "boom") {
		t.Fatalf("error column = %q", values["erro_ultima_consulta"])
	}
}

func TestLoadRoundTripAndBackfill(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)

	if _, err := o.Save(ctx, saveArgs("")); err != nil {
		t.Fatalf("save: %v", err)
	}

	result, err := o.Load(ctx, "CLT-0001")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if result == nil {
		t.Fatal("snapshot missing")
	}
	if result.Card.NomeEmpresa != "Empresa Teste" {
		t.Fatalf("card = %+v", result.Card)
	}
	if result.Card.Risk == nil || result.Card.Risk.Nivel != "DESCONHECIDO" {
		t.Fatalf("risk backfill = %+v", result.Card.Risk)
	}
	if result.Card.Agregados == nil || len(result.Card.Agregados.PorCredito) != 2 {
		t.Fatalf("credit backfill = %+v", result.Card.Agregados)
	}
	if result.Metadata.FactsCount != 2 || result.Metadata.ClienteID != "CLT-0001" {
		t.Fatalf("metadata = %+v", result.Metadata)
	}
}

func TestLoadMissingRowReturnsNothing(t *testing.T) {
	o, _ := newOrchestrator(t)
	result, err := o.Load(context.Background(), "CLT-9999")
	if err != nil || result != nil {
		t.Fatalf("expected nothing, got %+v, %v", result, err)
	}
}

func TestLoadCorruptPayloadReturnsNothing(t *testing.T) {
	ctx := context.Background()
	o, store := newOrchestrator(t)

	row := make([]string, len(snapshot.Columns))
	for i, col := range snapshot.Columns {
		switch col {
		case "cliente_id":
			row[i] = "CLT-0042"
		case "resumo_ultima_consulta_json_p1":
			row[i] = `{"nome":"Empresa"`
		case "resumo_ultima_consulta_json_p2":
			row[i] = `,"valor":` // truncated
		}
	}
	if err := store.AppendRows(ctx, "perdecomp_snapshot", [][]string{row}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := o.Load(ctx, "CLT-0042")
	if err != nil || result != nil {
		t.Fatalf("expected nothing for corrupt payload, got %+v, %v", result, err)
	}
}

func TestLoadConcatenatesShards(t *testing.T) {
	ctx := context.Background()
	o, store := newOrchestrator(t)

	row := make([]string, len(snapshot.Columns))
	for i, col := range snapshot.Columns {
		switch col {
		case "cliente_id":
			row[i] = "CLT-0042"
		case "resumo_ultima_consulta_json_p1":
			row[i] = `{"nomeEmpresa":"Empre`
		case "resumo_ultima_consulta_json_p2":
			row[i] = `sa"}`
		}
	}
	if err := store.AppendRows(ctx, "perdecomp_snapshot", [][]string{row}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := o.Load(ctx, "CLT-0042")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if result == nil || result.Card.NomeEmpresa != "Empresa" {
		t.Fatalf("result = %+v", result)
	}
	if result.Card.Risk == nil || result.Card.Risk.Nivel != "" || len(result.Card.Risk.Tags) != 0 {
		t.Fatalf("empty-facts risk backfill = %+v", result.Card.Risk)
	}
	if result.Card.Agregados == nil || result.Card.Agregados.PorCredito == nil {
		t.Fatalf("empty-facts credit backfill = %+v", result.Card.Agregados)
	}
}
