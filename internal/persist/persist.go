// Package persist orchestrates the write and read paths of the PER/DCOMP
// store: resolve the client, append deduplicated facts, and upsert the
// derived snapshot row, containing any mid-write failure at this boundary.
package persist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/leadfisco/fiscaldesk/errs"
	"github.com/leadfisco/fiscaldesk/internal/cliente"
	"github.com/leadfisco/fiscaldesk/internal/domain"
	"github.com/leadfisco/fiscaldesk/internal/fact"
	"github.com/leadfisco/fiscaldesk/internal/observability"
	"github.com/leadfisco/fiscaldesk/internal/perdcomp"
	"github.com/leadfisco/fiscaldesk/internal/shard"
	"github.com/leadfisco/fiscaldesk/internal/snapshot"
	"github.com/leadfisco/fiscaldesk/internal/tabular"
)

// Config names the two backing tables and bounds the snapshot shards.
type Config struct {
	FactsTable    string
	SnapshotTable string
	ShardLimit    int
}

// DefaultConfig matches the production table layout.
func DefaultConfig() Config {
	return Config{
		FactsTable:    "perdecomp_facts",
		SnapshotTable: "perdecomp_snapshot",
		ShardLimit:    shard.DefaultLimit,
	}
}

// Meta is the per-consultation batch context.
type Meta struct {
	Fonte              string
	DataConsultaISO    string
	URLComprovanteHTML string
	CardSchemaVersion  string
	RenderedAtISO      string
	ConsultaID         string
}

// SaveArgs is one write request.
type SaveArgs struct {
	ClienteID string
	EmpresaID string
	CNPJ      string
	Card      domain.CardPayload
	Facts     []domain.ProviderRecord
	Meta      Meta
}

// SaveResult reports what one write actually did. Contained is set when a
// mid-write failure was absorbed at the orchestrator boundary; the error
// column on the snapshot row carries the message.
type SaveResult struct {
	ClienteID    string
	Inserted     int
	Skipped      int
	FactsCount   int
	SnapshotHash string
	Contained    bool
	Message      string
}

// Orchestrator owns the write transaction boundary, one entity at a time.
// A keyed mutex serializes writers per client id within the process; the
// remote store remains the arbiter across processes.
type Orchestrator struct {
	store    tabular.Store
	upserter *snapshot.Upserter
	resolver *cliente.Resolver
	cfg      Config

	locks keyedMutex
	now   func() time.Time
}

// New builds an orchestrator over store with cfg.
func New(store tabular.Store, cfg Config) *Orchestrator {
	if cfg.FactsTable == "" {
		cfg.FactsTable = DefaultConfig().FactsTable
	}
	if cfg.SnapshotTable == "" {
		cfg.SnapshotTable = DefaultConfig().SnapshotTable
	}
	if cfg.ShardLimit <= 0 {
		cfg.ShardLimit = shard.DefaultLimit
	}
	return &Orchestrator{
		store:    store,
		upserter: snapshot.NewUpserter(store, cfg.SnapshotTable),
		resolver: cliente.NewResolver(nil),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Save runs the full write path. Only two conditions surface as errors: a
// missing batch id and a client id that cannot be resolved to canonical form.
// Everything past resolution is contained: the failure is logged, counted,
// and written onto the snapshot row's error column, and Save returns a
// result with Contained set instead of an error.
func (o *Orchestrator) Save(ctx context.Context, args SaveArgs) (SaveResult, error) {
	if args.Meta.ConsultaID == "" {
		return SaveResult{}, errs.New("persist", errs.CodeInvalid,
			errs.WithMessage("consulta id is required"))
	}

	registry, err := o.readRegistry(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	resolved, err := o.resolver.Resolve(args.ClienteID, args.CNPJ, registry)
	if err != nil || !cliente.ValidID(resolved) {
		observability.Audit(observability.AuditEvent{
			Name:      observability.EventPersistAbortInvalidID,
			ClienteID: args.ClienteID,
			Message:   "resolved id is not canonical",
		})
		if err == nil {
			err = errs.New("persist", errs.CodeInvalid,
				errs.WithMessage("resolved cliente id is not canonical"))
		}
		return SaveResult{}, err
	}

	o.locks.lock(resolved)
	defer o.locks.unlock(resolved)

	observability.Audit(observability.AuditEvent{
		Name:       observability.EventPersistStart,
		ClienteID:  resolved,
		ConsultaID: args.Meta.ConsultaID,
	})

	result, saveErr := o.write(ctx, resolved, args)
	if saveErr != nil {
		o.containFailure(ctx, resolved, saveErr)
		return SaveResult{
			ClienteID: resolved,
			Contained: true,
			Message:   saveErr.Error(),
		}, nil
	}

	observability.Audit(observability.AuditEvent{Name: observability.EventPersistEnd, ClienteID: resolved})
	return result, nil
}

func (o *Orchestrator) write(ctx context.Context, clienteID string, args SaveArgs) (SaveResult, error) {
	nowISO := o.now().UTC().Format(time.RFC3339)

	factsTable, existing, err := o.readFacts(ctx, clienteID)
	if err != nil {
		return SaveResult{}, err
	}

	meta := fact.BatchMeta{
		ClienteID:          clienteID,
		EmpresaID:          args.EmpresaID,
		NomeEmpresa:        args.Card.NomeEmpresa,
		CNPJ:               args.CNPJ,
		Fonte:              args.Meta.Fonte,
		DataConsultaISO:    args.Meta.DataConsultaISO,
		URLComprovanteHTML: args.Meta.URLComprovanteHTML,
		ConsultaID:         args.Meta.ConsultaID,
	}
	candidates := make([]domain.Fact, 0, len(args.Facts))
	for _, rec := range args.Facts {
		candidates = append(candidates, fact.Map(rec, meta, o.now()))
	}

	filtered := fact.Filter(existing, candidates)
	if len(filtered.ToInsert) > 0 {
		rows := make([][]string, 0, len(filtered.ToInsert))
		for _, f := range filtered.ToInsert {
			rows = append(rows, positional(factsTable.Headers, f.Row()))
		}
		if err := o.store.AppendRows(ctx, o.cfg.FactsTable, rows); err != nil {
			return SaveResult{}, err
		}
		observability.Audit(observability.AuditEvent{
			Name:      observability.EventFactsOK,
			ClienteID: clienteID,
			Inserted:  len(filtered.ToInsert),
			Skipped:   filtered.Skipped,
		})
	} else {
		observability.Audit(observability.AuditEvent{
			Name:      observability.EventFactsSkipEmpty,
			ClienteID: clienteID,
			Skipped:   filtered.Skipped,
		})
	}
	observability.Metrics().RecordFacts(ctx, clienteID, len(filtered.ToInsert), filtered.Skipped)

	allFacts := append(existing, filtered.ToInsert...)
	row, hash, err := o.buildSnapshotRow(ctx, clienteID, args, candidates, allFacts, nowISO)
	if err != nil {
		return SaveResult{}, err
	}
	if err := o.upserter.Upsert(ctx, clienteID, row); err != nil {
		return SaveResult{}, err
	}
	observability.Audit(observability.AuditEvent{
		Name:      observability.EventSnapshotOK,
		ClienteID: clienteID,
		Inserted:  len(allFacts),
		Hash:      hash,
	})

	return SaveResult{
		ClienteID:    clienteID,
		Inserted:     len(filtered.ToInsert),
		Skipped:      filtered.Skipped,
		FactsCount:   len(allFacts),
		SnapshotHash: hash,
	}, nil
}

// buildSnapshotRow derives the full snapshot column map. Card-provided
// aggregates take precedence; the fact-derived ones only fill the gaps.
func (o *Orchestrator) buildSnapshotRow(
	ctx context.Context,
	clienteID string,
	args SaveArgs,
	mapped, allFacts []domain.Fact,
	nowISO string,
) (map[string]string, string, error) {
	card := args.Card

	riscoNivel, riscoTags := perdcomp.RiskDistribution(allFacts)
	if card.Risk != nil && (card.Risk.Nivel != "" || len(card.Risk.Tags) > 0) {
		riscoNivel, riscoTags = card.Risk.Nivel, card.Risk.Tags
	}
	if riscoNivel == "" && len(riscoTags) == 0 {
		riscoNivel = perdcomp.RiscoDesconhecido
	}

	porNatureza := perdcomp.NaturezaDistribution(allFacts)
	porCredito := perdcomp.CreditoDistribution(allFacts)
	if card.Agregados != nil {
		if len(card.Agregados.PorNatureza) > 0 {
			porNatureza = card.Agregados.PorNatureza
		}
		if len(card.Agregados.PorCredito) > 0 {
			porCredito = card.Agregados.PorCredito
		}
	}

	datas := mergeDates(card.Datas, mapped)

	counts := map[string]int{}
	for _, f := range allFacts {
		counts[f.Familia]++
	}
	total := len(allFacts)
	if card.QuantidadeTotal > 0 {
		total = card.QuantidadeTotal
	}

	payload, err := json.Marshal(card)
	if err != nil {
		return nil, "", err
	}
	payloadStr := string(payload)
	p1, p2, _ := shard.Split(ctx, payloadStr, o.cfg.ShardLimit)
	observability.Metrics().RecordPayloadBytes(ctx, len(payloadStr))
	hash := sha256Hex(payloadStr)

	row := map[string]string{
		"cliente_id":                     clienteID,
		"empresa_id":                     args.EmpresaID,
		"nome_da_empresa":                card.NomeEmpresa,
		"cnpj":                           args.CNPJ,
		"qtd_total":                      strconv.Itoa(total),
		"qtd_dcomp":                      strconv.Itoa(counts[string(perdcomp.FamiliaDCOMP)]),
		"qtd_rest":                       strconv.Itoa(counts[string(perdcomp.FamiliaREST)]),
		"qtd_ressarc":                    strconv.Itoa(counts[string(perdcomp.FamiliaRESSARC)]),
		"risco_nivel":                    riscoNivel,
		"risco_tags_json":                mustJSON(emptyBlocks(riscoTags)),
		"por_natureza_json":              mustJSON(emptyBlocks(porNatureza)),
		"por_credito_json":               mustJSON(emptyBlocks(porCredito)),
		"datas_json":                     mustJSON(datas),
		"primeira_data_iso":              firstOf(datas),
		"ultima_data_iso":                lastOf(datas),
		"resumo_ultima_consulta_json_p1": p1,
		"resumo_ultima_consulta_json_p2": p2,
		"card_schema_version":            args.Meta.CardSchemaVersion,
		"rendered_at_iso":                args.Meta.RenderedAtISO,
		"fonte":                          args.Meta.Fonte,
		"data_consulta":                  args.Meta.DataConsultaISO,
		"url_comprovante_html":           args.Meta.URLComprovanteHTML,
		"payload_bytes":                  strconv.Itoa(len(payloadStr)),
		"snapshot_hash":                  hash,
		"facts_count":                    strconv.Itoa(len(allFacts)),
		"last_updated_iso":               nowISO,
		"consulta_id":                    args.Meta.ConsultaID,
		"erro_ultima_consulta":           "",
	}
	return row, hash, nil
}

// containFailure is the orchestrator boundary: the failure is observable via
// the audit trail and the snapshot error column, never as a thrown error.
func (o *Orchestrator) containFailure(ctx context.Context, clienteID string, cause error) {
	observability.Audit(observability.AuditEvent{
		Name:      observability.EventPersistFail,
		ClienteID: clienteID,
		Message:   cause.Error(),
	})
	observability.Metrics().RecordPersistFailure(ctx, clienteID)

	row := map[string]string{
		"cliente_id":           clienteID,
		"erro_ultima_consulta": cause.Error(),
		"last_updated_iso":     o.now().UTC().Format(time.RFC3339),
	}
	if err := o.upserter.Upsert(ctx, clienteID, row); err != nil {
		observability.Log().Error("error column write failed",
			observability.F("clienteId", clienteID),
			observability.F("error", err.Error()),
		)
	}
}

// Load reads the snapshot for a client. A missing row or an unparseable
// payload returns nil rather than a corrupt object. Empty risk or credit
// fields are backfilled from the fact log, merging into whatever partial
// data the payload already carried.
func (o *Orchestrator) Load(ctx context.Context, clienteID string) (*domain.SnapshotResult, error) {
	row, err := o.upserter.Find(ctx, clienteID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	joined := shard.Join(
		row.Values["resumo_ultima_consulta_json_p1"],
		row.Values["resumo_ultima_consulta_json_p2"],
	)
	if joined == "" {
		return nil, nil
	}

	var card domain.CardPayload
	if err := json.Unmarshal([]byte(joined), &card); err != nil {
		observability.Audit(observability.AuditEvent{
			Name:      observability.EventSnapshotReadFail,
			ClienteID: clienteID,
			Message:   err.Error(),
		})
		return nil, nil
	}

	needRisk := card.Risk == nil || (card.Risk.Nivel == "" && len(card.Risk.Tags) == 0)
	needCredito := card.Agregados == nil || len(card.Agregados.PorCredito) == 0
	if needRisk || needCredito {
		_, facts, err := o.readFacts(ctx, clienteID)
		if err != nil {
			return nil, err
		}
		if needRisk {
			nivel, tags := perdcomp.RiskDistribution(facts)
			if card.Risk == nil {
				card.Risk = &domain.RiskBlock{}
			}
			if card.Risk.Nivel == "" {
				card.Risk.Nivel = nivel
			}
			if len(card.Risk.Tags) == 0 {
				card.Risk.Tags = emptyBlocks(tags)
			}
		}
		if needCredito {
			if card.Agregados == nil {
				card.Agregados = &domain.AggregateBlock{}
			}
			if len(card.Agregados.PorCredito) == 0 {
				card.Agregados.PorCredito = emptyBlocks(perdcomp.CreditoDistribution(facts))
			}
			if card.Agregados.PorNatureza == nil {
				card.Agregados.PorNatureza = emptyBlocks(nil)
			}
		}
	}

	return &domain.SnapshotResult{Card: card, Metadata: metadataFromRow(row.Values)}, nil
}

func (o *Orchestrator) readRegistry(ctx context.Context) ([]cliente.Registro, error) {
	table, err := o.upserter.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	registry := make([]cliente.Registro, 0, len(table.Rows))
	for _, row := range table.Rows {
		registry = append(registry, cliente.Registro{
			ClienteID: row.Values["cliente_id"],
			CNPJ:      row.Values["cnpj"],
		})
	}
	return registry, nil
}

func (o *Orchestrator) readFacts(ctx context.Context, clienteID string) (*tabular.Table, []domain.Fact, error) {
	table, err := o.store.ReadTable(ctx, o.cfg.FactsTable)
	if err != nil {
		return nil, nil, err
	}
	idx := table.HeaderIndex()
	for _, col := range domain.FactColumns {
		if _, ok := idx[col]; !ok {
			return nil, nil, errs.New("persist", errs.CodeConfig,
				errs.WithMessage("table "+o.cfg.FactsTable+" is missing column "+col))
		}
	}

	var facts []domain.Fact
	for _, row := range table.Rows {
		if row.Values["cliente_id"] != clienteID {
			continue
		}
		facts = append(facts, domain.FactFromRow(row.Values))
	}
	return table, facts, nil
}

func metadataFromRow(values map[string]string) domain.SnapshotMetadata {
	meta := domain.SnapshotMetadata{
		ClienteID:          values["cliente_id"],
		EmpresaID:          values["empresa_id"],
		NomeEmpresa:        values["nome_da_empresa"],
		CNPJ:               values["cnpj"],
		QtdTotal:           atoi(values["qtd_total"]),
		QtdDcomp:           atoi(values["qtd_dcomp"]),
		QtdRest:            atoi(values["qtd_rest"]),
		QtdRessarc:         atoi(values["qtd_ressarc"]),
		RiscoNivel:         values["risco_nivel"],
		PrimeiraDataISO:    values["primeira_data_iso"],
		UltimaDataISO:      values["ultima_data_iso"],
		CardSchemaVersion:  values["card_schema_version"],
		RenderedAtISO:      values["rendered_at_iso"],
		Fonte:              values["fonte"],
		DataConsulta:       values["data_consulta"],
		URLComprovanteHTML: values["url_comprovante_html"],
		PayloadBytes:       atoi(values["payload_bytes"]),
		LastUpdatedISO:     values["last_updated_iso"],
		SnapshotHash:       values["snapshot_hash"],
		FactsCount:         atoi(values["facts_count"]),
		ConsultaID:         values["consulta_id"],
		ErroUltimaConsulta: values["erro_ultima_consulta"],
	}
	_ = json.Unmarshal([]byte(values["risco_tags_json"]), &meta.TagsRisco)
	_ = json.Unmarshal([]byte(values["por_natureza_json"]), &meta.PorNatureza)
	_ = json.Unmarshal([]byte(values["por_credito_json"]), &meta.PorCredito)
	_ = json.Unmarshal([]byte(values["datas_json"]), &meta.Datas)
	return meta
}

// mergeDates unions the card's dates with the freshly mapped facts' document
// dates, deduplicated and ascending.
func mergeDates(cardDates []string, mapped []domain.Fact) []string {
	set := make(map[string]struct{})
	for _, d := range cardDates {
		if d != "" {
			set[d] = struct{}{}
		}
	}
	for _, f := range mapped {
		if f.DataISO != "" {
			set[f.DataISO] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func positional(headers []string, values map[string]string) []string {
	row := make([]string, len(headers))
	for i, header := range headers {
		row[i] = values[header]
	}
	return row
}

func emptyBlocks(blocks []domain.CountBlock) []domain.CountBlock {
	if blocks == nil {
		return []domain.CountBlock{}
	}
	return blocks
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func lastOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

func atoi(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}

func sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
