// Package service implements the consultation workflows exposed by the HTTP
// surface: refresh a client's PER/DCOMP data from the provider and persist
// the outcome.
package service

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/leadfisco/fiscaldesk/errs"
	"github.com/leadfisco/fiscaldesk/internal/cliente"
	"github.com/leadfisco/fiscaldesk/internal/domain"
	"github.com/leadfisco/fiscaldesk/internal/observability"
	"github.com/leadfisco/fiscaldesk/internal/perdcomp"
	"github.com/leadfisco/fiscaldesk/internal/persist"
	"github.com/leadfisco/fiscaldesk/internal/provider/infosimples"
)

// CardSchemaVersion tags every card payload this build renders.
const CardSchemaVersion = "fiscaldesk-card-v2"

const fonte = "api:infosimples"

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Provider is the consultation API dependency.
type Provider interface {
	Consultar(ctx context.Context, cnpj, dataInicio, dataFim string) (*infosimples.Result, error)
}

// Saver is the persistence dependency.
type Saver interface {
	Save(ctx context.Context, args persist.SaveArgs) (persist.SaveResult, error)
	Load(ctx context.Context, clienteID string) (*domain.SnapshotResult, error)
}

// RefreshRequest asks for a fresh consultation of one client.
type RefreshRequest struct {
	ClienteID   string
	CNPJ        string
	NomeEmpresa string
	StartDate   string
	EndDate     string
}

// RefreshResult summarizes a completed refresh.
type RefreshResult struct {
	ClienteID    string `json:"clienteId"`
	ConsultaID   string `json:"consultaId"`
	Total        int    `json:"total"`
	Inserted     int    `json:"inserted"`
	Skipped      int    `json:"skipped"`
	SnapshotHash string `json:"snapshotHash,omitempty"`
	Contained    bool   `json:"contained,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Refresh runs the full consultation workflow.
type Refresh struct {
	provider Provider
	saver    Saver
	now      func() time.Time
	newID    func() string
}

// NewRefresh builds the workflow over its two collaborators.
func NewRefresh(provider Provider, saver Saver) *Refresh {
	return &Refresh{
		provider: provider,
		saver:    saver,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Run consults the provider for the request's CNPJ and persists facts and
// snapshot under the resolved client id. The date window defaults to the
// five years ending today; a start after the end is replaced by the default
// start rather than rejected.
func (r *Refresh) Run(ctx context.Context, req RefreshRequest) (*RefreshResult, error) {
	cnpj, err := cliente.PadCNPJ(req.CNPJ)
	if err != nil {
		return nil, err
	}

	dataFim := req.EndDate
	if !isoDatePattern.MatchString(dataFim) {
		dataFim = r.now().UTC().Format("2006-01-02")
	}
	dataInicio := req.StartDate
	if !isoDatePattern.MatchString(dataInicio) || dataInicio > dataFim {
		dataInicio = addYears(dataFim, -5)
	}

	observability.Log().Info("refreshing perdcomp data",
		observability.F("clienteId", req.ClienteID),
		observability.F("cnpj", cnpj),
		observability.F("window", dataInicio+".."+dataFim),
	)

	consulta, err := r.provider.Consultar(ctx, cnpj, dataInicio, dataFim)
	if err != nil {
		return nil, errs.New("service", errs.CodeProvider,
			errs.WithMessage("consultation failed"), errs.WithCause(err))
	}

	consultaID := r.newID()
	resumo := perdcomp.Agrega(consulta.Records)
	card := r.buildCard(req, cnpj, consulta, resumo)

	requestedAt := consulta.RequestedAt
	if requestedAt == "" {
		requestedAt = r.now().UTC().Format(time.RFC3339)
	}

	saved, err := r.saver.Save(ctx, persist.SaveArgs{
		ClienteID: req.ClienteID,
		CNPJ:      cnpj,
		Card:      card,
		Facts:     consulta.Records,
		Meta: persist.Meta{
			Fonte:              fonte,
			DataConsultaISO:    requestedAt,
			URLComprovanteHTML: consulta.SiteReceipt,
			CardSchemaVersion:  CardSchemaVersion,
			RenderedAtISO:      r.now().UTC().Format(time.RFC3339),
			ConsultaID:         consultaID,
		},
	})
	if err != nil {
		return nil, err
	}

	return &RefreshResult{
		ClienteID:    saved.ClienteID,
		ConsultaID:   consultaID,
		Total:        resumo.Total,
		Inserted:     saved.Inserted,
		Skipped:      saved.Skipped,
		SnapshotHash: saved.SnapshotHash,
		Contained:    saved.Contained,
		Message:      saved.Message,
	}, nil
}

// buildCard renders the summary payload stored on the snapshot row. The
// typed fields carry what the read path consumes; the raw consultation
// summary and the credit guidance ride along in the extra section.
func (r *Refresh) buildCard(
	req RefreshRequest,
	cnpj string,
	consulta *infosimples.Result,
	resumo perdcomp.Agregado,
) domain.CardPayload {
	codigos := make([]string, 0, len(consulta.Records))
	for _, rec := range consulta.Records {
		if rec.Perdcomp != "" {
			codigos = append(codigos, rec.Perdcomp)
		}
	}

	card := domain.CardPayload{
		ClienteID:       req.ClienteID,
		NomeEmpresa:     req.NomeEmpresa,
		CNPJ:            cnpj,
		SchemaVersion:   CardSchemaVersion,
		RenderedAtISO:   r.now().UTC().Format(time.RFC3339),
		QuantidadeTotal: resumo.Total,
		Codigos:         codigos,
		Extra: map[string]any{
			"fonte":          fonte,
			"mappedCount":    consulta.MappedCount,
			"site_receipt":   consulta.SiteReceipt,
			"perdcompResumo": resumo,
		},
	}

	if guidance := creditGuidance(resumo); len(guidance) > 0 {
		card.Extra["recomendacoes"] = guidance
	}
	return card
}

// creditGuidance attaches the classification tables' strategic guidance for
// every credit code seen in this consultation.
func creditGuidance(resumo perdcomp.Agregado) []map[string]any {
	codigos := make([]string, 0, len(resumo.PorCredito))
	for codigo := range resumo.PorCredito {
		codigos = append(codigos, codigo)
	}
	sort.Strings(codigos)

	var guidance []map[string]any
	for _, codigo := range codigos {
		rec := perdcomp.CreditoRecomendacao(codigo)
		if rec.Texto == "" {
			continue
		}
		entry := map[string]any{
			"codigo":   codigo,
			"texto":    rec.Texto,
			"generica": rec.Generica,
		}
		if categoria := perdcomp.CreditoCategoria(codigo); categoria != "" {
			entry["categoria"] = categoria
			if op := perdcomp.CategoriaOportunidade(categoria); op != "" {
				entry["oportunidade"] = op
			}
		}
		guidance = append(guidance, entry)
	}
	return guidance
}

// addYears shifts an ISO date by whole years, clamping 29 February to
// 1 March on non-leap targets the same way time.Date normalizes.
func addYears(iso string, years int) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.AddDate(years, 0, 0).Format("2006-01-02")
}
