package domain

import (
	json "github.com/goccy/go-json"
)

// CountBlock pairs a label with an occurrence count inside aggregate JSON
// columns.
type CountBlock struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RiskBlock is the risk portion of a rendered card payload.
type RiskBlock struct {
	Nivel string       `json:"nivel"`
	Tags  []CountBlock `json:"tags"`
}

// AggregateBlock groups the derived distributions carried by a card payload.
// Slices are kept non-nil by producers so consumers always see arrays.
type AggregateBlock struct {
	PorNatureza []CountBlock `json:"porNatureza"`
	PorCredito  []CountBlock `json:"porCredito"`
}

// CardPayload is the rendered summary persisted (sharded) on the snapshot row
// and returned to UI consumers. Fields the core reads are typed; everything
// else the provider rendered is kept verbatim in Extra so a round-trip
// reproduces the original object.
type CardPayload struct {
	ClienteID       string          `json:"clienteId,omitempty"`
	EmpresaID       string          `json:"empresaId,omitempty"`
	NomeEmpresa     string          `json:"nomeEmpresa,omitempty"`
	CNPJ            string          `json:"cnpj,omitempty"`
	SchemaVersion   string          `json:"schema_version,omitempty"`
	RenderedAtISO   string          `json:"rendered_at_iso,omitempty"`
	QuantidadeTotal int             `json:"quantidade_total,omitempty"`
	Risk            *RiskBlock      `json:"risk,omitempty"`
	Agregados       *AggregateBlock `json:"agregados,omitempty"`
	Datas           []string        `json:"datas,omitempty"`
	Codigos         []string        `json:"codigos_identificados,omitempty"`

	Extra map[string]any `json:"-"`
}

type cardAlias CardPayload

var cardKnownKeys = []string{
	"clienteId", "empresaId", "nomeEmpresa", "cnpj", "schema_version",
	"rendered_at_iso", "quantidade_total", "risk", "agregados", "datas",
	"codigos_identificados",
}

// MarshalJSON merges the typed fields with the Extra passthrough keys.
func (c CardPayload) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(cardAlias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return base, nil
	}
	merged := make(map[string]any, len(c.Extra)+len(cardKnownKeys))
	for k, v := range c.Extra {
		merged[k] = v
	}
	var typed map[string]any
	if err := json.Unmarshal(base, &typed); err != nil {
		return nil, err
	}
	for k, v := range typed {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON fills the typed fields and routes unknown keys into Extra.
func (c *CardPayload) UnmarshalJSON(data []byte) error {
	var alias cardAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range cardKnownKeys {
		delete(raw, key)
	}
	*c = CardPayload(alias)
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

// SnapshotMetadata mirrors the scalar columns of the snapshot row.
type SnapshotMetadata struct {
	ClienteID          string       `json:"clienteId"`
	EmpresaID          string       `json:"empresaId"`
	NomeEmpresa        string       `json:"nome"`
	CNPJ               string       `json:"cnpj"`
	QtdTotal           int          `json:"qtdTotal"`
	QtdDcomp           int          `json:"qtdDcomp"`
	QtdRest            int          `json:"qtdRest"`
	QtdRessarc         int          `json:"qtdRessarc"`
	RiscoNivel         string       `json:"riscoNivel"`
	TagsRisco          []CountBlock `json:"tagsRisco"`
	PorNatureza        []CountBlock `json:"porNatureza"`
	PorCredito         []CountBlock `json:"porCredito"`
	Datas              []string     `json:"datas"`
	PrimeiraDataISO    string       `json:"primeiraDataISO"`
	UltimaDataISO      string       `json:"ultimaDataISO"`
	CardSchemaVersion  string       `json:"cardSchemaVersion"`
	RenderedAtISO      string       `json:"renderedAtISO"`
	Fonte              string       `json:"fonte"`
	DataConsulta       string       `json:"dataConsulta"`
	URLComprovanteHTML string       `json:"urlComprovanteHTML"`
	PayloadBytes       int          `json:"payloadBytes"`
	LastUpdatedISO     string       `json:"lastUpdatedISO"`
	SnapshotHash       string       `json:"snapshotHash"`
	FactsCount         int          `json:"factsCount"`
	ConsultaID         string       `json:"consultaId"`
	ErroUltimaConsulta string       `json:"erroUltimaConsulta"`
}

// SnapshotResult pairs the reassembled card with its row metadata on read.
type SnapshotResult struct {
	Card     CardPayload      `json:"card"`
	Metadata SnapshotMetadata `json:"metadata"`
}
