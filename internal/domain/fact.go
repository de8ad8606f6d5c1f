// Package domain defines the canonical fiscaldesk data shapes: provider
// records, normalized facts, and snapshot payloads.
package domain

// ProviderRecord is one raw PER/DCOMP occurrence as returned by the tax-data
// provider. All fields are optional; the mapper resolves aliases in a fixed
// priority order.
type ProviderRecord struct {
	Perdcomp             string `json:"perdcomp,omitempty"`
	Numero               string `json:"perdcomp_numero,omitempty"`
	NumeroDocumento      string `json:"numero_documento,omitempty"`
	CNPJ                 string `json:"cnpj,omitempty"`
	Solicitante          string `json:"solicitante,omitempty"`
	TipoDocumento        string `json:"tipo_documento,omitempty"`
	TipoCredito          string `json:"tipo_credito,omitempty"`
	DataTransmissao      string `json:"data_transmissao,omitempty"`
	Situacao             string `json:"situacao,omitempty"`
	SituacaoDetalhamento string `json:"situacao_detalhamento,omitempty"`
	DataProtocolo        string `json:"data_protocolo,omitempty"`
	PeriodoInicio        string `json:"periodo_inicio,omitempty"`
	PeriodoFim           string `json:"periodo_fim,omitempty"`
	NumeroProcesso       string `json:"numero_processo,omitempty"`
	Valor                string `json:"valor,omitempty"`

	// Pre-parsed fields a caller may supply; the mapper prefers its own
	// parse and falls back to these when the document code is invalid.
	Natureza      string `json:"natureza,omitempty"`
	CreditoCodigo string `json:"credito_codigo,omitempty"`
	DataISO       string `json:"data_iso,omitempty"`
	TipoCodigo    string `json:"tipo_codigo,omitempty"`
	TipoNome      string `json:"tipo_nome,omitempty"`
	RiscoNivel    string `json:"risco_nivel,omitempty"`
	Protocolo     string `json:"protocolo,omitempty"`
}

// Fact is one deduplicated, normalized tax-document occurrence tied to an
// entity. Facts are append-only; they are never mutated after insertion.
type Fact struct {
	ClienteID            string
	EmpresaID            string
	NomeEmpresa          string
	CNPJ                 string
	PerdcompNumero       string
	PerdcompFormatado    string
	B1                   string
	B2                   string
	DataDDMMAA           string
	DataISO              string
	TipoCodigo           string
	TipoNome             string
	Natureza             string
	Familia              string
	CreditoCodigo        string
	CreditoDescricao     string
	RiscoNivel           string
	Protocolo            string
	Situacao             string
	SituacaoDetalhamento string
	MotivoNormalizado    string
	Solicitante          string
	Valor                string
	Fonte                string
	DataConsulta         string
	URLComprovanteHTML   string
	RowHash              string
	InsertedAt           string
	ConsultaID           string
	Version              string
	DeletedFlag          string
}

// FactColumns is the fact table header set, in storage order.
var FactColumns = []string{
	"cliente_id",
	"empresa_id",
	"nome_da_empresa",
	"cnpj",
	"perdcomp_numero",
	"perdcomp_formatado",
	"b1",
	"b2",
	"data_ddmmaa",
	"data_iso",
	"tipo_codigo",
	"tipo_nome",
	"natureza",
	"familia",
	"credito_codigo",
	"credito_descricao",
	"risco_nivel",
	"protocolo",
	"situacao",
	"situacao_detalhamento",
	"motivo_normalizado",
	"solicitante",
	"valor",
	"fonte",
	"data_consulta",
	"url_comprovante_html",
	"row_hash",
	"inserted_at",
	"consulta_id",
	"version",
	"deleted_flag",
}

// Row maps the fact onto its storage columns.
func (f Fact) Row() map[string]string {
	return map[string]string{
		"cliente_id":            f.ClienteID,
		"empresa_id":            f.EmpresaID,
		"nome_da_empresa":       f.NomeEmpresa,
		"cnpj":                  f.CNPJ,
		"perdcomp_numero":       f.PerdcompNumero,
		"perdcomp_formatado":    f.PerdcompFormatado,
		"b1":                    f.B1,
		"b2":                    f.B2,
		"data_ddmmaa":           f.DataDDMMAA,
		"data_iso":              f.DataISO,
		"tipo_codigo":           f.TipoCodigo,
		"tipo_nome":             f.TipoNome,
		"natureza":              f.Natureza,
		"familia":               f.Familia,
		"credito_codigo":        f.CreditoCodigo,
		"credito_descricao":     f.CreditoDescricao,
		"risco_nivel":           f.RiscoNivel,
		"protocolo":             f.Protocolo,
		"situacao":              f.Situacao,
		"situacao_detalhamento": f.SituacaoDetalhamento,
		"motivo_normalizado":    f.MotivoNormalizado,
		"solicitante":           f.Solicitante,
		"valor":                 f.Valor,
		"fonte":                 f.Fonte,
		"data_consulta":         f.DataConsulta,
		"url_comprovante_html":  f.URLComprovanteHTML,
		"row_hash":              f.RowHash,
		"inserted_at":           f.InsertedAt,
		"consulta_id":           f.ConsultaID,
		"version":               f.Version,
		"deleted_flag":          f.DeletedFlag,
	}
}

// FactFromRow rebuilds a Fact from its storage columns.
func FactFromRow(row map[string]string) Fact {
	return Fact{
		ClienteID:            row["cliente_id"],
		EmpresaID:            row["empresa_id"],
		NomeEmpresa:          row["nome_da_empresa"],
		CNPJ:                 row["cnpj"],
		PerdcompNumero:       row["perdcomp_numero"],
		PerdcompFormatado:    row["perdcomp_formatado"],
		B1:                   row["b1"],
		B2:                   row["b2"],
		DataDDMMAA:           row["data_ddmmaa"],
		DataISO:              row["data_iso"],
		TipoCodigo:           row["tipo_codigo"],
		TipoNome:             row["tipo_nome"],
		Natureza:             row["natureza"],
		Familia:              row["familia"],
		CreditoCodigo:        row["credito_codigo"],
		CreditoDescricao:     row["credito_descricao"],
		RiscoNivel:           row["risco_nivel"],
		Protocolo:            row["protocolo"],
		Situacao:             row["situacao"],
		SituacaoDetalhamento: row["situacao_detalhamento"],
		MotivoNormalizado:    row["motivo_normalizado"],
		Solicitante:          row["solicitante"],
		Valor:                row["valor"],
		Fonte:                row["fonte"],
		DataConsulta:         row["data_consulta"],
		URLComprovanteHTML:   row["url_comprovante_html"],
		RowHash:              row["row_hash"],
		InsertedAt:           row["inserted_at"],
		ConsultaID:           row["consulta_id"],
		Version:              row["version"],
		DeletedFlag:          row["deleted_flag"],
	}
}
