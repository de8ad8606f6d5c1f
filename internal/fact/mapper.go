// Package fact turns raw provider records into normalized, deduplicated fact
// rows for the append-only fact table.
package fact

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leadfisco/fiscaldesk/internal/domain"
	"github.com/leadfisco/fiscaldesk/internal/perdcomp"
)

// BatchMeta carries the per-consultation context stamped onto every fact
// mapped in one persistence call.
type BatchMeta struct {
	ClienteID          string
	EmpresaID          string
	NomeEmpresa        string
	CNPJ               string
	Fonte              string
	DataConsultaISO    string
	URLComprovanteHTML string
	ConsultaID         string
}

// Map converts one provider record into a fact row. Parsed document fields
// win over caller-supplied ones; the caller's values only fill gaps the
// parser could not produce. The transform is pure: now is injected so
// inserted_at stays reproducible in tests.
func Map(rec domain.ProviderRecord, meta BatchMeta, now time.Time) domain.Fact {
	numero := firstNonEmpty(rec.Perdcomp, rec.Numero, rec.NumeroDocumento)
	digits := perdcomp.OnlyDigits(numero)
	parsed := perdcomp.Parse(numero)

	f := domain.Fact{
		ClienteID:            meta.ClienteID,
		EmpresaID:            meta.EmpresaID,
		NomeEmpresa:          meta.NomeEmpresa,
		CNPJ:                 meta.CNPJ,
		PerdcompNumero:       digits,
		Situacao:             rec.Situacao,
		SituacaoDetalhamento: rec.SituacaoDetalhamento,
		MotivoNormalizado:    string(perdcomp.NormalizaMotivo(rec.Situacao, rec.SituacaoDetalhamento)),
		Solicitante:          rec.Solicitante,
		Valor:                NormalizeValor(rec.Valor),
		Fonte:                meta.Fonte,
		DataConsulta:         meta.DataConsultaISO,
		URLComprovanteHTML:   meta.URLComprovanteHTML,
		InsertedAt:           now.UTC().Format(time.RFC3339),
		ConsultaID:           meta.ConsultaID,
		Version:              "1",
		DeletedFlag:          "false",
	}

	if parsed.Valido {
		f.PerdcompFormatado = parsed.Formatted
		f.B1 = parsed.Sequencia
		f.B2 = parsed.Controle
		f.DataDDMMAA = parsed.DataDDMMAA
		f.DataISO = parsed.DataISO
		f.TipoCodigo = strconv.Itoa(parsed.TipoCodigo)
		f.TipoNome = perdcomp.TipoDocumentoDescricao(parsed.TipoCodigo)
		f.Natureza = parsed.Natureza
		f.CreditoCodigo = parsed.Credito
		f.Protocolo = parsed.Protocolo
	} else {
		f.PerdcompFormatado = perdcomp.Format(numero)
		f.DataISO = rec.DataISO
		f.TipoCodigo = rec.TipoCodigo
		f.TipoNome = rec.TipoNome
		f.Natureza = rec.Natureza
		f.CreditoCodigo = rec.CreditoCodigo
		f.Protocolo = rec.Protocolo
	}
	if f.TipoNome == "" && f.TipoCodigo != "" {
		if n, err := strconv.Atoi(f.TipoCodigo); err == nil {
			f.TipoNome = perdcomp.TipoDocumentoDescricao(n)
		}
	}
	if f.DataISO == "" && rec.DataTransmissao != "" {
		f.DataISO = rec.DataTransmissao
	}

	tipoDigit, _ := strconv.Atoi(f.TipoCodigo)
	f.Familia = string(perdcomp.FamiliaPorNatureza(f.Natureza, tipoDigit))
	f.CreditoDescricao = perdcomp.CreditoDescricao(f.CreditoCodigo)
	// Risk stays caller-supplied. Credit-table risk hints belong to the card
	// enrichment layer, not the stored fact.
	f.RiscoNivel = rec.RiscoNivel

	f.RowHash = rowHash(f, rec)
	return f
}

// rowHash computes the fact's stable content hash. Identified documents hash
// the ordered tuple (number, type, nature, credit, date, value); anonymous
// records hash the full raw record with keys sorted, so field order never
// changes the result.
func rowHash(f domain.Fact, rec domain.ProviderRecord) string {
	if f.PerdcompNumero != "" || f.Protocolo != "" {
		tuple := strings.Join([]string{
			f.PerdcompNumero, f.TipoCodigo, f.Natureza, f.CreditoCodigo, f.DataISO, f.Valor,
		}, "|")
		return sha256Hex(tuple)
	}

	fields := map[string]string{
		"cnpj":                  rec.CNPJ,
		"solicitante":           rec.Solicitante,
		"tipo_documento":        rec.TipoDocumento,
		"tipo_credito":          rec.TipoCredito,
		"data_transmissao":      rec.DataTransmissao,
		"situacao":              rec.Situacao,
		"situacao_detalhamento": rec.SituacaoDetalhamento,
		"data_protocolo":        rec.DataProtocolo,
		"periodo_inicio":        rec.PeriodoInicio,
		"periodo_fim":           rec.PeriodoFim,
		"numero_processo":       rec.NumeroProcesso,
		"valor":                 rec.Valor,
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
		b.WriteByte('\n')
	}
	return sha256Hex(b.String())
}

func sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// NormalizeValor renders a monetary amount in canonical decimal form.
// Brazilian formatting (thousands dots, decimal comma, currency prefix) is
// stripped; values that still fail to parse pass through unchanged so no
// information is lost.
func NormalizeValor(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return raw
	}
	return d.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
