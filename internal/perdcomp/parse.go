// Package perdcomp decodes and classifies PER/DCOMP document codes.
//
// A PER/DCOMP identifier is a 24-digit code grouped as
// AAAAA.BBBBB.DDMMAA.T.N.CC-PPPP: a 5-digit sequence, 5-digit control block,
// transmission date, document-type digit, nature digit, 2-digit credit code,
// and a 4-digit protocol suffix.
package perdcomp

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsed holds the decoded fields of a PER/DCOMP code. Invalid input is a
// normal return value (Valido=false), never an error.
type Parsed struct {
	Valido     bool
	Raw        string
	Formatted  string
	Sequencia  string
	Controle   string
	DataDDMMAA string
	DataISO    string
	TipoCodigo int
	Natureza   string
	Credito    string
	Protocolo  string
}

var (
	nonDigits   = regexp.MustCompile(`\D`)
	codePattern = regexp.MustCompile(`^(\d{5})\.(\d{5})\.(\d{6})\.(\d)\.(\d)\.(\d{2})-(\d{4})$`)
)

// OnlyDigits strips every non-digit rune from the input.
func OnlyDigits(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// Format renders the dotted representation of a 24-digit code. Anything that
// does not clean to exactly 24 digits is returned unchanged, which makes the
// subsequent Parse fail in the normal Valido=false way.
func Format(raw string) string {
	d := OnlyDigits(raw)
	if len(d) != 24 {
		return raw
	}
	var b strings.Builder
	b.Grow(29)
	b.WriteString(d[0:5])
	b.WriteByte('.')
	b.WriteString(d[5:10])
	b.WriteByte('.')
	b.WriteString(d[10:16])
	b.WriteByte('.')
	b.WriteString(d[16:17])
	b.WriteByte('.')
	b.WriteString(d[17:18])
	b.WriteByte('.')
	b.WriteString(d[18:20])
	b.WriteByte('-')
	b.WriteString(d[20:24])
	return b.String()
}

// Parse decodes a PER/DCOMP code into its structured fields.
func Parse(raw string) Parsed {
	formatted := Format(raw)
	match := codePattern.FindStringSubmatch(formatted)
	if match == nil {
		return Parsed{Valido: false, Raw: raw}
	}

	ddmmaa := match[3]
	dataISO := "20" + ddmmaa[4:6] + "-" + ddmmaa[2:4] + "-" + ddmmaa[0:2]
	tipo, _ := strconv.Atoi(match[4])

	return Parsed{
		Valido:     true,
		Raw:        raw,
		Formatted:  formatted,
		Sequencia:  match[1],
		Controle:   match[2],
		DataDDMMAA: ddmmaa,
		DataISO:    dataISO,
		TipoCodigo: tipo,
		Natureza:   "1." + match[5],
		Credito:    match[6],
		Protocolo:  match[7],
	}
}
