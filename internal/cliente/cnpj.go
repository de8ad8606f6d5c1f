// Package cliente resolves and allocates client entity identifiers.
package cliente

import (
	"regexp"
	"strings"

	"github.com/leadfisco/fiscaldesk/errs"
)

var cnpjNonDigits = regexp.MustCompile(`\D`)

// CNPJDigits strips every non-digit rune from a CNPJ string.
func CNPJDigits(raw string) string {
	return cnpjNonDigits.ReplaceAllString(raw, "")
}

// PadCNPJ normalizes a CNPJ to its canonical 14-digit form, left-padding
// shorter inputs with zeros. Inputs longer than 14 digits are rejected.
func PadCNPJ(raw string) (string, error) {
	digits := CNPJDigits(raw)
	if digits == "" {
		return "", errs.New("cliente", errs.CodeInvalid, errs.WithMessage("cnpj is empty"))
	}
	if len(digits) > 14 {
		return "", errs.New("cliente", errs.CodeInvalid, errs.WithMessage("cnpj has more than 14 digits"))
	}
	return strings.Repeat("0", 14-len(digits)) + digits, nil
}
