package cliente

import (
	"regexp"
	"strconv"

	"github.com/leadfisco/fiscaldesk/errs"
)

// idPattern matches canonical client identifiers: CLT- followed by at least
// four digits.
var idPattern = regexp.MustCompile(`^CLT-\d{4,}$`)

// ValidID reports whether id is a canonical client identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Registro is one known client row used during resolution: its identifier
// and the CNPJ it was registered under.
type Registro struct {
	ClienteID string
	CNPJ      string
}

// Resolver maps an incoming request onto a stable client identifier. A valid
// provided identifier always wins; otherwise the CNPJ is matched against the
// known registry, and only when both miss is a fresh identifier allocated.
type Resolver struct {
	seq *Sequence
}

// NewResolver builds a resolver around the given sequence.
func NewResolver(seq *Sequence) *Resolver {
	if seq == nil {
		seq = NewSequence()
	}
	return &Resolver{seq: seq}
}

// Resolve determines the client identifier for a persist call.
//
// A non-empty providedID must match the canonical pattern; anything else is an
// invalid_request error so the caller can abort before writing rows under a
// corrupt key. Allocation is deterministic: the next identifier is one past
// the highest numeric suffix found in existentes, zero-padded to at least
// four digits, CLT-0001 for an empty registry.
func (r *Resolver) Resolve(providedID, cnpj string, existentes []Registro) (string, error) {
	max := 0
	for _, reg := range existentes {
		if n, ok := suffixOf(reg.ClienteID); ok && n > max {
			max = n
		}
	}
	r.seq.SyncFrom(max)

	if providedID != "" {
		if !ValidID(providedID) {
			return "", errs.New("cliente", errs.CodeInvalid,
				errs.WithMessage("cliente id does not match CLT-NNNN pattern"))
		}
		if n, ok := suffixOf(providedID); ok {
			r.seq.SyncFrom(n)
		}
		return providedID, nil
	}

	if digits := CNPJDigits(cnpj); digits != "" {
		for _, reg := range existentes {
			if CNPJDigits(reg.CNPJ) == digits && ValidID(reg.ClienteID) {
				return reg.ClienteID, nil
			}
		}
	}

	return r.seq.Next(), nil
}

func suffixOf(id string) (int, bool) {
	if !ValidID(id) {
		return 0, false
	}
	n, err := strconv.Atoi(id[len("CLT-"):])
	if err != nil {
		return 0, false
	}
	return n, true
}
