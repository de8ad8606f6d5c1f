package fact

import (
	"strconv"

	"github.com/leadfisco/fiscaldesk/internal/domain"
)

// FilterResult is the outcome of one dedup pass.
type FilterResult struct {
	ToInsert []domain.Fact
	Skipped  int
}

// Key is the dedup identity of a fact: its document number (protocol when no
// number exists) joined with the content hash. Re-running the same provider
// response yields identical keys, which makes repeated persistence a no-op.
func Key(f domain.Fact) string {
	id := f.PerdcompNumero
	if id == "" {
		id = f.Protocolo
	}
	return id + "|" + f.RowHash
}

// Filter drops candidates whose key already exists in storage or earlier in
// the same batch. Accepted facts get their version set to one past the
// highest stored version for the same document.
func Filter(existing []domain.Fact, candidates []domain.Fact) FilterResult {
	seen := make(map[string]struct{}, len(existing))
	versions := make(map[string]int)
	for _, f := range existing {
		seen[Key(f)] = struct{}{}
		id := f.PerdcompNumero
		if id == "" {
			id = f.Protocolo
		}
		if v := parseVersion(f.Version); v > versions[id] {
			versions[id] = v
		}
	}

	var result FilterResult
	for _, candidate := range candidates {
		key := Key(candidate)
		if _, dup := seen[key]; dup {
			result.Skipped++
			continue
		}
		seen[key] = struct{}{}

		id := candidate.PerdcompNumero
		if id == "" {
			id = candidate.Protocolo
		}
		versions[id]++
		candidate.Version = strconv.Itoa(versions[id])
		result.ToInsert = append(result.ToInsert, candidate)
	}
	return result
}

func parseVersion(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
