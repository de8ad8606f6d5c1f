package fact

import (
	"testing"
	"time"

	"github.com/leadfisco/fiscaldesk/internal/domain"
)

func TestFilterIsIdempotent(t *testing.T) {
	rec := domain.ProviderRecord{Perdcomp: "12345.67890.010224.1.3.18-9471"}
	candidate := Map(rec, testMeta, testNow)

	first := Filter(nil, []domain.Fact{candidate})
	if len(first.ToInsert) != 1 || first.Skipped != 0 {
		t.Fatalf("first pass: %d inserted, %d skipped", len(first.ToInsert), first.Skipped)
	}

	second := Filter(first.ToInsert, []domain.Fact{candidate})
	if len(second.ToInsert) != 0 || second.Skipped != 1 {
		t.Fatalf("re-run not a no-op: %d inserted, %d skipped", len(second.ToInsert), second.Skipped)
	}
}

func TestFilterGuardsWithinOneBatch(t *testing.T) {
	rec := domain.ProviderRecord{Perdcomp: "12345.67890.010224.1.3.18-9471"}
	candidate := Map(rec, testMeta, testNow)

	result := Filter(nil, []domain.Fact{candidate, candidate, candidate})
	if len(result.ToInsert) != 1 || result.Skipped != 2 {
		t.Fatalf("in-batch duplicates: %d inserted, %d skipped", len(result.ToInsert), result.Skipped)
	}
}

func TestFilterVersionsChangedDocuments(t *testing.T) {
	base := domain.ProviderRecord{Perdcomp: "12345.67890.010224.1.3.18-9471"}
	v1 := Map(base, testMeta, testNow)
	stored := Filter(nil, []domain.Fact{v1}).ToInsert
	if stored[0].Version != "1" {
		t.Fatalf("initial version = %q", stored[0].Version)
	}

	changed := base
	changed.Valor = "100"
	v2 := Map(changed, testMeta, testNow.Add(time.Hour))
	result := Filter(stored, []domain.Fact{v2})
	if len(result.ToInsert) != 1 {
		t.Fatalf("changed document skipped: %+v", result)
	}
	if result.ToInsert[0].Version != "2" {
		t.Fatalf("version = %q, want 2", result.ToInsert[0].Version)
	}
}

func TestFilterUsesProtocoloWhenNumeroMissing(t *testing.T) {
	f := domain.Fact{Protocolo: "555", RowHash: "abc"}
	if got := Key(f); got != "555|abc" {
		t.Fatalf("key = %q", got)
	}
}
