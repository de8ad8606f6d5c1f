package cliente

import (
	"errors"
	"testing"

	"github.com/leadfisco/fiscaldesk/errs"
)

func TestPadCNPJ(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "formatted", raw: "12.345.678/0001-95", want: "12345678000195"},
		{name: "short pads left", raw: "95", want: "00000000000095"},
		{name: "already canonical", raw: "12345678000195", want: "12345678000195"},
		{name: "too long", raw: "123456780001951", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "no digits", raw: "abc", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PadCNPJ(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if errs.CodeOf(err) != errs.CodeInvalid {
					t.Fatalf("unexpected code: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("PadCNPJ(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestResolveAllocatesAfterHighestSuffix(t *testing.T) {
	existentes := []Registro{
		{ClienteID: "CLT-0001", CNPJ: "00000000000001"},
		{ClienteID: "CLT-0556", CNPJ: "00000000000002"},
		{ClienteID: "invalid", CNPJ: "00000000000003"},
		{ClienteID: "CLT-0099", CNPJ: "00000000000004"},
	}

	r := NewResolver(nil)
	got, err := r.Resolve("", "99999999999999", existentes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "CLT-0557" {
		t.Fatalf("allocated %q, want CLT-0557", got)
	}
}

func TestResolveEmptyRegistryStartsAtOne(t *testing.T) {
	r := NewResolver(nil)
	got, err := r.Resolve("", "99999999999999", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "CLT-0001" {
		t.Fatalf("allocated %q, want CLT-0001", got)
	}
}

func TestResolvePrefersProvidedID(t *testing.T) {
	r := NewResolver(nil)
	got, err := r.Resolve("CLT-0042", "12345678000195", []Registro{
		{ClienteID: "CLT-0007", CNPJ: "12345678000195"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "CLT-0042" {
		t.Fatalf("resolved %q, want provided CLT-0042", got)
	}
}

func TestResolveRejectsMalformedProvidedID(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve("client-7", "12345678000195", nil)
	if err == nil {
		t.Fatal("expected error for malformed id")
	}
	var e *errs.E
	if !errors.As(err, &e) || e.Code != errs.CodeInvalid {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveMatchesByCNPJDigits(t *testing.T) {
	existentes := []Registro{
		{ClienteID: "CLT-0007", CNPJ: "12.345.678/0001-95"},
	}
	r := NewResolver(nil)
	got, err := r.Resolve("", "12345678000195", existentes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "CLT-0007" {
		t.Fatalf("resolved %q, want CLT-0007", got)
	}
}

func TestResolveProvidedIDAdvancesSequence(t *testing.T) {
	r := NewResolver(nil)
	if _, err := r.Resolve("CLT-0100", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := r.Resolve("", "99999999999999", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "CLT-0101" {
		t.Fatalf("allocated %q, want CLT-0101", got)
	}
}
