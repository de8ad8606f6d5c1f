package perdcomp

import "testing"

func TestFamiliaPorNatureza(t *testing.T) {
	tests := []struct {
		natureza string
		tipo     int
		want     Familia
	}{
		{natureza: "1.3", tipo: 0, want: FamiliaDCOMP},
		{natureza: "1.2", tipo: 0, want: FamiliaREST},
		{natureza: "1.5", tipo: 0, want: FamiliaRESSARC},
		{natureza: "1.8", tipo: 0, want: FamiliaCANC},
		{natureza: "1.4", tipo: 1, want: FamiliaDCOMP},
		{natureza: "1.4", tipo: 2, want: FamiliaREST},
		{natureza: "1.4", tipo: 8, want: FamiliaCANC},
		{natureza: "1.4", tipo: 7, want: FamiliaDesconhecido},
		{natureza: "", tipo: 0, want: FamiliaDesconhecido},
	}

	for _, tc := range tests {
		if got := FamiliaPorNatureza(tc.natureza, tc.tipo); got != tc.want {
			t.Errorf("FamiliaPorNatureza(%q, %d) = %q, want %q", tc.natureza, tc.tipo, got, tc.want)
		}
	}
}

func TestCreditoLookups(t *testing.T) {
	if got := CreditoDescricao("01"); got != "Ressarcimento de IPI" {
		t.Fatalf("unexpected description: %q", got)
	}
	if got := CreditoDescricao("99"); got != "" {
		t.Fatalf("unknown code yielded description %q", got)
	}
	if got := CreditoCategoria("19"); got != "PIS/Cofins" {
		t.Fatalf("unexpected category: %q", got)
	}
	if got := CreditoRisco("01"); got != RiscoBaixo {
		t.Fatalf("unexpected risk: %q", got)
	}
	if got := CreditoRisco("24"); got != RiscoMedio {
		t.Fatalf("unexpected risk: %q", got)
	}
	if got := CreditoRisco("57"); got != RiscoAlto {
		t.Fatalf("unexpected risk: %q", got)
	}
}

func TestCreditoRecomendacaoFlagsGenericCodes(t *testing.T) {
	for _, codigo := range []string{"03", "16", "18", "25", "57"} {
		rec := CreditoRecomendacao(codigo)
		if rec.Texto == "" || !rec.Generica {
			t.Errorf("code %s: expected generic recommendation, got %+v", codigo, rec)
		}
	}
	rec := CreditoRecomendacao("01")
	if rec.Texto == "" || rec.Generica {
		t.Fatalf("code 01: expected specific recommendation, got %+v", rec)
	}
}

func TestTipoDocumento(t *testing.T) {
	if got := TipoDocumentoNome(1); got != "DCOMP" {
		t.Fatalf("unexpected name: %q", got)
	}
	if got := TipoDocumentoDescricao(8); got != "Pedido de Cancelamento" {
		t.Fatalf("unexpected description: %q", got)
	}
	if got := TipoDocumentoNome(9); got != "" {
		t.Fatalf("unknown type yielded name %q", got)
	}
}
