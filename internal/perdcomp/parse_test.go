package perdcomp

import "testing"

func TestParseValidCode(t *testing.T) {
	got := Parse("12345.67890.010224.1.3.01-0001")

	if !got.Valido {
		t.Fatalf("Parse reported invalid: %+v", got)
	}
	if got.Formatted != "12345.67890.010224.1.3.01-0001" {
		t.Fatalf("unexpected formatted code: %q", got.Formatted)
	}
	if got.Sequencia != "12345" || got.Controle != "67890" {
		t.Fatalf("unexpected sequence/control: %q %q", got.Sequencia, got.Controle)
	}
	if got.DataISO != "2024-02-01" {
		t.Fatalf("unexpected ISO date: %q", got.DataISO)
	}
	if got.TipoCodigo != 1 {
		t.Fatalf("unexpected document type: %d", got.TipoCodigo)
	}
	if got.Natureza != "1.3" {
		t.Fatalf("unexpected nature: %q", got.Natureza)
	}
	if got.Credito != "01" {
		t.Fatalf("unexpected credit code: %q", got.Credito)
	}
	if got.Protocolo != "0001" {
		t.Fatalf("unexpected protocol: %q", got.Protocolo)
	}
}

func TestParseAcceptsBareDigits(t *testing.T) {
	got := Parse("123456789001022413010001")
	if !got.Valido {
		t.Fatalf("Parse reported invalid: %+v", got)
	}
	if got.Formatted != "12345.67890.010224.1.3.01-0001" {
		t.Fatalf("unexpected formatted code: %q", got.Formatted)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "23 digits", raw: "12345.67890.010224.1.3.01-001"},
		{name: "25 digits", raw: "12345.67890.010224.1.3.01-00012"},
		{name: "non numeric", raw: "ABCDE.67890.010224.1.3.01-0001"},
		{name: "empty", raw: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.raw)
			if got.Valido {
				t.Fatalf("Parse(%q) reported valid", tc.raw)
			}
			if got.Raw != tc.raw {
				t.Fatalf("Raw not preserved: %q", got.Raw)
			}
		})
	}
}

func TestFormatLeavesNon24DigitInputAlone(t *testing.T) {
	if got := Format("123"); got != "123" {
		t.Fatalf("Format mutated short input: %q", got)
	}
	if got := Format("abc"); got != "abc" {
		t.Fatalf("Format mutated non-numeric input: %q", got)
	}
}

func TestOnlyDigits(t *testing.T) {
	if got := OnlyDigits("12.345-6/78"); got != "12345678" {
		t.Fatalf("unexpected digits: %q", got)
	}
}
