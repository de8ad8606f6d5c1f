package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *E
		want []string
	}{
		{
			name: "full envelope",
			err: New("provider/infosimples", CodeProvider,
				WithHTTP(502),
				WithMessage("provider_error"),
				WithProviderCode("615"),
				WithProviderMessage("consulta indisponível"),
			),
			want: []string{
				"scope=provider/infosimples",
				"code=provider_error",
				"http=502",
				`provider_code="615"`,
			},
		},
		{
			name: "minimal",
			err:  New("tabular/read", CodeNetwork),
			want: []string{"scope=tabular/read", "code=network"},
		},
		{
			name: "nil receiver",
			err:  nil,
			want: []string{"<nil>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, fragment := range tt.want {
				if !strings.Contains(got, fragment) {
					t.Errorf("Error() = %q, missing %q", got, fragment)
				}
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := New("tabular/append", CodeNetwork, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the cause")
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", New("tabular/read", CodeRateLimited), true},
		{"network", New("tabular/read", CodeNetwork), true},
		{"unavailable", New("provider", CodeUnavailable), true},
		{"http 429", New("tabular/read", CodeInvalid, WithHTTP(429)), true},
		{"http 503", New("provider", CodeProvider, WithHTTP(503)), true},
		{"http 400", New("provider", CodeProvider, WithHTTP(400)), false},
		{"config error", New("snapshot", CodeConfig), false},
		{"wrapped", fmt.Errorf("outer: %w", New("tabular/read", CodeNetwork)), true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New("x", CodeResolution)); got != CodeResolution {
		t.Errorf("CodeOf() = %q, want %q", got, CodeResolution)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}
