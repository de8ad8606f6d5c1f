package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/leadfisco/fiscaldesk/errs"
	"github.com/leadfisco/fiscaldesk/internal/domain"
	"github.com/leadfisco/fiscaldesk/internal/service"
)

type stubRefresher struct {
	got    service.RefreshRequest
	result *service.RefreshResult
	err    error
}

func (s *stubRefresher) Run(_ context.Context, req service.RefreshRequest) (*service.RefreshResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubLoader struct {
	gotID  string
	result *domain.SnapshotResult
	err    error
}

func (s *stubLoader) Load(_ context.Context, clienteID string) (*domain.SnapshotResult, error) {
	s.gotID = clienteID
	return s.result, s.err
}

func TestRefreshEndpoint(t *testing.T) {
	refresher := &stubRefresher{result: &service.RefreshResult{
		ClienteID:  "CLT-0001",
		ConsultaID: "consulta-1",
		Inserted:   3,
	}}
	srv := httptest.NewServer(NewHandler(refresher, &stubLoader{}, nil))
	defer srv.Close()

	body := `{"cnpj": "12.345.678/0001-95", "nomeEmpresa": "Acme", "dataInicio": "2020-01-01"}`
	resp, err := http.Post(srv.URL+"/perdecomp/refresh", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if refresher.got.CNPJ != "12.345.678/0001-95" || refresher.got.StartDate != "2020-01-01" {
		t.Fatalf("request = %+v", refresher.got)
	}

	var result service.RefreshResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.ClienteID != "CLT-0001" || result.Inserted != 3 {
		t.Fatalf("result = %+v", result)
	}
}

func TestRefreshRequiresCNPJ(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&stubRefresher{}, &stubLoader{}, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/perdecomp/refresh", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRefreshRejectsBadJSON(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&stubRefresher{}, &stubLoader{}, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/perdecomp/refresh", "application/json", strings.NewReader(`{`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRefreshMapsErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", errs.New("service", errs.CodeInvalid), http.StatusBadRequest},
		{"provider", errs.New("service", errs.CodeProvider), http.StatusBadGateway},
		{"rate_limited", errs.New("service", errs.CodeRateLimited), http.StatusTooManyRequests},
		{"network", errs.New("service", errs.CodeNetwork), http.StatusServiceUnavailable},
		{"config", errs.New("service", errs.CodeConfig), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(NewHandler(&stubRefresher{err: tc.err}, &stubLoader{}, nil))
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/perdecomp/refresh", "application/json",
				strings.NewReader(`{"cnpj": "12345678000195"}`))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	loader := &stubLoader{result: &domain.SnapshotResult{
		Metadata: domain.SnapshotMetadata{ClienteID: "CLT-0042", QtdTotal: 7},
	}}
	srv := httptest.NewServer(NewHandler(&stubRefresher{}, loader, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/perdecomp/snapshot/CLT-0042")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if loader.gotID != "CLT-0042" {
		t.Fatalf("cliente id = %q", loader.gotID)
	}

	var result domain.SnapshotResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Metadata.QtdTotal != 7 {
		t.Fatalf("metadata = %+v", result.Metadata)
	}
}

func TestSnapshotNotFound(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&stubRefresher{}, &stubLoader{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/perdecomp/snapshot/CLT-9999")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSnapshotRequiresClienteID(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&stubRefresher{}, &stubLoader{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/perdecomp/snapshot/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&stubRefresher{}, &stubLoader{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/perdecomp/refresh")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodPost {
		t.Fatalf("allow header = %q", allow)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&stubRefresher{}, &stubLoader{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
