// Package httpserver exposes HTTP handlers for triggering consultations and
// reading client snapshots.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/leadfisco/fiscaldesk/errs"
	"github.com/leadfisco/fiscaldesk/internal/domain"
	"github.com/leadfisco/fiscaldesk/internal/service"
)

const (
	maxJSONBodyBytes int64 = 1 << 20 // 1 MiB

	refreshPath    = "/perdecomp/refresh"
	snapshotPath   = "/perdecomp/snapshot"
	snapshotPrefix = snapshotPath + "/"
	healthPath     = "/healthz"
	eventsPath     = "/events"
)

type handlerFunc func(http.ResponseWriter, *http.Request)

// Refresher triggers one consultation and persists the outcome.
type Refresher interface {
	Run(ctx context.Context, req service.RefreshRequest) (*service.RefreshResult, error)
}

// SnapshotLoader reads one client's persisted snapshot.
type SnapshotLoader interface {
	Load(ctx context.Context, clienteID string) (*domain.SnapshotResult, error)
}

type httpServer struct {
	refresher Refresher
	loader    SnapshotLoader
	events    *EventsHub
}

type refreshPayload struct {
	ClienteID   string `json:"clienteId"`
	CNPJ        string `json:"cnpj"`
	NomeEmpresa string `json:"nomeEmpresa"`
	StartDate   string `json:"dataInicio"`
	EndDate     string `json:"dataFim"`
}

// NewHandler creates the HTTP handler for consultation and snapshot
// operations. The events hub may be nil, in which case the audit feed
// endpoint is not registered.
func NewHandler(refresher Refresher, loader SnapshotLoader, events *EventsHub) http.Handler {
	server := &httpServer{refresher: refresher, loader: loader, events: events}
	mux := http.NewServeMux()

	mux.Handle(refreshPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.refresh,
	}))
	mux.Handle(snapshotPrefix, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getSnapshot,
	}))
	mux.Handle(healthPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.health,
	}))

	if events != nil {
		mux.Handle(eventsPath, http.HandlerFunc(events.handleSubscribe))
	}

	return withCORS(mux)
}

func (s *httpServer) methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := allowedMethods(handlers)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		methodNotAllowed(w, allowed...)
	})
}

func allowedMethods(handlers map[string]handlerFunc) []string {
	if len(handlers) == 0 {
		return nil
	}
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return allowed
}

func (s *httpServer) refresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh service unavailable")
		return
	}
	limitRequestBody(w, r)
	payload, err := decodeRefreshPayload(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(payload.CNPJ) == "" {
		writeError(w, http.StatusBadRequest, "cnpj required")
		return
	}

	result, err := s.refresher.Run(r.Context(), service.RefreshRequest{
		ClienteID:   strings.TrimSpace(payload.ClienteID),
		CNPJ:        payload.CNPJ,
		NomeEmpresa: strings.TrimSpace(payload.NomeEmpresa),
		StartDate:   strings.TrimSpace(payload.StartDate),
		EndDate:     strings.TrimSpace(payload.EndDate),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *httpServer) getSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot store unavailable")
		return
	}
	clienteID := strings.Trim(strings.TrimPrefix(r.URL.Path, snapshotPrefix), "/")
	if clienteID == "" {
		writeError(w, http.StatusNotFound, "cliente id required")
		return
	}
	result, err := s.loader.Load(r.Context(), clienteID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *httpServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *httpServer) writeServiceError(w http.ResponseWriter, err error) {
	var e *errs.E
	if errors.As(err, &e) {
		writeError(w, statusForCode(e.Code), e.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func statusForCode(code errs.Code) int {
	switch code {
	case errs.CodeInvalid:
		return http.StatusBadRequest
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeRateLimited:
		return http.StatusTooManyRequests
	case errs.CodeProvider:
		return http.StatusBadGateway
	case errs.CodeNetwork, errs.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeRefreshPayload(r *http.Request) (refreshPayload, error) {
	defer func() {
		_ = r.Body.Close()
	}()
	var payload refreshPayload
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

func limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if isRequestTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func isRequestTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}

func withCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
