// Package infosimples calls the Infosimples Receita Federal PER/DCOMP
// consultation API.
package infosimples

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"

	"github.com/leadfisco/fiscaldesk/errs"
	"github.com/leadfisco/fiscaldesk/internal/domain"
	"github.com/leadfisco/fiscaldesk/internal/observability"
)

// DefaultBaseURL is the production consultation endpoint.
const DefaultBaseURL = "https://api.infosimples.com/api/v2/consultas/receita-federal/perdcomp"

// The provider treats 612 as "consultation succeeded, no documents found",
// so both codes are successful responses.
var successCodes = map[int]bool{200: true, 612: true}

// Config configures the client.
type Config struct {
	BaseURL string
	Token   string
	// Timeout caps one HTTP round trip. The provider itself is told to wait
	// up to 600s server-side, so this must be generous.
	Timeout time.Duration
	// MaxTries bounds attempts per consultation, first attempt included.
	MaxTries int
	// RetryInterval seeds the retry backoff.
	RetryInterval time.Duration
}

// Client is the Infosimples API client. Transient failures (network errors
// and 5xx statuses) are retried with exponential backoff.
type Client struct {
	http *http.Client
	cfg  Config
}

// New builds a client from cfg, filling defaults for unset fields.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 11 * time.Minute
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 1500 * time.Millisecond
	}
	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

type apiResponse struct {
	Code        int    `json:"code"`
	CodeMessage string `json:"code_message"`
	Header      struct {
		RequestedAt string `json:"requested_at"`
	} `json:"header"`
	Data []struct {
		Perdcomp []domain.ProviderRecord `json:"perdcomp"`
	} `json:"data"`
	MappedCount  *int     `json:"mapped_count"`
	SiteReceipts []string `json:"site_receipts"`
	Errors       []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Result is one successful consultation.
type Result struct {
	RequestedAt string
	Records     []domain.ProviderRecord
	MappedCount int
	SiteReceipt string
}

// Consultar fetches every PER/DCOMP document for a CNPJ inside the given
// ISO date window.
func (c *Client) Consultar(ctx context.Context, cnpj, dataInicio, dataFim string) (*Result, error) {
	if c.cfg.Token == "" {
		return nil, errs.New("infosimples", errs.CodeConfig,
			errs.WithMessage("provider token is not configured"))
	}

	form := url.Values{
		"token":       {c.cfg.Token},
		"cnpj":        {cnpj},
		"data_inicio": {dataInicio},
		"data_fim":    {dataFim},
		"timeout":     {"600"},
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = c.cfg.RetryInterval

	var resp *apiResponse
	var err error
	for attempt := 1; attempt <= c.cfg.MaxTries; attempt++ {
		resp, err = c.call(ctx, form)
		if err == nil {
			break
		}
		if !errs.Transient(err) || attempt == c.cfg.MaxTries {
			return nil, err
		}
		observability.Metrics().RecordProviderRetry(ctx)
		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	if err != nil {
		return nil, err
	}

	result := &Result{RequestedAt: resp.Header.RequestedAt}
	if resp.Code != 612 && len(resp.Data) > 0 {
		result.Records = resp.Data[0].Perdcomp
	}
	if resp.MappedCount != nil {
		result.MappedCount = *resp.MappedCount
	} else {
		result.MappedCount = len(result.Records)
	}
	if len(resp.SiteReceipts) > 0 {
		result.SiteReceipt = resp.SiteReceipts[0]
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, form url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errs.New("infosimples", errs.CodeInvalid, errs.WithCause(err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.New("infosimples", errs.CodeNetwork, errs.WithCause(err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errs.New("infosimples", errs.CodeNetwork, errs.WithCause(err))
	}

	var parsed apiResponse
	parseErr := json.Unmarshal(body, &parsed)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 || parseErr != nil ||
		!successCodes[parsed.Code] {
		opts := []errs.Option{errs.WithHTTP(httpResp.StatusCode)}
		if parsed.Code != 0 {
			opts = append(opts, errs.WithProviderCode(strconv.Itoa(parsed.Code)))
		}
		if msg := providerMessage(&parsed); msg != "" {
			opts = append(opts, errs.WithProviderMessage(msg))
		}
		observability.Audit(observability.AuditEvent{
			Name:    observability.EventProviderError,
			Message: providerMessage(&parsed),
		})
		return nil, errs.New("infosimples", errs.CodeProvider, opts...)
	}
	return &parsed, nil
}

func providerMessage(resp *apiResponse) string {
	if resp.CodeMessage != "" {
		return resp.CodeMessage
	}
	if len(resp.Errors) > 0 {
		return resp.Errors[0].Message
	}
	return ""
}
