package tabular

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/leadfisco/fiscaldesk/errs"
	"github.com/leadfisco/fiscaldesk/internal/observability"
)

// ResilientConfig tunes the resilient store decorator.
type ResilientConfig struct {
	// RequestsPerSecond throttles calls to the backend. Zero disables
	// throttling.
	RequestsPerSecond float64
	// Burst is the limiter burst size; it defaults to 1 when throttling is on.
	Burst int
	// MaxTries bounds attempts per call, first attempt included.
	MaxTries int
	// InitialInterval seeds the exponential backoff. Zero keeps the
	// library default.
	InitialInterval time.Duration
	// MaxInterval caps the backoff between attempts.
	MaxInterval time.Duration
}

// ResilientStore decorates a Store with client-side rate limiting and
// retry-with-backoff on transient failures. Non-transient errors are returned
// immediately.
type ResilientStore struct {
	inner    Store
	limiter  *rate.Limiter
	maxTries int
	initWait time.Duration
	maxWait  time.Duration
}

// NewResilientStore wraps inner with cfg's limits.
func NewResilientStore(inner Store, cfg ResilientConfig) *ResilientStore {
	s := &ResilientStore{
		inner:    inner,
		maxTries: cfg.MaxTries,
		initWait: cfg.InitialInterval,
		maxWait:  cfg.MaxInterval,
	}
	if s.maxTries <= 0 {
		s.maxTries = 4
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s
}

func (s *ResilientStore) do(ctx context.Context, op string, call func() error) error {
	backoffCfg := backoff.NewExponentialBackOff()
	if s.initWait > 0 {
		backoffCfg.InitialInterval = s.initWait
	}
	if s.maxWait > 0 {
		backoffCfg.MaxInterval = s.maxWait
	}

	var err error
	for attempt := 1; attempt <= s.maxTries; attempt++ {
		if s.limiter != nil {
			if waitErr := s.limiter.Wait(ctx); waitErr != nil {
				return waitErr
			}
		}
		if err = call(); err == nil {
			return nil
		}
		if !errs.Transient(err) || attempt == s.maxTries {
			return err
		}

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			return err
		}
		observability.Log().Warn("tabular call retrying",
			observability.F("op", op),
			observability.F("attempt", attempt),
			observability.F("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return err
}

// ReadTable implements Store.
func (s *ResilientStore) ReadTable(ctx context.Context, table string) (*Table, error) {
	var out *Table
	err := s.do(ctx, "read_table", func() error {
		var callErr error
		out, callErr = s.inner.ReadTable(ctx, table)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendRows implements Store.
func (s *ResilientStore) AppendRows(ctx context.Context, table string, rows [][]string) error {
	return s.do(ctx, "append_rows", func() error {
		return s.inner.AppendRows(ctx, table, rows)
	})
}

// UpdateCells implements Store.
func (s *ResilientStore) UpdateCells(ctx context.Context, table string, updates []CellUpdate) error {
	return s.do(ctx, "update_cells", func() error {
		return s.inner.UpdateCells(ctx, table, updates)
	})
}
