package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
	"golang.org/x/sync/errgroup"
)

const DefaultProviderTimeout = 10 * time.Second

// Aggregator fans a request out to its providers concurrently and merges the
// results in configuration order.
type Aggregator struct {
	name           string
	providers      []Provider
	timeout        time.Duration
	maxConcurrency int
	logger         zerolog.Logger
}

type AggregatorOption func(*Aggregator)

// WithTimeout bounds each provider fetch. Non-positive values keep the default.
func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMaxConcurrency limits how many providers run at once; 0 means no limit.
func WithMaxConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxConcurrency = n
		}
	}
}

func WithLogger(logger zerolog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func NewAggregator(name string, providers []Provider, opts ...AggregatorOption) (*Aggregator, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	seen := make(map[string]struct{}, len(providers))
	for i, p := range providers {
		if p == nil {
			return nil, errors.Errorf("provider %d is nil", i)
		}
		if _, dup := seen[p.Name()]; dup {
			return nil, errors.Wrapf(ErrDuplicateProvider, "%q", p.Name())
		}
		seen[p.Name()] = struct{}{}
	}

	a := &Aggregator{
		name:      name,
		providers: append([]Provider(nil), providers...),
		timeout:   DefaultProviderTimeout,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With().Str("component", "aggregator").Str("aggregator", name).Logger()
	return a, nil
}

func (a *Aggregator) Name() string {
	return a.name
}

func (a *Aggregator) Notifications(ctx context.Context, req Request) (*models.Response, error) {
	if len(a.providers) == 0 {
		return nil, ErrNoProviders
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	results := make([]*models.Response, len(a.providers))
	var g errgroup.Group
	if a.maxConcurrency > 0 {
		g.SetLimit(a.maxConcurrency)
	}
	for i, p := range a.providers {
		g.Go(func() error {
			results[i] = a.fetch(ctx, p, req)
			return nil
		})
	}
	_ = g.Wait()

	merged := models.EmptyResponse()
	for _, r := range results {
		merged.Categories = append(merged.Categories, r.Categories...)
		merged.Errors = append(merged.Errors, r.Errors...)
	}
	a.warnDuplicates(merged, req.User)
	return merged, nil
}

// fetch runs one provider under its own deadline. A result that arrives
// after the deadline lands in the buffered channel and is dropped.
func (a *Aggregator) fetch(ctx context.Context, p Provider, req Request) *models.Response {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan *models.Response, 1)
	go func() {
		done <- a.invoke(ctx, p, req)
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		msg := fmt.Sprintf("timed out after %s", a.timeout)
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "request cancelled"
		}
		a.logger.Warn().
			Str("provider", p.Name()).
			Str("user", req.User).
			Msg(msg)
		return models.ErrorResponse(p.Name(), msg)
	}
}

func (a *Aggregator) invoke(ctx context.Context, p Provider, req Request) (resp *models.Response) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("provider", p.Name()).
				Interface("panic", r).
				Msg("provider panicked")
			resp = models.ErrorResponse(p.Name(), fmt.Sprintf("provider failed: %v", r))
		}
	}()

	out, err := p.Notifications(ctx, req)
	if err != nil {
		a.logger.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed")
		return models.ErrorResponse(p.Name(), err.Error())
	}
	if out == nil {
		return models.EmptyResponse()
	}
	return out
}

func (a *Aggregator) warnDuplicates(resp *models.Response, user string) {
	seen := make(map[models.Identifier]struct{}, resp.Size())
	for _, c := range resp.Categories {
		for _, e := range c.Entries {
			if e.ID == "" {
				continue
			}
			if _, dup := seen[e.Identifier]; dup {
				a.logger.Warn().
					Str("source", e.Source).
					Str("id", e.ID).
					Str("user", user).
					Msg("duplicate notification identifier")
				continue
			}
			seen[e.Identifier] = struct{}{}
		}
	}
}
