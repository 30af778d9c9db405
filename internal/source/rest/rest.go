package rest

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
	"github.com/stanstork/noticeboard/internal/notification"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	Name     string
	URLs     []string
	Username string
	Password string
	Timeout  time.Duration
	// Params are added to every request's query string. Values may use the
	// {user} placeholder. Request parameters are not substituted because
	// responses are cached per user only.
	Params     map[string]string
	RetryCount int
	RetryWait  time.Duration
}

// Provider reads notification responses from JSON endpoints and combines
// them in URL order.
type Provider struct {
	name   string
	urls   []string
	params map[string]string
	client *resty.Client
	logger zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) (*Provider, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("rest source requires a name")
	}
	if len(cfg.URLs) == 0 {
		return nil, errors.Errorf("rest source %q requires at least one url", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.RetryWait > 0 {
		client.SetRetryWaitTime(cfg.RetryWait).SetRetryMaxWaitTime(4 * cfg.RetryWait)
	}
	if cfg.Username != "" {
		client.SetBasicAuth(cfg.Username, cfg.Password)
	}

	return &Provider{
		name:   cfg.Name,
		urls:   append([]string(nil), cfg.URLs...),
		params: cfg.Params,
		client: client,
		logger: logger.With().Str("component", "rest_source").Str("source", cfg.Name).Logger(),
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Notifications(ctx context.Context, req notification.Request) (*models.Response, error) {
	combined := models.EmptyResponse()
	failed := false
	for _, raw := range p.urls {
		resp, err := p.fetch(ctx, expand(raw, req.User, url.PathEscape), req.User)
		if err != nil {
			p.logger.Warn().Err(err).Str("url", raw).Str("user", req.User).Msg("failed to fetch notifications")
			failed = true
			continue
		}
		combined = combined.Combine(resp)
	}
	if failed {
		combined.Errors = append(combined.Errors, models.Error{Message: "Service Unavailable", Source: p.name})
	}
	return combined, nil
}

func (p *Provider) fetch(ctx context.Context, target, user string) (*models.Response, error) {
	r := p.client.R().
		SetContext(ctx).
		SetResult(&models.Response{})
	for k, v := range p.params {
		r.SetQueryParam(k, expand(v, user, func(s string) string { return s }))
	}

	res, err := r.Get(target)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", target)
	}
	if res.IsError() {
		return nil, errors.Errorf("GET %s: unexpected status %d", target, res.StatusCode())
	}
	out, ok := res.Result().(*models.Response)
	if !ok || out == nil {
		return nil, errors.Errorf("GET %s: empty response", target)
	}

	for ci := range out.Categories {
		for ei := range out.Categories[ci].Entries {
			entry := &out.Categories[ci].Entries[ei]
			if entry.Source == "" {
				entry.Source = p.name
			}
			// state is never taken from a back-end
			entry.States = nil
		}
	}
	return out, nil
}

// expand replaces the {user} placeholder.
func expand(template, user string, escape func(string) string) string {
	return strings.ReplaceAll(template, "{user}", escape(user))
}
