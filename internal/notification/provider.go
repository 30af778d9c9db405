package notification

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/stanstork/noticeboard/internal/models"
)

var (
	ErrNoProviders       = errors.New("no notification providers configured")
	ErrDuplicateProvider = errors.New("duplicate notification provider name")
	ErrInvalidRequest    = errors.New("invalid notification request")
	ErrUnknownAction     = errors.New("unknown notification action")
	ErrEntryNotFound     = errors.New("notification entry not found")
	ErrStateStore        = errors.New("notification state store failure")
)

// Provider is implemented by every source, decorator and aggregator.
//
// Notifications returns an error only when the provider itself cannot be
// invoked. Back-end failures are reported through Response.Errors so that
// partial results survive.
type Provider interface {
	Name() string
	Notifications(ctx context.Context, req Request) (*models.Response, error)
}

// Request identifies the user a fetch is performed for.
type Request struct {
	User   string
	Roles  []string
	Params map[string]string
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.User) == "" {
		return errors.Wrap(ErrInvalidRequest, "user is required")
	}
	return nil
}

// Param returns a request parameter, or "" when absent.
func (r Request) Param(name string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[name]
}

// ProviderFunc adapts a function to the Provider contract.
type ProviderFunc struct {
	ProviderName string
	Fetch        func(ctx context.Context, req Request) (*models.Response, error)
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Notifications(ctx context.Context, req Request) (*models.Response, error) {
	return p.Fetch(ctx, req)
}
