package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
)

// Service is the inbound contract used by the HTTP layer.
type Service interface {
	Notifications(ctx context.Context, req Request) (*models.Response, error)
	Invoke(ctx context.Context, req Request, id models.Identifier, action models.ActionKind) (InvokeResult, error)
	Refresh(user string)
}

type InvokeResult struct {
	Redirect string `json:"redirect,omitempty"`
}

type PipelineConfig struct {
	Name            string
	ProviderTimeout time.Duration
	MaxConcurrency  int
	Cache           CacheConfig
	// HideDuration is how long a hidden entry stays hidden unless the entry
	// overrides it. Negative disables hiding.
	HideDuration time.Duration
	Predicates   []Predicate
	Sort         models.SortStrategy
	Now          func() time.Time
}

type service struct {
	head       Provider
	unfiltered Provider
	cache      *Cache
	overlays   map[models.ActionKind]*StateOverlay
	sort       models.SortStrategy
	hide       time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewPipeline assembles leaves into the full chain:
// filter -> completed -> hidden -> favorite -> read -> cache -> aggregator.
func NewPipeline(leaves []Provider, store StateStore, cfg PipelineConfig, logger zerolog.Logger) (Service, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if cfg.Name == "" {
		cfg.Name = "notifications"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	agg, err := NewAggregator(cfg.Name, leaves,
		WithTimeout(cfg.ProviderTimeout),
		WithMaxConcurrency(cfg.MaxConcurrency),
		WithLogger(logger),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build aggregator")
	}
	cache := NewCache(agg, cfg.Cache, logger)

	read := NewStateOverlay(cache, models.StateRead, models.ActionRead, store, cache, logger)
	favorite := NewStateOverlay(read, models.StateFavorite, models.ActionFavorite, store, cache, logger)
	hidden := NewStateOverlay(favorite, models.StateHidden, models.ActionHide, store, cache, logger,
		OfferActionWhen(func(e models.Entry) bool { return HideDuration(e, cfg.HideDuration) >= 0 }))
	completed := NewStateOverlay(hidden, models.StateCompleted, models.ActionComplete, store, cache, logger)

	predicates := append([]Predicate{NotHidden(now, cfg.HideDuration)}, cfg.Predicates...)

	return &service{
		head:       NewFilter(completed, predicates...),
		unfiltered: completed,
		cache:      cache,
		overlays: map[models.ActionKind]*StateOverlay{
			models.ActionRead:     read,
			models.ActionFavorite: favorite,
			models.ActionHide:     hidden,
			models.ActionComplete: completed,
		},
		sort:   cfg.Sort,
		hide:   cfg.HideDuration,
		now:    now,
		logger: logger.With().Str("component", "notification_service").Logger(),
	}, nil
}

func (s *service) Notifications(ctx context.Context, req Request) (*models.Response, error) {
	resp, err := s.head.Notifications(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Sort(s.sort), nil
}

// Invoke applies a user action to one entry. read, favorite and hide toggle
// their state; complete always sets it. Marking an entry with a URL as read
// returns the URL as the redirect target.
func (s *service) Invoke(ctx context.Context, req Request, id models.Identifier, action models.ActionKind) (InvokeResult, error) {
	overlay, ok := s.overlays[action]
	if !ok {
		return InvokeResult{}, errors.Wrapf(ErrUnknownAction, "%q", action)
	}

	resp, err := s.unfiltered.Notifications(ctx, req)
	if err != nil {
		return InvokeResult{}, err
	}
	entry, ok := resp.Find(id)
	if !ok {
		return InvokeResult{}, errors.Wrapf(ErrEntryNotFound, "%s", id)
	}
	if !entry.HasAction(action) {
		return InvokeResult{}, errors.Wrapf(ErrUnknownAction, "%q is not available on %s", action, id)
	}

	now := s.now()
	var at *time.Time
	switch action {
	case models.ActionComplete:
		at = &now
	case models.ActionHide:
		if NotHidden(s.now, s.hide)(req, entry) {
			at = &now
		}
	default:
		if _, set := entry.States[overlay.Kind()]; !set {
			at = &now
		}
	}

	if err := overlay.SetState(ctx, req.User, id, at); err != nil {
		s.logger.Error().Err(err).Str("user", req.User).Str("action", string(action)).Msg("failed to apply action")
		return InvokeResult{}, err
	}

	var result InvokeResult
	if action == models.ActionRead && at != nil && entry.URL != "" {
		result.Redirect = entry.URL
	}
	return result, nil
}

func (s *service) Refresh(user string) {
	s.cache.Invalidate(user)
}
