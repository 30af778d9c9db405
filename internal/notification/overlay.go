package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
)

// StateStore persists per-user state transitions keyed by identifier.
type StateStore interface {
	GetState(ctx context.Context, user string, id models.Identifier) (map[models.StateKind]time.Time, error)
	SetState(ctx context.Context, user string, id models.Identifier, kind models.StateKind, at *time.Time) error
}

// StateOverlay joins one state dimension from the store onto fetched
// entries. The enclosed response is never modified.
type StateOverlay struct {
	enclosed    Provider
	kind        models.StateKind
	action      models.ActionKind
	store       StateStore
	invalidator Invalidator
	offer       func(models.Entry) bool
	logger      zerolog.Logger
}

type OverlayOption func(*StateOverlay)

// OfferActionWhen restricts which entries get the overlay's action.
func OfferActionWhen(fn func(models.Entry) bool) OverlayOption {
	return func(o *StateOverlay) {
		o.offer = fn
	}
}

func NewStateOverlay(enclosed Provider, kind models.StateKind, action models.ActionKind, store StateStore, invalidator Invalidator, logger zerolog.Logger, opts ...OverlayOption) *StateOverlay {
	o := &StateOverlay{
		enclosed:    enclosed,
		kind:        kind,
		action:      action,
		store:       store,
		invalidator: invalidator,
		offer:       func(models.Entry) bool { return true },
		logger:      logger.With().Str("component", "state_overlay").Str("state", string(kind)).Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *StateOverlay) Name() string {
	return o.enclosed.Name()
}

func (o *StateOverlay) Kind() models.StateKind {
	return o.kind
}

func (o *StateOverlay) Action() models.ActionKind {
	return o.action
}

func (o *StateOverlay) Notifications(ctx context.Context, req Request) (*models.Response, error) {
	resp, err := o.enclosed.Notifications(ctx, req)
	if err != nil {
		return nil, err
	}

	out := resp.Clone()
	lookups := true
	for ci := range out.Categories {
		entries := out.Categories[ci].Entries
		for ei := range entries {
			entry := &entries[ei]
			if entry.ID == "" {
				continue
			}
			if o.offer(*entry) && !entry.HasAction(o.action) {
				entry.AvailableActions = append(entry.AvailableActions, o.action)
			}
			if !lookups {
				continue
			}
			states, err := o.store.GetState(ctx, req.User, entry.Identifier)
			if err != nil {
				o.logger.Warn().
					Err(err).
					Str("user", req.User).
					Str("notification", entry.Identifier.String()).
					Msg("state lookup failed, treating remaining entries as having no state")
				lookups = false
				continue
			}
			if at, ok := states[o.kind]; ok {
				if entry.States == nil {
					entry.States = make(map[models.StateKind]time.Time, 1)
				}
				entry.States[o.kind] = at
			}
		}
	}
	return out, nil
}

// SetState writes through to the store and drops the user's cached
// responses. A nil at unsets the state.
func (o *StateOverlay) SetState(ctx context.Context, user string, id models.Identifier, at *time.Time) error {
	if err := o.store.SetState(ctx, user, id, o.kind, at); err != nil {
		return errors.Wrapf(ErrStateStore, "set %s on %s: %v", o.kind, id, err)
	}
	if o.invalidator != nil {
		o.invalidator.Invalidate(user)
	}
	o.logger.Debug().
		Str("user", user).
		Str("notification", id.String()).
		Bool("set", at != nil).
		Msg("state changed")
	return nil
}
