package notification

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stanstork/noticeboard/internal/models"
)

// HideDurationAttribute lets an entry override the configured hide duration,
// in hours. A negative value disables hiding for the entry.
const HideDurationAttribute = "hideDurationHours"

// Predicate reports whether an entry should be kept.
type Predicate func(req Request, entry models.Entry) bool

// Filter drops entries failing any of its predicates. It runs after the
// enclosed provider, so a cache underneath always holds the unfiltered set.
type Filter struct {
	enclosed   Provider
	predicates []Predicate
}

func NewFilter(enclosed Provider, predicates ...Predicate) *Filter {
	return &Filter{enclosed: enclosed, predicates: predicates}
}

func (f *Filter) Name() string {
	return f.enclosed.Name()
}

func (f *Filter) Notifications(ctx context.Context, req Request) (*models.Response, error) {
	resp, err := f.enclosed.Notifications(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(f.predicates) == 0 {
		return resp.Clone(), nil
	}
	return resp.Filter(func(e models.Entry) bool {
		for _, keep := range f.predicates {
			if !keep(req, e) {
				return false
			}
		}
		return true
	}), nil
}

// MinimumPriority keeps entries at least as urgent as limit. Lower numbers
// are more urgent; unspecified priority (0) never passes.
func MinimumPriority(limit int) Predicate {
	return func(_ Request, e models.Entry) bool {
		return e.Priority > 0 && e.Priority <= limit
	}
}

// MaximumPriority keeps entries no more urgent than limit. Entries with
// unspecified priority (0) always pass.
func MaximumPriority(limit int) Predicate {
	return func(_ Request, e models.Entry) bool {
		return e.Priority == 0 || e.Priority >= limit
	}
}

// RequiredRole keeps entries whose attribute lists a role the user holds.
// Entries without the attribute are visible to everyone.
func RequiredRole(attribute string) Predicate {
	return func(req Request, e models.Entry) bool {
		required, ok := e.Attributes.Get(attribute)
		if !ok || len(required) == 0 {
			return true
		}
		for _, want := range required {
			for _, have := range req.Roles {
				if strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(have)) {
					return true
				}
			}
		}
		return false
	}
}

func TitleMatches(re *regexp.Regexp) Predicate {
	return func(_ Request, e models.Entry) bool {
		return re.MatchString(e.Title)
	}
}

func BodyMatches(re *regexp.Regexp) Predicate {
	return func(_ Request, e models.Entry) bool {
		return re.MatchString(e.Body)
	}
}

// NotExpired drops entries whose due date has passed.
func NotExpired(now func() time.Time) Predicate {
	return func(_ Request, e models.Entry) bool {
		return e.DueDate == nil || e.DueDate.After(now())
	}
}

// NotHidden drops entries hidden within their hide duration.
func NotHidden(now func() time.Time, defaultDuration time.Duration) Predicate {
	return func(_ Request, e models.Entry) bool {
		hiddenAt, ok := e.States[models.StateHidden]
		if !ok {
			return true
		}
		d := HideDuration(e, defaultDuration)
		if d < 0 {
			return true
		}
		return !hiddenAt.Add(d).After(now())
	}
}

// HideDuration resolves the hide duration for an entry, preferring its
// hideDurationHours attribute over the configured default.
func HideDuration(e models.Entry, defaultDuration time.Duration) time.Duration {
	if raw := e.Attributes.First(HideDurationAttribute); raw != "" {
		if hours, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			if hours < 0 {
				return -1
			}
			return time.Duration(hours) * time.Hour
		}
	}
	return defaultDuration
}
