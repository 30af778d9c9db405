package notification

import (
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/stanstork/noticeboard/internal/config"
	"github.com/stanstork/noticeboard/internal/models"
)

// PipelineConfigFrom translates file configuration into pipeline settings,
// compiling the configured filters into predicates.
func PipelineConfigFrom(cfg config.PipelineConfig) (PipelineConfig, error) {
	out := PipelineConfig{
		Name:            cfg.Name,
		ProviderTimeout: cfg.ProviderTimeout,
		MaxConcurrency:  cfg.MaxConcurrency,
		Cache:           CacheConfig{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheMaxEntries},
		HideDuration:    cfg.HideDuration(),
		Sort:            models.SortStrategy(cfg.Sort),
	}

	f := cfg.Filters
	if f.MinimumPriority > 0 {
		out.Predicates = append(out.Predicates, MinimumPriority(f.MinimumPriority))
	}
	if f.MaximumPriority > 0 {
		out.Predicates = append(out.Predicates, MaximumPriority(f.MaximumPriority))
	}
	if f.TitleRegex != "" {
		re, err := regexp.Compile(f.TitleRegex)
		if err != nil {
			return PipelineConfig{}, errors.Wrap(err, "invalid title_regex")
		}
		out.Predicates = append(out.Predicates, TitleMatches(re))
	}
	if f.BodyRegex != "" {
		re, err := regexp.Compile(f.BodyRegex)
		if err != nil {
			return PipelineConfig{}, errors.Wrap(err, "invalid body_regex")
		}
		out.Predicates = append(out.Predicates, BodyMatches(re))
	}
	if f.RequiredRoleAttribute != "" {
		out.Predicates = append(out.Predicates, RequiredRole(f.RequiredRoleAttribute))
	}
	if f.DropExpired {
		out.Predicates = append(out.Predicates, NotExpired(time.Now))
	}
	return out, nil
}
