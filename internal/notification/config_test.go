package notification

import (
	"testing"
	"time"

	"github.com/stanstork/noticeboard/internal/config"
)

func TestPipelineConfigFrom(t *testing.T) {
	cfg, err := PipelineConfigFrom(config.PipelineConfig{
		Name:              "portal",
		ProviderTimeout:   2 * time.Second,
		CacheTTL:          time.Minute,
		CacheMaxEntries:   50,
		HideDurationHours: 48,
		Sort:              "priority",
		Filters: config.FilterConfig{
			MinimumPriority:       3,
			TitleRegex:            "^Grade",
			RequiredRoleAttribute: "requiredRole",
			DropExpired:           true,
		},
	})
	if err != nil {
		t.Fatalf("PipelineConfigFrom: %v", err)
	}
	if len(cfg.Predicates) != 4 {
		t.Fatalf("got %d predicates, want 4", len(cfg.Predicates))
	}
	if cfg.HideDuration != 48*time.Hour || cfg.Cache.MaxEntries != 50 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestPipelineConfigFromRejectsBadRegex(t *testing.T) {
	_, err := PipelineConfigFrom(config.PipelineConfig{
		Filters: config.FilterConfig{BodyRegex: "("},
	})
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
}
