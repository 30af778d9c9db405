package notification

import (
	"context"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stanstork/noticeboard/internal/models"
)

var alice = Request{User: "alice"}

func TestAggregatorMergesInConfiguredOrder(t *testing.T) {
	agg, err := NewAggregator("all", []Provider{
		delayedProvider("p1", 40*time.Millisecond, categoryResponse("p1", "P1", "a")),
		delayedProvider("p2", 20*time.Millisecond, categoryResponse("p2", "P2", "b")),
		delayedProvider("p3", 0, categoryResponse("p3", "P3", "c")),
	})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}

	resp, err := agg.Notifications(context.Background(), alice)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if got, want := categoryTitles(resp), []string{"P1", "P2", "P3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("categories = %v, want %v", got, want)
	}
	if len(resp.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", resp.Errors)
	}
}

func TestAggregatorIsolatesFailures(t *testing.T) {
	tests := []struct {
		name   string
		failer Provider
	}{
		{
			name: "panic",
			failer: ProviderFunc{ProviderName: "p2", Fetch: func(context.Context, Request) (*models.Response, error) {
				panic("back-end exploded")
			}},
		},
		{
			name: "returned error",
			failer: ProviderFunc{ProviderName: "p2", Fetch: func(context.Context, Request) (*models.Response, error) {
				return nil, errors.New("misconfigured")
			}},
		},
		{
			name:   "degraded response",
			failer: staticProvider("p2", models.ErrorResponse("p2", "Service Unavailable")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, err := NewAggregator("all", []Provider{
				staticProvider("p1", categoryResponse("p1", "P1", "a")),
				tt.failer,
				staticProvider("p3", categoryResponse("p3", "P3", "c")),
			})
			if err != nil {
				t.Fatalf("NewAggregator: %v", err)
			}

			resp, err := agg.Notifications(context.Background(), alice)
			if err != nil {
				t.Fatalf("Notifications: %v", err)
			}
			if got, want := categoryTitles(resp), []string{"P1", "P3"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("categories = %v, want %v", got, want)
			}
			if len(resp.Errors) != 1 || resp.Errors[0].Source != "p2" {
				t.Fatalf("errors = %+v, want exactly one from p2", resp.Errors)
			}
		})
	}
}

func TestAggregatorDiscardsLateResults(t *testing.T) {
	var finished atomic.Bool
	slow := ProviderFunc{ProviderName: "p2", Fetch: func(context.Context, Request) (*models.Response, error) {
		time.Sleep(150 * time.Millisecond)
		finished.Store(true)
		return categoryResponse("p2", "P2", "late"), nil
	}}

	agg, err := NewAggregator("all", []Provider{
		staticProvider("p1", categoryResponse("p1", "P1", "a")),
		slow,
	}, WithTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}

	resp, err := agg.Notifications(context.Background(), alice)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if finished.Load() {
		t.Fatal("aggregator waited for the slow provider")
	}
	if got := categoryTitles(resp); !reflect.DeepEqual(got, []string{"P1"}) {
		t.Fatalf("categories = %v", got)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Source != "p2" || !strings.Contains(resp.Errors[0].Message, "timed out") {
		t.Fatalf("errors = %+v, want timeout from p2", resp.Errors)
	}

	time.Sleep(200 * time.Millisecond)
	if got := categoryTitles(resp); !reflect.DeepEqual(got, []string{"P1"}) {
		t.Fatalf("late result leaked into response: %v", got)
	}
}

func TestAggregatorBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	providers := make([]Provider, 0, 5)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		providers = append(providers, ProviderFunc{ProviderName: name, Fetch: func(context.Context, Request) (*models.Response, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return categoryResponse(name, name), nil
		}})
	}

	agg, err := NewAggregator("all", providers, WithMaxConcurrency(2))
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	resp, err := agg.Notifications(context.Background(), alice)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak.Load())
	}
	if got := categoryTitles(resp); !reflect.DeepEqual(got, []string{"a", "b", "c", "d", "e"}) {
		t.Fatalf("categories = %v", got)
	}
}

func TestNewAggregatorRejectsBadWiring(t *testing.T) {
	if _, err := NewAggregator("none", nil); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("err = %v, want ErrNoProviders", err)
	}

	dup := []Provider{
		staticProvider("same", models.EmptyResponse()),
		staticProvider("same", models.EmptyResponse()),
	}
	if _, err := NewAggregator("dup", dup); !errors.Is(err, ErrDuplicateProvider) {
		t.Fatalf("err = %v, want ErrDuplicateProvider", err)
	}
}

func TestAggregatorRejectsAnonymousRequest(t *testing.T) {
	agg, err := NewAggregator("all", []Provider{staticProvider("p1", models.EmptyResponse())})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	if _, err := agg.Notifications(context.Background(), Request{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}
