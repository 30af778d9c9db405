package notification

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
)

func TestStateOverlayMergesStateWithoutMutatingSource(t *testing.T) {
	source := categoryResponse("s", "Cat", "1", "2")
	store := newMemoryStore()
	readAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	id := models.Identifier{Source: "s", ID: "1"}
	if err := store.SetState(context.Background(), "alice", id, models.StateRead, &readAt); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	overlay := NewStateOverlay(ProviderFunc{
		ProviderName: "s",
		Fetch: func(context.Context, Request) (*models.Response, error) {
			return source, nil
		},
	}, models.StateRead, models.ActionRead, store, nil, zerolog.Nop())

	resp, err := overlay.Notifications(context.Background(), alice)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}

	entry, _ := resp.Find(id)
	if got := entry.States[models.StateRead]; !got.Equal(readAt) {
		t.Fatalf("READ = %v, want %v", got, readAt)
	}
	if !entry.HasAction(models.ActionRead) {
		t.Fatal("read action not offered")
	}
	other, _ := resp.Find(models.Identifier{Source: "s", ID: "2"})
	if _, ok := other.States[models.StateRead]; ok {
		t.Fatal("state leaked onto another entry")
	}

	for _, e := range source.Categories[0].Entries {
		if e.States != nil || e.AvailableActions != nil {
			t.Fatalf("overlay mutated the enclosed response: %+v", e)
		}
	}
}

func TestStateOverlayToleratesLookupFailure(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	overlay := NewStateOverlay(staticProvider("s", categoryResponse("s", "Cat", "1", "2", "3")),
		models.StateFavorite, models.ActionFavorite, store, nil, zerolog.Nop())

	resp, err := overlay.Notifications(context.Background(), alice)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if resp.Size() != 3 {
		t.Fatalf("Size = %d, want 3", resp.Size())
	}
	for _, e := range resp.Categories[0].Entries {
		if len(e.States) != 0 {
			t.Fatalf("unexpected state on %s", e.ID)
		}
	}
	if store.getCall != 1 {
		t.Fatalf("store consulted %d times after failing, want 1", store.getCall)
	}
}

func TestStateOverlaySetState(t *testing.T) {
	id := models.Identifier{Source: "s", ID: "1"}
	now := time.Now()

	t.Run("writes through and invalidates", func(t *testing.T) {
		store := newMemoryStore()
		inv := &countingInvalidator{}
		overlay := NewStateOverlay(staticProvider("s", models.EmptyResponse()),
			models.StateFavorite, models.ActionFavorite, store, inv, zerolog.Nop())

		if err := overlay.SetState(context.Background(), "alice", id, &now); err != nil {
			t.Fatalf("SetState: %v", err)
		}
		states, _ := store.GetState(context.Background(), "alice", id)
		if _, ok := states[models.StateFavorite]; !ok {
			t.Fatal("state not persisted")
		}
		if len(inv.users) != 1 || inv.users[0] != "alice" {
			t.Fatalf("invalidated %v, want [alice]", inv.users)
		}
	})

	t.Run("surfaces write failure", func(t *testing.T) {
		store := newMemoryStore()
		store.setErr = errors.New("disk full")
		inv := &countingInvalidator{}
		overlay := NewStateOverlay(staticProvider("s", models.EmptyResponse()),
			models.StateFavorite, models.ActionFavorite, store, inv, zerolog.Nop())

		err := overlay.SetState(context.Background(), "alice", id, &now)
		if !errors.Is(err, ErrStateStore) {
			t.Fatalf("err = %v, want ErrStateStore", err)
		}
		if len(inv.users) != 0 {
			t.Fatal("cache invalidated after failed write")
		}
	})
}
