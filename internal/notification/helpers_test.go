package notification

import (
	"context"
	"sync"
	"time"

	"github.com/stanstork/noticeboard/internal/models"
)

func categoryResponse(source, title string, ids ...string) *models.Response {
	entries := make([]models.Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, models.Entry{
			Identifier: models.Identifier{Source: source, ID: id},
			Title:      title + " " + id,
		})
	}
	return &models.Response{
		Categories: []models.Category{{Title: title, Entries: entries}},
		Errors:     []models.Error{},
	}
}

func staticProvider(name string, resp *models.Response) Provider {
	return ProviderFunc{
		ProviderName: name,
		Fetch: func(context.Context, Request) (*models.Response, error) {
			return resp.Clone(), nil
		},
	}
}

func delayedProvider(name string, delay time.Duration, resp *models.Response) Provider {
	return ProviderFunc{
		ProviderName: name,
		Fetch: func(context.Context, Request) (*models.Response, error) {
			time.Sleep(delay)
			return resp.Clone(), nil
		},
	}
}

func categoryTitles(resp *models.Response) []string {
	titles := make([]string, 0, len(resp.Categories))
	for _, c := range resp.Categories {
		titles = append(titles, c.Title)
	}
	return titles
}

type stateKey struct {
	user string
	id   models.Identifier
}

// memoryStore is a StateStore fake with optional failure hooks.
type memoryStore struct {
	mu      sync.Mutex
	states  map[stateKey]map[models.StateKind]time.Time
	getErr  error
	setErr  error
	getCall int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{states: make(map[stateKey]map[models.StateKind]time.Time)}
}

func (s *memoryStore) GetState(_ context.Context, user string, id models.Identifier) (map[models.StateKind]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCall++
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make(map[models.StateKind]time.Time)
	for k, v := range s.states[stateKey{user, id}] {
		out[k] = v
	}
	return out, nil
}

func (s *memoryStore) SetState(_ context.Context, user string, id models.Identifier, kind models.StateKind, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	key := stateKey{user, id}
	if at == nil {
		delete(s.states[key], kind)
		return nil
	}
	if s.states[key] == nil {
		s.states[key] = make(map[models.StateKind]time.Time)
	}
	s.states[key][kind] = *at
	return nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (c *countingInvalidator) Invalidate(user string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, user)
}
