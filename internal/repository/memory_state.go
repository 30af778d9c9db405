package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stanstork/noticeboard/internal/models"
)

type memoryKey struct {
	user string
	id   models.Identifier
}

// MemoryStateRepository keeps state in process memory. It is lost on restart.
type MemoryStateRepository struct {
	mu     sync.RWMutex
	states map[memoryKey]map[models.StateKind]time.Time
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{states: make(map[memoryKey]map[models.StateKind]time.Time)}
}

func (r *MemoryStateRepository) GetState(_ context.Context, user string, id models.Identifier) (map[models.StateKind]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[models.StateKind]time.Time)
	for kind, at := range r.states[memoryKey{strings.TrimSpace(user), id}] {
		out[kind] = at
	}
	return out, nil
}

func (r *MemoryStateRepository) SetState(_ context.Context, user string, id models.Identifier, kind models.StateKind, at *time.Time) error {
	if !kind.IsValid() {
		return errors.Errorf("invalid state kind %q", kind)
	}
	key := memoryKey{strings.TrimSpace(user), id}

	r.mu.Lock()
	defer r.mu.Unlock()
	if at == nil {
		delete(r.states[key], kind)
		if len(r.states[key]) == 0 {
			delete(r.states, key)
		}
		return nil
	}
	if r.states[key] == nil {
		r.states[key] = make(map[models.StateKind]time.Time)
	}
	r.states[key][kind] = at.UTC()
	return nil
}
