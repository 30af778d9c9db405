package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stanstork/noticeboard/internal/models"
)

const redisKeyPrefix = "noticeboard:state"

// RedisStateRepository stores one hash per (user, notification), mapping
// state kind to an RFC 3339 timestamp.
type RedisStateRepository struct {
	rdb *redis.Client
}

func NewRedisStateRepository(rdb *redis.Client) *RedisStateRepository {
	return &RedisStateRepository{rdb: rdb}
}

func (r *RedisStateRepository) GetState(ctx context.Context, user string, id models.Identifier) (map[models.StateKind]time.Time, error) {
	fields, err := r.rdb.HGetAll(ctx, stateKey(user, id)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get state from redis")
	}

	states := make(map[models.StateKind]time.Time, len(fields))
	for field, raw := range fields {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid timestamp for %s", field)
		}
		states[models.StateKind(field)] = at
	}
	return states, nil
}

func (r *RedisStateRepository) SetState(ctx context.Context, user string, id models.Identifier, kind models.StateKind, at *time.Time) error {
	if !kind.IsValid() {
		return errors.Errorf("invalid state kind %q", kind)
	}
	key := stateKey(user, id)
	if at == nil {
		if err := r.rdb.HDel(ctx, key, string(kind)).Err(); err != nil {
			return errors.Wrap(err, "failed to clear state in redis")
		}
		return nil
	}
	if err := r.rdb.HSet(ctx, key, string(kind), at.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return errors.Wrap(err, "failed to save state into redis")
	}
	return nil
}

func (r *RedisStateRepository) Close() error {
	return r.rdb.Close()
}

// stateKey escapes each part so a ':' inside a user, source or id cannot
// collide with the separator.
func stateKey(user string, id models.Identifier) string {
	return fmt.Sprintf("%s:%s:%s:%s", redisKeyPrefix,
		url.QueryEscape(strings.TrimSpace(user)), url.QueryEscape(id.Source), url.QueryEscape(id.ID))
}
