package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stanstork/noticeboard/internal/models"
)

// StateRepository persists per-user notification state. Current state lives
// in notification_states; every transition is also appended to
// notification_events.
type StateRepository interface {
	GetState(ctx context.Context, user string, id models.Identifier) (map[models.StateKind]time.Time, error)
	SetState(ctx context.Context, user string, id models.Identifier, kind models.StateKind, at *time.Time) error
}

type stateRepository struct {
	db *sql.DB
}

func NewStateRepository(db *sql.DB) StateRepository {
	return &stateRepository{db: db}
}

func (r *stateRepository) GetState(ctx context.Context, user string, id models.Identifier) (map[models.StateKind]time.Time, error) {
	const query = `
		SELECT state, updated_at
		FROM notification_states
		WHERE username = $1 AND source = $2 AND notification_id = $3
	`

	rows, err := r.db.QueryContext(ctx, query, strings.TrimSpace(user), id.Source, id.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query notification state")
	}
	defer rows.Close()

	states := make(map[models.StateKind]time.Time)
	for rows.Next() {
		kind, at, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states[kind] = at
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read notification state")
	}
	return states, nil
}

func (r *stateRepository) SetState(ctx context.Context, user string, id models.Identifier, kind models.StateKind, at *time.Time) error {
	if !kind.IsValid() {
		return errors.Errorf("invalid state kind %q", kind)
	}
	user = strings.TrimSpace(user)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin state transaction")
	}
	defer tx.Rollback()

	occurred := time.Now().UTC()
	if at == nil {
		const remove = `
			DELETE FROM notification_states
			WHERE username = $1 AND source = $2 AND notification_id = $3 AND state = $4
		`
		if _, err := tx.ExecContext(ctx, remove, user, id.Source, id.ID, kind); err != nil {
			return errors.Wrap(err, "failed to clear notification state")
		}
	} else {
		occurred = at.UTC()
		const upsert = `
			INSERT INTO notification_states (username, source, notification_id, state, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (username, source, notification_id, state)
			DO UPDATE SET updated_at = EXCLUDED.updated_at
		`
		if _, err := tx.ExecContext(ctx, upsert, user, id.Source, id.ID, kind, occurred); err != nil {
			return errors.Wrap(err, "failed to store notification state")
		}
	}

	const event = `
		INSERT INTO notification_events (id, username, source, notification_id, state, is_set, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, event, uuid.New(), user, id.Source, id.ID, kind, at != nil, occurred); err != nil {
		return errors.Wrap(err, "failed to record notification event")
	}

	return errors.Wrap(tx.Commit(), "failed to commit notification state")
}

func scanState(scanner interface {
	Scan(dest ...interface{}) error
}) (models.StateKind, time.Time, error) {
	var (
		kind string
		at   time.Time
	)
	if err := scanner.Scan(&kind, &at); err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to scan notification state")
	}
	return models.StateKind(kind), at, nil
}
