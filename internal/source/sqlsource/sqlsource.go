package sqlsource

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
	"github.com/stanstork/noticeboard/internal/notification"
)

// record is one result row. The query must select id and title; the other
// columns are optional. :user binds the requesting user.
type record struct {
	ID       string         `db:"id"`
	Title    string         `db:"title"`
	Body     sql.NullString `db:"body"`
	URL      sql.NullString `db:"url"`
	Priority sql.NullInt64  `db:"priority"`
	DueDate  sql.NullTime   `db:"due_date"`
	Category sql.NullString `db:"category"`
}

// Provider runs a named query per request and groups the rows into
// categories in order of first appearance.
type Provider struct {
	name     string
	db       *sqlx.DB
	query    string
	category string
	logger   zerolog.Logger
}

func New(name string, db *sqlx.DB, query, category string, logger zerolog.Logger) (*Provider, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("sql source requires a name")
	}
	if db == nil {
		return nil, errors.Errorf("sql source %q requires a database", name)
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.Errorf("sql source %q requires a query", name)
	}
	if category == "" {
		category = name
	}
	return &Provider{
		name:     name,
		db:       db,
		query:    query,
		category: category,
		logger:   logger.With().Str("component", "sql_source").Str("source", name).Logger(),
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Notifications(ctx context.Context, req notification.Request) (*models.Response, error) {
	records, err := p.load(ctx, req.User)
	if err != nil {
		p.logger.Warn().Err(err).Str("user", req.User).Msg("failed to query notifications")
		return models.ErrorResponse(p.name, "Service Unavailable"), nil
	}

	resp := models.EmptyResponse()
	index := make(map[string]int)
	for _, r := range records {
		title := p.category
		if r.Category.Valid && r.Category.String != "" {
			title = r.Category.String
		}
		i, ok := index[title]
		if !ok {
			i = len(resp.Categories)
			index[title] = i
			resp.Categories = append(resp.Categories, models.Category{Title: title})
		}
		resp.Categories[i].Entries = append(resp.Categories[i].Entries, p.toEntry(r))
	}
	return resp, nil
}

func (p *Provider) load(ctx context.Context, user string) ([]record, error) {
	rows, err := p.db.NamedQueryContext(ctx, p.query, map[string]interface{}{"user": user})
	if err != nil {
		return nil, errors.Wrap(err, "error running query")
	}
	defer rows.Close()

	var records []record
	for rows.Next() {
		var r record
		if err := rows.StructScan(&r); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}
	return records, nil
}

func (p *Provider) toEntry(r record) models.Entry {
	entry := models.Entry{
		Identifier: models.Identifier{Source: p.name, ID: r.ID},
		Title:      r.Title,
		Body:       r.Body.String,
		URL:        r.URL.String,
		Priority:   int(r.Priority.Int64),
	}
	if r.DueDate.Valid {
		due := r.DueDate.Time
		entry.DueDate = &due
	}
	return entry
}
