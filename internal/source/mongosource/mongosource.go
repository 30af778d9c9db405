package mongosource

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
	"github.com/stanstork/noticeboard/internal/notification"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultLimit int64 = 100

// document is the stored shape of a per-user notice.
type document struct {
	ID         bson.RawValue     `bson:"_id"`
	User       string            `bson:"user"`
	Title      string            `bson:"title"`
	Body       string            `bson:"body,omitempty"`
	URL        string            `bson:"url,omitempty"`
	LinkText   string            `bson:"link_text,omitempty"`
	Image      string            `bson:"image,omitempty"`
	Priority   int               `bson:"priority,omitempty"`
	DueDate    *time.Time        `bson:"due_date,omitempty"`
	Category   string            `bson:"category,omitempty"`
	Attributes models.Attributes `bson:"attributes,omitempty"`
	CreatedAt  time.Time         `bson:"created_at"`
}

// Provider reads the newest documents addressed to the requesting user.
type Provider struct {
	name     string
	coll     *mongo.Collection
	limit    int64
	category string
	logger   zerolog.Logger
}

func New(name string, coll *mongo.Collection, limit int64, category string, logger zerolog.Logger) (*Provider, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("mongo source requires a name")
	}
	if coll == nil {
		return nil, errors.Errorf("mongo source %q requires a collection", name)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if category == "" {
		category = name
	}
	return &Provider{
		name:     name,
		coll:     coll,
		limit:    limit,
		category: category,
		logger:   logger.With().Str("component", "mongo_source").Str("source", name).Logger(),
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Notifications(ctx context.Context, req notification.Request) (*models.Response, error) {
	docs, err := p.find(ctx, req.User)
	if err != nil {
		p.logger.Warn().Err(err).Str("user", req.User).Msg("failed to query notifications")
		return models.ErrorResponse(p.name, "Service Unavailable"), nil
	}
	return p.toResponse(docs), nil
}

func (p *Provider) find(ctx context.Context, user string) ([]document, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(p.limit)

	cursor, err := p.coll.Find(ctx, bson.M{"user": user}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "error finding documents")
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "error decoding documents")
	}
	return docs, nil
}

func (p *Provider) toResponse(docs []document) *models.Response {
	resp := models.EmptyResponse()
	index := make(map[string]int)
	for _, doc := range docs {
		id := documentID(doc.ID)
		if id == "" {
			p.logger.Warn().Str("title", doc.Title).Msg("skipping document without usable id")
			continue
		}
		title := p.category
		if doc.Category != "" {
			title = doc.Category
		}
		i, ok := index[title]
		if !ok {
			i = len(resp.Categories)
			index[title] = i
			resp.Categories = append(resp.Categories, models.Category{Title: title})
		}
		resp.Categories[i].Entries = append(resp.Categories[i].Entries, models.Entry{
			Identifier: models.Identifier{Source: p.name, ID: id},
			Title:      doc.Title,
			Body:       doc.Body,
			URL:        doc.URL,
			LinkText:   doc.LinkText,
			Image:      doc.Image,
			Priority:   doc.Priority,
			DueDate:    doc.DueDate,
			Attributes: doc.Attributes,
		})
	}
	return resp
}

// documentID accepts string and ObjectID keys.
func documentID(v bson.RawValue) string {
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	return ""
}
