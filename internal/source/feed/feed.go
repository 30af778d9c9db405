package feed

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
	"github.com/stanstork/noticeboard/internal/notification"
)

const (
	AttributeAuthor    = "author"
	AttributePublished = "publishedDate"
	AttributeUpdated   = "updatedDate"

	defaultTimeout = 30 * time.Second
)

type Config struct {
	Name    string
	URLs    []string
	Timeout time.Duration
}

// Provider turns RSS and Atom feeds into one category per feed, newest
// items first.
type Provider struct {
	name   string
	urls   []string
	parser *gofeed.Parser
	logger zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) (*Provider, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("feed source requires a name")
	}
	if len(cfg.URLs) == 0 {
		return nil, errors.Errorf("feed source %q requires at least one url", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}

	return &Provider{
		name:   cfg.Name,
		urls:   append([]string(nil), cfg.URLs...),
		parser: parser,
		logger: logger.With().Str("component", "feed_source").Str("source", cfg.Name).Logger(),
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Notifications(ctx context.Context, req notification.Request) (*models.Response, error) {
	resp := models.EmptyResponse()
	failed := false
	for _, url := range p.urls {
		feed, err := p.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			p.logger.Warn().Err(err).Str("url", url).Msg("failed to read feed")
			failed = true
			continue
		}
		resp.Categories = append(resp.Categories, p.toCategory(feed))
	}
	if failed {
		resp.Errors = append(resp.Errors, models.Error{Message: "Service Unavailable", Source: p.name})
	}
	return resp, nil
}

func (p *Provider) toCategory(feed *gofeed.Feed) models.Category {
	items := append([]*gofeed.Item(nil), feed.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedParsed, items[j].PublishedParsed
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})

	title := strings.TrimSpace(feed.Title)
	if title == "" {
		title = p.name
	}
	category := models.Category{Title: title, Entries: make([]models.Entry, 0, len(items))}
	for _, item := range items {
		category.Entries = append(category.Entries, p.toEntry(item))
	}
	return category
}

func (p *Provider) toEntry(item *gofeed.Item) models.Entry {
	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = strings.TrimSpace(item.Link)
	}
	body := item.Description
	if body == "" {
		body = item.Content
	}

	entry := models.Entry{
		Identifier: models.Identifier{Source: p.name, ID: id},
		Title:      strings.TrimSpace(item.Title),
		Body:       body,
		URL:        item.Link,
	}
	if item.Image != nil {
		entry.Image = item.Image.URL
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "" {
		entry.Attributes = append(entry.Attributes, models.Attribute{Name: AttributeAuthor, Values: []string{item.Authors[0].Name}})
	}
	if item.PublishedParsed != nil {
		entry.Attributes = append(entry.Attributes, models.Attribute{
			Name:   AttributePublished,
			Values: []string{item.PublishedParsed.UTC().Format(time.RFC3339)},
		})
	}
	if item.UpdatedParsed != nil {
		entry.Attributes = append(entry.Attributes, models.Attribute{
			Name:   AttributeUpdated,
			Values: []string{item.UpdatedParsed.UTC().Format(time.RFC3339)},
		})
	}
	return entry
}
