package resource

import (
	"context"
	"encoding/json"
	"io/fs"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
	"github.com/stanstork/noticeboard/internal/notification"
)

// Provider serves notification responses stored as JSON files. Every user
// sees the same content.
type Provider struct {
	name   string
	fsys   fs.FS
	files  []string
	logger zerolog.Logger
}

func New(name string, fsys fs.FS, files []string, logger zerolog.Logger) (*Provider, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("resource source requires a name")
	}
	if fsys == nil || len(files) == 0 {
		return nil, errors.Errorf("resource source %q requires at least one file", name)
	}
	return &Provider{
		name:   name,
		fsys:   fsys,
		files:  append([]string(nil), files...),
		logger: logger.With().Str("component", "resource_source").Str("source", name).Logger(),
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Notifications(_ context.Context, _ notification.Request) (*models.Response, error) {
	combined := models.EmptyResponse()
	failure := ""
	for _, file := range p.files {
		resp, msg := p.read(file)
		if msg != "" {
			// the first failure is reported, the rest are only logged
			if failure == "" {
				failure = msg
			}
			continue
		}
		combined = combined.Combine(resp)
	}
	if failure != "" {
		combined.Errors = append(combined.Errors, models.Error{Message: failure, Source: p.name})
	}
	return combined, nil
}

// read returns the parsed file, or a user-facing message describing why it
// could not be loaded.
func (p *Provider) read(file string) (*models.Response, string) {
	data, err := fs.ReadFile(p.fsys, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn().Str("file", file).Msg("data file not found")
			return nil, "Data file not found: " + file
		}
		p.logger.Warn().Err(err).Str("file", file).Msg("failed to read data file")
		return nil, "Failed to read the data file: " + file
	}

	var resp models.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		p.logger.Warn().Err(err).Str("file", file).Msg("failed to parse data file")
		return nil, "Failed to read the data file: " + file
	}

	for ci := range resp.Categories {
		for ei := range resp.Categories[ci].Entries {
			entry := &resp.Categories[ci].Entries[ei]
			if entry.Source == "" {
				entry.Source = p.name
			}
			entry.States = nil
		}
	}
	return &resp, ""
}
